package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/fotoprobe/internal/logger"
	proto "github.com/marmos91/fotoprobe/internal/protocol/fetch"
	"github.com/marmos91/fotoprobe/internal/protocol/rpc"
	"github.com/marmos91/fotoprobe/internal/ratelimiter"
)

type connection struct {
	server  *FetchAdapter
	conn    net.Conn
	limiter *ratelimiter.RateLimiter
}

func newConnection(server *FetchAdapter, conn net.Conn) *connection {
	return &connection{
		server:  server,
		conn:    conn,
		limiter: ratelimiter.New(server.config.RateLimit, server.config.RateBurst),
	}
}

// Serve handles calls on this connection until the client disconnects,
// a timeout fires or the server shuts down. A panic while serving closes
// only this connection.
func (c *connection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in FETCH connection handler from %s: %v", clientAddr, r)
		}
		_ = c.conn.Close()
	}()

	// Wake a read blocked on an idle client once shutdown starts.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	c.resetIdle(clientAddr)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("FETCH connection from %s closed due to context cancellation", clientAddr)
			return
		case <-c.server.shutdown:
			logger.Debug("FETCH connection from %s closed due to server shutdown", clientAddr)
			return
		default:
		}

		if err := c.handleRequest(ctx, clientAddr); err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("FETCH connection from %s closed by client", clientAddr)
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Debug("FETCH connection from %s timed out: %v", clientAddr, err)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				logger.Debug("FETCH connection from %s cancelled: %v", clientAddr, err)
			default:
				logger.Debug("Error handling FETCH request from %s: %v", clientAddr, err)
			}
			return
		}

		c.resetIdle(clientAddr)
	}
}

func (c *connection) resetIdle(clientAddr string) {
	if c.server.config.IdleTimeout <= 0 {
		return
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
		logger.Warn("Failed to set deadline for %s: %v", clientAddr, err)
	}
}

// handleRequest reads one record and answers it. Malformed call headers
// are dropped without a reply since no XID can be trusted.
func (c *connection) handleRequest(ctx context.Context, clientAddr string) error {
	if c.server.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	message, err := rpc.ReadRecord(c.conn, rpc.DefaultMaxRecordSize)
	if err != nil {
		return err
	}

	call, err := rpc.ReadCall(message)
	if err != nil {
		logger.Debug("Error parsing RPC call from %s: %v", clientAddr, err)
		return nil
	}

	logger.Debug("RPC Call: XID=0x%x Program=0x%x Version=%d Procedure=%d",
		call.XID, call.Program, call.Version, call.Procedure)

	procedureData, err := rpc.ReadData(message, call)
	if err != nil {
		logger.Debug("Error extracting procedure data from %s: %v", clientAddr, err)
		return c.send(rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs))
	}

	return c.handleCall(ctx, call, procedureData, clientAddr)
}

func (c *connection) handleCall(ctx context.Context, call *rpc.RPCCallMessage, data []byte, clientAddr string) error {
	if call.Program != proto.Program {
		logger.Debug("Unknown program 0x%x from %s", call.Program, clientAddr)
		return c.send(rpc.MakeErrorReply(call.XID, rpc.RPCProgUnavail))
	}
	if call.Version != proto.Version {
		logger.Debug("Unsupported FETCH version %d from %s", call.Version, clientAddr)
		return c.send(rpc.MakeProgMismatchReply(call.XID, proto.Version, proto.Version))
	}

	procInfo, ok := proto.DispatchTable[call.Procedure]
	if !ok {
		logger.Debug("Unknown FETCH procedure %d from %s", call.Procedure, clientAddr)
		return c.send(rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail))
	}

	callCtx := proto.NewCallContext(ctx, call, clientAddr)

	if procInfo.NeedsAuth && c.server.authRequired() {
		accepted, revoked := c.server.checkToken(callCtx.Token)
		if !accepted {
			authStat := uint32(rpc.AuthBadCred)
			if revoked {
				authStat = rpc.AuthRejectedCred
			}
			logger.Debug("FETCH %s from %s denied: auth_stat=%d", procInfo.Name, clientAddr, authStat)
			c.server.metrics.RecordRequest(procInfo.Name, "AUTH_ERROR", 0)
			return c.send(rpc.MakeAuthErrorReply(call.XID, authStat))
		}
	}

	if !c.limiter.Allow() {
		logger.Debug("FETCH %s from %s rate limited (%.2f calls/s, next token in %v)",
			procInfo.Name, clientAddr, c.limiter.Limit(), c.limiter.Delay())
		c.server.metrics.RecordRateLimited()
		return c.send(rpc.MakeErrorReply(call.XID, rpc.RPCSystemErr))
	}

	select {
	case <-ctx.Done():
		logger.Debug("FETCH %s cancelled before handler: xid=0x%x client=%s error=%v",
			procInfo.Name, call.XID, clientAddr, ctx.Err())
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	replyData, err := procInfo.Handler(callCtx, c.server.handler, data)
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.server.metrics.RecordRequest(procInfo.Name, "SYSTEM_ERR", duration)
		logger.Warn("FETCH %s handler error for %s: %v", procInfo.Name, clientAddr, err)
		return c.send(rpc.MakeErrorReply(call.XID, rpc.RPCSystemErr))
	}

	status := uint32(proto.StatusOK)
	if call.Procedure != proto.ProcNull {
		status = proto.ResponseStatus(replyData)
	}
	c.server.metrics.RecordRequest(procInfo.Name, proto.StatusName(status), duration)

	return c.send(rpc.MakeSuccessReply(call.XID, replyData))
}

// send writes an already-built reply, applying the write timeout.
func (c *connection) send(reply []byte, err error) error {
	if err != nil {
		return fmt.Errorf("make reply: %w", err)
	}

	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := c.conn.Write(reply); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}

	logger.Debug("Sent FETCH reply to %s (%d bytes)", c.conn.RemoteAddr(), len(reply))
	return nil
}

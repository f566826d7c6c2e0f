// Package remote implements retrieval.Session as a FETCH RPC client.
//
// A Session holds one TCP connection and issues one call at a time. After a
// network failure the connection is dropped and the next call dials again,
// so a transient outage surfaces as KindTransient to the chunk reader
// instead of poisoning the session.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/fotoprobe/internal/logger"
	proto "github.com/marmos91/fotoprobe/internal/protocol/fetch"
	"github.com/marmos91/fotoprobe/internal/protocol/rpc"
	"github.com/marmos91/fotoprobe/internal/ratelimiter"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// Config describes how to reach a FETCH server.
type Config struct {
	// Address is host:port of the server.
	Address string `mapstructure:"address" validate:"required"`

	// Token is sent as an AUTH_TOKEN credential. Empty means AUTH_NULL.
	Token string `mapstructure:"token"`

	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"min=0"`

	// CallTimeout bounds one round trip. Expiry is reported as transient.
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"min=0"`

	// RateLimit caps calls per second issued by this session. 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	RateBurst int `mapstructure:"rate_burst" validate:"min=0"`
}

// Option customises a Session.
type Option func(*Session)

// WithDialer replaces the TCP dialer, mainly for tests.
func WithDialer(dial func(ctx context.Context, network, address string) (net.Conn, error)) Option {
	return func(s *Session) {
		if dial != nil {
			s.dial = dial
		}
	}
}

// WithRateLimiter shares a limiter between sessions instead of building one
// from the config.
func WithRateLimiter(l *ratelimiter.RateLimiter) Option {
	return func(s *Session) {
		s.limiter = l
	}
}

// Session is a FETCH client. It is safe for concurrent use; calls are
// serialized on the single connection.
type Session struct {
	cfg     Config
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
	limiter *ratelimiter.RateLimiter

	mu     sync.Mutex
	conn   net.Conn
	xid    uint32
	closed bool
}

var _ retrieval.Session = (*Session)(nil)

// Dial connects to the server and verifies it answers the NULL procedure.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	if cfg.Address == "" {
		return nil, errors.New("remote: address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	d := &net.Dialer{Timeout: cfg.DialTimeout}
	s := &Session{
		cfg:     cfg,
		dial:    d.DialContext,
		limiter: ratelimiter.New(cfg.RateLimit, cfg.RateBurst),
		xid:     uint32(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if limit := s.limiter.Limit(); limit > 0 {
		logger.Info("Remote session to %s paced at %.2f calls/s", cfg.Address, limit)
	}
	return s, nil
}

// Ping calls the NULL procedure.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.call(ctx, "remote.ping", proto.ProcNull, nil)
	return err
}

// OpenHandle resolves ref on the server.
func (s *Session) OpenHandle(ctx context.Context, ref retrieval.MessageRef) (*retrieval.FileHandle, error) {
	const op = "remote.open"

	args, err := (&proto.OpenRequest{
		Peer:       uint32(ref.Peer),
		PeerID:     ref.PeerID,
		AccessHash: ref.AccessHash,
		MessageID:  ref.MessageID,
	}).Encode()
	if err != nil {
		return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
	}

	data, err := s.call(ctx, op, proto.ProcOpen, args)
	if err != nil {
		return nil, err
	}

	resp, err := proto.DecodeOpenResponse(data)
	if err != nil {
		return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
	}
	if resp.Status != proto.StatusOK {
		return nil, statusError(op, resp.Status)
	}

	return &retrieval.FileHandle{
		ID:           resp.Handle,
		DeclaredSize: resp.Size,
		Kind:         retrieval.ContentKind(resp.Kind),
		MimeType:     resp.Mime,
		ChunkLimit:   resp.MaxRead,
	}, nil
}

// ReadRange reads w, splitting it into calls no larger than the handle's
// chunk limit. It stops early at end of object.
func (s *Session) ReadRange(ctx context.Context, h *retrieval.FileHandle, w retrieval.ByteWindow) ([]byte, error) {
	const op = "remote.read"

	limit := uint64(proto.MaxReadSize)
	if h.ChunkLimit > 0 && uint64(h.ChunkLimit) < limit {
		limit = uint64(h.ChunkLimit)
	}

	out := make([]byte, 0, min(w.Length, 4*limit))
	offset := w.Offset
	for remaining := w.Length; remaining > 0; {
		count := min(remaining, limit)

		args, err := (&proto.ReadRequest{Handle: h.ID, Offset: offset, Count: uint32(count)}).Encode()
		if err != nil {
			return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
		}

		data, err := s.call(ctx, op, proto.ProcRead, args)
		if err != nil {
			return nil, err
		}

		resp, err := proto.DecodeReadResponse(data)
		if err != nil {
			return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
		}
		if resp.Status != proto.StatusOK {
			return nil, statusError(op, resp.Status)
		}
		if uint64(len(resp.Data)) > count {
			return nil, retrieval.Errorf(retrieval.KindProtocol, op,
				"server returned %d bytes for a %d byte read", len(resp.Data), count)
		}

		out = append(out, resp.Data...)
		n := uint64(len(resp.Data))
		if resp.EOF || n < count {
			break
		}
		offset += n
		remaining -= n
	}
	return out, nil
}

// Close drops the connection. Later calls fail with KindSessionExpired.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// call performs one round trip and returns the procedure results.
func (s *Session) call(ctx context.Context, op string, proc uint32, args []byte) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, retrieval.NewError(retrieval.KindCanceled, op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, retrieval.Errorf(retrieval.KindSessionExpired, op, "session closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, retrieval.NewError(retrieval.KindCanceled, op, err)
	}

	if s.conn == nil {
		conn, err := s.dial(ctx, "tcp", s.cfg.Address)
		if err != nil {
			return nil, s.networkError(ctx, op, fmt.Errorf("dial %s: %w", s.cfg.Address, err))
		}
		logger.Debug("FETCH session connected to %s", s.cfg.Address)
		s.conn = conn
	}

	s.xid++
	xid := s.xid

	cred := rpc.OpaqueAuth{Flavor: rpc.AuthNull}
	if s.cfg.Token != "" {
		cred = rpc.OpaqueAuth{Flavor: rpc.AuthToken, Body: []byte(s.cfg.Token)}
	}
	msg, err := rpc.MakeCall(xid, proto.Program, proto.Version, proc, cred, args)
	if err != nil {
		return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	conn := s.conn
	deadline, _ := callCtx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		s.dropConn()
		return nil, s.networkError(ctx, op, err)
	}
	// Unblock the read as soon as the caller gives up.
	stop := context.AfterFunc(callCtx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(msg); err != nil {
		s.dropConn()
		return nil, s.networkError(ctx, op, fmt.Errorf("write call: %w", err))
	}

	record, err := rpc.ReadRecord(conn, rpc.DefaultMaxRecordSize)
	if err != nil {
		s.dropConn()
		return nil, s.networkError(ctx, op, fmt.Errorf("read reply: %w", err))
	}

	reply, err := rpc.ReadReply(record)
	if err != nil {
		s.dropConn()
		return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
	}
	if reply.XID != xid {
		s.dropConn()
		return nil, retrieval.Errorf(retrieval.KindProtocol, op, "reply xid 0x%x does not match call 0x%x", reply.XID, xid)
	}

	if reply.Accepted() {
		return reply.Data, nil
	}
	return nil, replyError(op, reply)
}

func (s *Session) dropConn() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// networkError classifies a transport failure. Cancellation by the caller
// wins over the per-call timeout, which is transient.
func (s *Session) networkError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return retrieval.NewError(retrieval.KindCanceled, op, ctxErr)
		}
		return retrieval.NewError(retrieval.KindIncomplete, op, ctxErr)
	}
	return retrieval.NewError(retrieval.KindTransient, op, err)
}

func replyError(op string, reply *rpc.Reply) error {
	if reply.ReplyState == rpc.RPCMsgDenied {
		if reply.RejectStat == rpc.RPCAuthError {
			if reply.AuthStat == rpc.AuthRejectedCred {
				return retrieval.Errorf(retrieval.KindSessionExpired, op, "credential revoked")
			}
			return retrieval.Errorf(retrieval.KindUnauthorized, op, "credential refused (auth_stat=%d)", reply.AuthStat)
		}
		return retrieval.Errorf(retrieval.KindProtocol, op, "rpc version mismatch (%d-%d)", reply.Low, reply.High)
	}

	switch reply.AcceptStat {
	case rpc.RPCSystemErr:
		return retrieval.Errorf(retrieval.KindTransient, op, "server busy")
	case rpc.RPCProgMismatch:
		return retrieval.Errorf(retrieval.KindProtocol, op, "server speaks versions %d-%d", reply.Low, reply.High)
	default:
		return retrieval.Errorf(retrieval.KindProtocol, op, "call rejected: %s", reply)
	}
}

func statusError(op string, status uint32) error {
	return retrieval.Errorf(proto.KindForStatus(status), op, "server status %s", proto.StatusName(status))
}

package fetch

import (
	"context"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/internal/protocol/rpc"
)

// CallContext carries per-call information into handlers.
type CallContext struct {
	Context context.Context

	ClientAddr string

	AuthFlavor uint32

	// Token is the credential body when AuthFlavor is rpc.AuthToken.
	Token []byte
}

// NewCallContext builds the context for one call.
func NewCallContext(ctx context.Context, call *rpc.RPCCallMessage, clientAddr string) *CallContext {
	cc := &CallContext{
		Context:    ctx,
		ClientAddr: clientAddr,
		AuthFlavor: call.GetAuthFlavor(),
	}
	if cc.AuthFlavor == rpc.AuthToken {
		cc.Token = call.GetAuthBody()
	}
	return cc
}

// Handler implements the FETCH procedures. Implementations report
// failures through the response status; a returned error aborts the
// connection.
type Handler interface {
	Open(ctx *CallContext, req *OpenRequest) (*OpenResponse, error)
	Read(ctx *CallContext, req *ReadRequest) (*ReadResponse, error)
}

type procedureHandler func(ctx *CallContext, handler Handler, data []byte) ([]byte, error)

// ProcedureInfo describes one entry of the dispatch table.
type ProcedureInfo struct {
	Name    string
	Handler procedureHandler

	// NeedsAuth is false for procedures served without credentials.
	NeedsAuth bool
}

// DispatchTable maps procedure numbers to handlers.
var DispatchTable = map[uint32]*ProcedureInfo{
	ProcNull: {
		Name:      "NULL",
		Handler:   handleNull,
		NeedsAuth: false,
	},
	ProcOpen: {
		Name:      "OPEN",
		Handler:   handleOpen,
		NeedsAuth: true,
	},
	ProcRead: {
		Name:      "READ",
		Handler:   handleRead,
		NeedsAuth: true,
	},
}

func handleNull(ctx *CallContext, _ Handler, _ []byte) ([]byte, error) {
	logger.Debug("FETCH NULL from %s", ctx.ClientAddr)
	return []byte{}, nil
}

func handleOpen(ctx *CallContext, handler Handler, data []byte) ([]byte, error) {
	req, err := DecodeOpenRequest(data)
	if err != nil {
		logger.Debug("FETCH OPEN: %v", err)
		return (&OpenResponse{Status: StatusInval}).Encode()
	}

	resp, err := handler.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Encode()
}

func handleRead(ctx *CallContext, handler Handler, data []byte) ([]byte, error) {
	req, err := DecodeReadRequest(data)
	if err != nil {
		logger.Debug("FETCH READ: %v", err)
		return (&ReadResponse{Status: StatusInval}).Encode()
	}

	resp, err := handler.Read(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Encode()
}

// ResponseStatus extracts the leading status word of an encoded OPEN or
// READ response, for metrics.
func ResponseStatus(reply []byte) uint32 {
	if len(reply) < 4 {
		return StatusOK
	}
	return uint32(reply[0])<<24 | uint32(reply[1])<<16 | uint32(reply[2])<<8 | uint32(reply[3])
}

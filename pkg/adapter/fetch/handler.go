package fetch

import (
	"github.com/marmos91/fotoprobe/internal/logger"
	proto "github.com/marmos91/fotoprobe/internal/protocol/fetch"
	"github.com/marmos91/fotoprobe/pkg/metrics"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// backendHandler serves OPEN and READ from a retrieval.Session.
type backendHandler struct {
	backend retrieval.Session
	handles *HandleTable
	maxRead uint32
	metrics metrics.FetchMetrics
}

func (h *backendHandler) Open(ctx *proto.CallContext, req *proto.OpenRequest) (*proto.OpenResponse, error) {
	ref := retrieval.MessageRef{
		Peer:       retrieval.PeerKind(req.Peer),
		PeerID:     req.PeerID,
		AccessHash: req.AccessHash,
		MessageID:  req.MessageID,
	}

	fh, err := h.backend.OpenHandle(ctx.Context, ref)
	if err != nil {
		status := proto.StatusForError(err)
		logger.Debug("FETCH OPEN %s from %s: %s (%v)", ref, ctx.ClientAddr, proto.StatusName(status), err)
		return &proto.OpenResponse{Status: status}, nil
	}

	maxRead := h.maxRead
	if fh.ChunkLimit > 0 && fh.ChunkLimit < maxRead {
		maxRead = fh.ChunkLimit
	}

	wire := h.handles.Issue(fh)
	logger.Debug("FETCH OPEN %s from %s: size=%d kind=%s", ref, ctx.ClientAddr, fh.DeclaredSize, fh.Kind)

	return &proto.OpenResponse{
		Status:  proto.StatusOK,
		Handle:  wire,
		Size:    fh.DeclaredSize,
		Kind:    uint32(fh.Kind),
		MaxRead: maxRead,
		Mime:    fh.MimeType,
	}, nil
}

func (h *backendHandler) Read(ctx *proto.CallContext, req *proto.ReadRequest) (*proto.ReadResponse, error) {
	fh, ok := h.handles.Lookup(req.Handle)
	if !ok {
		return &proto.ReadResponse{Status: proto.StatusStale}, nil
	}
	if req.Count > h.maxRead {
		logger.Debug("FETCH READ from %s: count %d exceeds %d", ctx.ClientAddr, req.Count, h.maxRead)
		return &proto.ReadResponse{Status: proto.StatusInval}, nil
	}
	if req.Count == 0 {
		return &proto.ReadResponse{Status: proto.StatusOK}, nil
	}

	data, err := h.backend.ReadRange(ctx.Context, fh, retrieval.ByteWindow{Offset: req.Offset, Length: uint64(req.Count)})
	if err != nil {
		status := proto.StatusForError(err)
		logger.Debug("FETCH READ %s@%d from %s: %s (%v)", fh, req.Offset, ctx.ClientAddr, proto.StatusName(status), err)
		return &proto.ReadResponse{Status: status}, nil
	}
	if len(data) > int(req.Count) {
		data = data[:req.Count]
	}

	eof := len(data) < int(req.Count)
	if fh.SizeKnown() && req.Offset+uint64(len(data)) >= fh.DeclaredSize {
		eof = true
	}

	h.metrics.RecordBytesServed(int64(len(data)))
	return &proto.ReadResponse{Status: proto.StatusOK, EOF: eof, Data: data}, nil
}

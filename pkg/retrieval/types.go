package retrieval

import (
	"encoding/hex"
	"fmt"
)

// PeerKind identifies the conversation type a message lives in.
type PeerKind uint32

const (
	PeerUser PeerKind = iota
	PeerChat
	PeerChannel
)

func (p PeerKind) String() string {
	switch p {
	case PeerUser:
		return "user"
	case PeerChat:
		return "chat"
	case PeerChannel:
		return "channel"
	default:
		return fmt.Sprintf("peer(%d)", uint32(p))
	}
}

// ParsePeerKind accepts the names produced by PeerKind.String.
func ParsePeerKind(s string) (PeerKind, error) {
	switch s {
	case "user", "":
		return PeerUser, nil
	case "chat":
		return PeerChat, nil
	case "channel":
		return PeerChannel, nil
	}
	return 0, fmt.Errorf("unknown peer kind %q", s)
}

// MessageRef points at a media message, already resolved by the chat layer.
type MessageRef struct {
	Peer       PeerKind
	PeerID     int64
	AccessHash int64
	MessageID  int64
}

func (r MessageRef) String() string {
	return fmt.Sprintf("%s:%d/%d", r.Peer, r.PeerID, r.MessageID)
}

// ContentKind distinguishes photos from any other attachment.
type ContentKind uint32

const (
	ContentOther ContentKind = iota
	ContentPhoto
)

func (k ContentKind) String() string {
	if k == ContentPhoto {
		return "photo"
	}
	return "other"
}

// FileHandle is the backend reference to one remote object. It is obtained
// from Session.OpenHandle and must not be modified afterwards.
type FileHandle struct {
	// ID is opaque to everything except the session that issued it.
	ID []byte
	// DeclaredSize is the object size reported by the backend, 0 if unknown.
	DeclaredSize uint64
	Kind         ContentKind
	MimeType     string
	// ChunkLimit is the largest single read the backend accepts, 0 if it
	// imposes none.
	ChunkLimit uint32
}

func (h *FileHandle) String() string {
	id := hex.EncodeToString(h.ID)
	if len(id) > 16 {
		id = id[:16]
	}
	return fmt.Sprintf("handle(%s size=%d kind=%s)", id, h.DeclaredSize, h.Kind)
}

// SizeKnown reports whether DeclaredSize can bound reads.
func (h *FileHandle) SizeKnown() bool {
	return h.DeclaredSize > 0
}

// ByteWindow is a contiguous span [Offset, Offset+Length).
type ByteWindow struct {
	Offset uint64
	Length uint64
}

// End returns the first offset past the window.
func (w ByteWindow) End() uint64 {
	return w.Offset + w.Length
}

func (w ByteWindow) String() string {
	return fmt.Sprintf("[%d,%d)", w.Offset, w.End())
}

package telegram

import (
	"bytes"
	"fmt"

	"github.com/gotd/td/tg"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// Location kinds stored in a handle.
const (
	locationPhoto    uint32 = 1
	locationDocument uint32 = 2
)

// location is the XDR body of a FileHandle.ID. It carries everything
// upload.getFile needs, so reads never go back to the message.
type location struct {
	Kind          uint32
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbSize     string
	DCID          int32
}

func (l *location) encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, l); err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeLocation(data []byte) (*location, error) {
	var l location
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &l); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	if l.Kind != locationPhoto && l.Kind != locationDocument {
		return nil, fmt.Errorf("unknown location kind %d", l.Kind)
	}
	return &l, nil
}

func (l *location) input() tg.InputFileLocationClass {
	if l.Kind == locationPhoto {
		return &tg.InputPhotoFileLocation{
			ID:            l.ID,
			AccessHash:    l.AccessHash,
			FileReference: l.FileReference,
			ThumbSize:     l.ThumbSize,
		}
	}
	return &tg.InputDocumentFileLocation{
		ID:            l.ID,
		AccessHash:    l.AccessHash,
		FileReference: l.FileReference,
	}
}

// largestSize picks the biggest full-resolution rendition of a photo and
// returns its type letter and byte size.
func largestSize(sizes []tg.PhotoSizeClass) (string, uint64, bool) {
	var (
		best     string
		bestArea int
		bestSize uint64
		found    bool
	)
	for _, s := range sizes {
		var (
			typ  string
			area int
			n    uint64
		)
		switch v := s.(type) {
		case *tg.PhotoSize:
			typ, area, n = v.Type, v.W*v.H, uint64(v.Size)
		case *tg.PhotoSizeProgressive:
			if len(v.Sizes) == 0 {
				continue
			}
			typ, area, n = v.Type, v.W*v.H, uint64(v.Sizes[len(v.Sizes)-1])
		default:
			// Stripped, cached and path sizes are inline thumbnails.
			continue
		}
		if !found || area > bestArea {
			best, bestArea, bestSize, found = typ, area, n, true
		}
	}
	return best, bestSize, found
}

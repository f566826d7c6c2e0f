// Package exif locates the Exif block in the leading bytes of an image and
// decodes it into a retrieval.MetadataRecord.
//
// Container scanning (JPEG segments, PNG chunks, WebP RIFF chunks, bare
// TIFF) is done here so that a truncated prefix can be told apart from a
// file without metadata. Tag interpretation is delegated to goexif.
package exif

import (
	"bytes"
	"fmt"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

type format int

const (
	formatUnknown format = iota
	formatJPEG
	formatTIFF
	formatPNG
	formatWebP
)

func (f format) String() string {
	switch f {
	case formatJPEG:
		return "jpeg"
	case formatTIFF:
		return "tiff"
	case formatPNG:
		return "png"
	case formatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// scanState is the resumable progress of a container scan: the format and
// the offset of the first segment whose header has not been validated yet.
// Everything before next depends only on bytes already seen.
type scanState struct {
	format format
	next   int
}

// sniffLen is the longest signature we need to identify a container.
const sniffLen = 12

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	tiffLE       = []byte("II*\x00")
	tiffBE       = []byte("MM\x00*")
)

// Decoder implements retrieval.Decoder for JPEG, PNG, WebP and TIFF.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Incremental reports that the decoder can resume on a longer prefix.
func (d *Decoder) Incremental() bool {
	return true
}

// Decode implements retrieval.Decoder.
func (d *Decoder) Decode(prefix []byte, state retrieval.ParserState) retrieval.Decoded {
	st, ok := state.(scanState)
	if !ok || st.format == formatUnknown || st.next > len(prefix) {
		f, need := sniff(prefix)
		if f == formatUnknown {
			if need > 0 {
				return needMore(need, scanState{})
			}
			return notPresent("unrecognized container")
		}
		st = scanState{format: f}
	}

	switch st.format {
	case formatJPEG:
		return scanJPEG(prefix, st)
	case formatPNG:
		return scanPNG(prefix, st)
	case formatWebP:
		return scanWebP(prefix, st)
	default:
		return decodeBareTIFF(prefix, st)
	}
}

// sniff identifies the container. need > 0 means the prefix is too short
// to decide.
func sniff(b []byte) (format, int) {
	switch {
	case len(b) >= 2 && b[0] == 0xff && b[1] == 0xd8:
		return formatJPEG, 0
	case len(b) >= 4 && (bytes.Equal(b[:4], tiffLE) || bytes.Equal(b[:4], tiffBE)):
		return formatTIFF, 0
	case len(b) >= 8 && bytes.Equal(b[:8], pngSignature):
		return formatPNG, 0
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP":
		return formatWebP, 0
	case len(b) < sniffLen:
		return formatUnknown, sniffLen - len(b)
	}
	return formatUnknown, 0
}

func needMore(n int, st scanState) retrieval.Decoded {
	if n < 0 {
		n = 0
	}
	return retrieval.Decoded{Status: retrieval.DecodeNeedMore, Hint: uint64(n), State: st}
}

func notPresent(detail string) retrieval.Decoded {
	return retrieval.Decoded{Status: retrieval.DecodeNotPresent, Detail: detail}
}

func malformed(format string, args ...any) retrieval.Decoded {
	return retrieval.Decoded{Status: retrieval.DecodeMalformed, Detail: fmt.Sprintf(format, args...)}
}

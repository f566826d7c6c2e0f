package exif

import (
	"encoding/binary"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// maxChunkLen guards against corrupt length fields sending the scan past
// any sane read limit.
const maxChunkLen = 1 << 30

// scanPNG walks chunks until eXIf. An eXIf chunk after image data is not
// looked for: reaching it would mean reading the whole image.
func scanPNG(b []byte, st scanState) retrieval.Decoded {
	pos := st.next
	if pos < len(pngSignature) {
		pos = len(pngSignature)
	}

	for {
		st.next = pos
		if pos+8 > len(b) {
			return needMore(pos+8-len(b), st)
		}
		length := binary.BigEndian.Uint32(b[pos:])
		if length > maxChunkLen {
			return malformed("png: chunk at offset %d has length %d", pos, length)
		}
		typ := string(b[pos+4 : pos+8])
		dataStart := pos + 8
		end := dataStart + int(length) + 4

		switch typ {
		case "eXIf":
			if end > len(b) {
				return needMore(end-len(b), st)
			}
			return decodeTIFFBlock(b[dataStart:dataStart+int(length)], "png")
		case "IDAT", "IEND":
			return notPresent("png: no eXIf chunk before image data")
		}
		pos = end
	}
}

package exif

import (
	"encoding/binary"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// scanWebP walks RIFF chunks. The VP8X header says whether an EXIF chunk
// exists at all, so files without one are rejected after 30 bytes.
func scanWebP(b []byte, st scanState) retrieval.Decoded {
	pos := st.next
	if pos < 12 {
		pos = 12
	}

	for {
		st.next = pos
		if pos+8 > len(b) {
			return needMore(pos+8-len(b), st)
		}
		fourcc := string(b[pos : pos+4])
		length := binary.LittleEndian.Uint32(b[pos+4:])
		if length > maxChunkLen {
			return malformed("webp: chunk at offset %d has length %d", pos, length)
		}
		dataStart := pos + 8
		dataEnd := dataStart + int(length)
		end := dataEnd + int(length%2)

		switch fourcc {
		case "VP8X":
			if dataStart+1 > len(b) {
				return needMore(dataStart+1-len(b), st)
			}
			if b[dataStart]&0x08 == 0 {
				return notPresent("webp: VP8X declares no EXIF chunk")
			}
		case "VP8 ", "VP8L":
			if pos == 12 {
				return notPresent("webp: simple format carries no EXIF")
			}
		case "EXIF":
			if dataEnd > len(b) {
				return needMore(dataEnd-len(b), st)
			}
			payload := b[dataStart:dataEnd]
			if len(payload) >= 6 && string(payload[:4]) == "Exif" {
				payload = payload[6:]
			}
			return decodeTIFFBlock(payload, "webp")
		}
		pos = end
	}
}

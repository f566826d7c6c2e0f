package exif

import (
	"bytes"
	"encoding/binary"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

const (
	markerSOI  = 0xd8
	markerEOI  = 0xd9
	markerSOS  = 0xda
	markerAPP1 = 0xe1
	markerTEM  = 0x01
)

// exifHeader prefixes the TIFF block inside an APP1 segment. The last
// byte is normally 0 but some writers emit 0xff.
var exifHeader = []byte("Exif\x00")

// scanJPEG walks marker segments from st.next until it finds the APP1
// Exif segment or reaches the start of scan.
func scanJPEG(b []byte, st scanState) retrieval.Decoded {
	pos := st.next
	if pos < 2 {
		pos = 2
	}

	for {
		st.next = pos
		if pos+2 > len(b) {
			return needMore(pos+4-len(b), st)
		}
		if b[pos] != 0xff {
			return malformed("jpeg: expected marker at offset %d, found 0x%02x", pos, b[pos])
		}
		marker := b[pos+1]

		switch {
		case marker == 0xff:
			// Fill byte.
			pos++
			continue
		case marker == markerSOI || marker == markerTEM || (marker >= 0xd0 && marker <= 0xd7):
			pos += 2
			continue
		case marker == markerSOS || marker == markerEOI:
			return notPresent("jpeg: no Exif segment before image data")
		}

		if pos+4 > len(b) {
			return needMore(pos+4-len(b), st)
		}
		segLen := int(binary.BigEndian.Uint16(b[pos+2:]))
		if segLen < 2 {
			return malformed("jpeg: segment 0x%02x at offset %d has length %d", marker, pos, segLen)
		}
		end := pos + 2 + segLen

		if marker == markerAPP1 && segLen >= 2+len(exifHeader)+1 {
			headerEnd := pos + 4 + len(exifHeader) + 1
			if headerEnd > len(b) {
				return needMore(headerEnd-len(b), st)
			}
			if bytes.Equal(b[pos+4:pos+4+len(exifHeader)], exifHeader) {
				if end > len(b) {
					return needMore(end-len(b), st)
				}
				return decodeTIFFBlock(b[headerEnd:end], "jpeg")
			}
		}

		pos = end
	}
}

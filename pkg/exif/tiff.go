package exif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

const (
	tagExifIFD    = 0x8769
	tagGPSIFD     = 0x8825
	tagInteropIFD = 0xa005

	maxIFDs       = 16
	maxIFDEntries = 4096
)

// Size in bytes of one element of each TIFF field type.
var typeSizes = map[uint16]uint64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// tiffLayout is the structural summary of a TIFF block.
type tiffLayout struct {
	// need is the length required to read every IFD goexif will visit,
	// including out-of-line values. It only grows as more bytes are seen.
	need int
	// ifd0 holds the tag IDs found in the primary IFD.
	ifd0 map[uint16]bool
}

type ifdRef struct {
	offset  uint32
	chain   bool
	primary bool
}

// walkTIFF follows the IFD0 chain and the Exif, GPS and interoperability
// sub-IFDs. When b is too short to see an IFD it stops and reports the
// bytes needed so far; the caller retries with a longer prefix.
func walkTIFF(b []byte) (tiffLayout, error) {
	layout := tiffLayout{need: 8, ifd0: map[uint16]bool{}}
	if len(b) < 8 {
		return layout, nil
	}

	var order binary.ByteOrder
	switch string(b[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return layout, fmt.Errorf("tiff: bad byte order %q", b[:2])
	}
	if order.Uint16(b[2:]) != 42 {
		return layout, fmt.Errorf("tiff: bad magic %d", order.Uint16(b[2:]))
	}

	queue := []ifdRef{{offset: order.Uint32(b[4:]), chain: true, primary: true}}
	seen := make(map[uint32]bool)

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		if seen[ref.offset] {
			continue
		}
		if len(seen) == maxIFDs {
			return layout, fmt.Errorf("tiff: more than %d IFDs", maxIFDs)
		}
		seen[ref.offset] = true
		if ref.offset < 8 {
			return layout, fmt.Errorf("tiff: IFD offset %d inside header", ref.offset)
		}

		off := int(ref.offset)
		if off+2 > len(b) {
			layout.need = max(layout.need, off+2)
			return layout, nil
		}
		n := int(order.Uint16(b[off:]))
		if n > maxIFDEntries {
			return layout, fmt.Errorf("tiff: IFD at %d has %d entries", off, n)
		}
		end := off + 2 + 12*n + 4
		layout.need = max(layout.need, end)
		if end > len(b) {
			return layout, nil
		}

		for i := 0; i < n; i++ {
			e := b[off+2+12*i:]
			tag := order.Uint16(e)
			size, known := typeSizes[order.Uint16(e[2:])]
			count := uint64(order.Uint32(e[4:]))
			value := order.Uint32(e[8:])

			if ref.primary {
				layout.ifd0[tag] = true
			}
			if !known {
				continue
			}
			if total := size * count; total > 4 {
				if total > maxChunkLen {
					return layout, fmt.Errorf("tiff: tag 0x%04x value of %d bytes", tag, total)
				}
				layout.need = max(layout.need, int(value)+int(total))
			}

			switch {
			case ref.primary && (tag == tagExifIFD || tag == tagGPSIFD):
				queue = append(queue, ifdRef{offset: value})
			case tag == tagInteropIFD:
				queue = append(queue, ifdRef{offset: value})
			}
		}

		if ref.chain {
			if next := order.Uint32(b[end-4:]); next != 0 {
				queue = append(queue, ifdRef{offset: next, chain: true})
			}
		}
	}
	return layout, nil
}

// decodeBareTIFF handles files that are themselves TIFF structures.
func decodeBareTIFF(b []byte, st scanState) retrieval.Decoded {
	layout, err := walkTIFF(b)
	if err != nil {
		return malformed("%v", err)
	}
	if layout.need > len(b) {
		return needMore(layout.need-len(b), st)
	}
	return parseTIFF(b, layout)
}

// decodeTIFFBlock handles a complete Exif payload cut out of a container.
func decodeTIFFBlock(block []byte, container string) retrieval.Decoded {
	layout, err := walkTIFF(block)
	if err != nil {
		return malformed("%s: %v", container, err)
	}
	if layout.need > len(block) {
		return malformed("%s: Exif block of %d bytes references offset %d", container, len(block), layout.need)
	}
	return parseTIFF(block, layout)
}

// structural pointers are not metadata.
var pointerFields = map[goexif.FieldName]bool{
	goexif.ExifIFDPointer:             true,
	goexif.GPSInfoIFDPointer:          true,
	goexif.InteroperabilityIFDPointer: true,
}

func parseTIFF(data []byte, layout tiffLayout) (res retrieval.Decoded) {
	defer func() {
		if r := recover(); r != nil {
			res = malformed("exif: decoder panic: %v", r)
		}
	}()

	x, err := goexif.Decode(bytes.NewReader(data))
	if x == nil {
		return malformed("exif: %v", err)
	}
	if err != nil {
		logger.Debug("Exif decoded with errors: %v", err)
	}

	w := &recordWalker{tags: make(map[string]retrieval.Value), ifd0: layout.ifd0}
	if err := x.Walk(w); err != nil {
		return malformed("exif: %v", err)
	}
	if len(w.tags) == 0 {
		return notPresent("exif: block carries no known tags")
	}
	return retrieval.Decoded{Status: retrieval.DecodeComplete, Record: retrieval.NewRecord(w.tags)}
}

// recordWalker converts goexif tags into record values.
type recordWalker struct {
	tags map[string]retrieval.Value
	ifd0 map[uint16]bool
}

func (w *recordWalker) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	if pointerFields[name] {
		return nil
	}
	v := retrieval.Value{ID: tag.Id, IFD: ifdOf(string(name), tag.Id, w.ifd0)}

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		v.Type = retrieval.TypeString
		v.Str = strings.TrimRight(s, "\x00 ")
	case tiff.IntVal:
		v.Type = retrieval.TypeInteger
		for i := 0; i < int(tag.Count); i++ {
			n, err := tag.Int64(i)
			if err != nil {
				break
			}
			v.Integers = append(v.Integers, n)
		}
	case tiff.RatVal:
		v.Type = retrieval.TypeRational
		for i := 0; i < int(tag.Count); i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				break
			}
			v.Rationals = append(v.Rationals, retrieval.Rational{Num: num, Den: den})
		}
	default:
		v.Type = retrieval.TypeBytes
		v.Raw = append([]byte(nil), tag.Val...)
	}

	w.tags[string(name)] = v
	return nil
}

func ifdOf(name string, id uint16, ifd0 map[uint16]bool) string {
	switch {
	case strings.HasPrefix(name, "GPS"):
		return "GPS"
	case strings.HasPrefix(name, "Interoperability"):
		return "Interop"
	case ifd0[id]:
		return "IFD0"
	default:
		return "Exif"
	}
}

// Package exiftest builds small, valid TIFF/Exif blocks and image
// containers carrying them, for decoder and end-to-end tests.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// TIFF field types.
const (
	TypeByte      uint16 = 1
	TypeASCII     uint16 = 2
	TypeShort     uint16 = 3
	TypeLong      uint16 = 4
	TypeRational  uint16 = 5
	TypeUndefined uint16 = 7
)

// Entry is one IFD entry with its value already encoded in the target byte
// order by the helper constructors.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	value func(order binary.ByteOrder) []byte
}

func ASCII(tag uint16, s string) Entry {
	b := append([]byte(s), 0)
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(b)), value: func(binary.ByteOrder) []byte { return b }}
}

func Short(tag uint16, values ...uint16) Entry {
	return Entry{Tag: tag, Type: TypeShort, Count: uint32(len(values)), value: func(o binary.ByteOrder) []byte {
		b := make([]byte, 2*len(values))
		for i, v := range values {
			o.PutUint16(b[2*i:], v)
		}
		return b
	}}
}

func Long(tag uint16, values ...uint32) Entry {
	return Entry{Tag: tag, Type: TypeLong, Count: uint32(len(values)), value: func(o binary.ByteOrder) []byte {
		b := make([]byte, 4*len(values))
		for i, v := range values {
			o.PutUint32(b[4*i:], v)
		}
		return b
	}}
}

// Rational takes numerator/denominator pairs.
func Rational(tag uint16, pairs ...uint32) Entry {
	return Entry{Tag: tag, Type: TypeRational, Count: uint32(len(pairs) / 2), value: func(o binary.ByteOrder) []byte {
		b := make([]byte, 4*len(pairs))
		for i, v := range pairs {
			o.PutUint32(b[4*i:], v)
		}
		return b
	}}
}

func Undefined(tag uint16, data []byte) Entry {
	return Entry{Tag: tag, Type: TypeUndefined, Count: uint32(len(data)), value: func(binary.ByteOrder) []byte { return data }}
}

// Fields groups the entries of each IFD. Exif and GPS pointers are added
// to IFD0 automatically when their IFDs are non-empty.
type Fields struct {
	IFD0 []Entry
	Exif []Entry
	GPS  []Entry
}

// Sample returns a typical camera record.
func Sample() Fields {
	return Fields{
		IFD0: []Entry{
			ASCII(0x010f, "FUJIFILM"),
			ASCII(0x0110, "X100V"),
			Short(0x0112, 1),
			ASCII(0x0132, "2024:05:17 14:03:22"),
		},
		Exif: []Entry{
			Rational(0x829a, 1, 250),
			Rational(0x829d, 28, 10),
			Short(0x8827, 200),
			ASCII(0x9003, "2024:05:17 14:03:22"),
			Rational(0x920a, 23, 1),
			Short(0xa405, 35),
			ASCII(0xa434, "XF23mmF2 R WR"),
		},
		GPS: []Entry{
			ASCII(0x0001, "N"),
			Rational(0x0002, 45, 1, 30, 1, 0, 1),
			ASCII(0x0003, "E"),
			Rational(0x0004, 9, 1, 11, 1, 2400, 100),
		},
	}
}

const (
	tagExifIFD = 0x8769
	tagGPSIFD  = 0x8825
)

// TIFF encodes f as a TIFF structure in the given byte order.
func TIFF(order binary.ByteOrder, f Fields) []byte {
	ifd0 := append([]Entry(nil), f.IFD0...)
	if len(f.Exif) > 0 {
		ifd0 = append(ifd0, Long(tagExifIFD, 0))
	}
	if len(f.GPS) > 0 {
		ifd0 = append(ifd0, Long(tagGPSIFD, 0))
	}

	exifStart := uint32(8) + ifdSize(ifd0, order)
	gpsStart := exifStart + ifdSize(f.Exif, order)
	for i, e := range ifd0 {
		switch e.Tag {
		case tagExifIFD:
			ifd0[i] = Long(tagExifIFD, exifStart)
		case tagGPSIFD:
			ifd0[i] = Long(tagGPSIFD, gpsStart)
		}
	}

	var buf bytes.Buffer
	if order == binary.LittleEndian {
		buf.WriteString("II")
	} else {
		buf.WriteString("MM")
	}
	hdr := make([]byte, 6)
	order.PutUint16(hdr, 42)
	order.PutUint32(hdr[2:], 8)
	buf.Write(hdr)

	buf.Write(encodeIFD(ifd0, 8, order))
	if len(f.Exif) > 0 {
		buf.Write(encodeIFD(f.Exif, exifStart, order))
	}
	if len(f.GPS) > 0 {
		buf.Write(encodeIFD(f.GPS, gpsStart, order))
	}
	return buf.Bytes()
}

func ifdSize(entries []Entry, order binary.ByteOrder) uint32 {
	if len(entries) == 0 {
		return 0
	}
	size := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if v := e.value(order); len(v) > 4 {
			size += uint32(len(v) + len(v)%2)
		}
	}
	return size
}

func encodeIFD(entries []Entry, start uint32, order binary.ByteOrder) []byte {
	head := make([]byte, 2+12*len(entries)+4)
	order.PutUint16(head, uint16(len(entries)))

	var data []byte
	dataStart := start + uint32(len(head))
	for i, e := range entries {
		p := head[2+12*i:]
		order.PutUint16(p, e.Tag)
		order.PutUint16(p[2:], e.Type)
		order.PutUint32(p[4:], e.Count)
		v := e.value(order)
		if len(v) <= 4 {
			copy(p[8:12], v)
			continue
		}
		order.PutUint32(p[8:], dataStart+uint32(len(data)))
		data = append(data, v...)
		if len(v)%2 == 1 {
			data = append(data, 0)
		}
	}
	return append(head, data...)
}

// Segment is a raw JPEG marker segment.
type Segment struct {
	Marker  byte
	Payload []byte
}

// JPEG wraps tiffData in an APP1 Exif segment placed after the given
// leading segments, followed by a minimal scan. A nil tiffData produces a
// JPEG without Exif.
func JPEG(tiffData []byte, leading ...Segment) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8})
	writeSegment(&buf, 0xe0, append([]byte("JFIF\x00"), 1, 1, 0, 0, 1, 0, 1, 0, 0))
	for _, s := range leading {
		writeSegment(&buf, s.Marker, s.Payload)
	}
	if tiffData != nil {
		writeSegment(&buf, 0xe1, append([]byte("Exif\x00\x00"), tiffData...))
	}
	writeSegment(&buf, 0xdb, bytes.Repeat([]byte{1}, 65))
	writeSegment(&buf, 0xda, []byte{1, 1, 0, 0, 0x3f, 0})
	buf.Write(bytes.Repeat([]byte{0x55}, 512))
	buf.Write([]byte{0xff, 0xd9})
	return buf.Bytes()
}

func writeSegment(buf *bytes.Buffer, marker byte, payload []byte) {
	buf.Write([]byte{0xff, marker})
	_ = binary.Write(buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
}

// Padding returns an APPn segment of n payload bytes, useful to push the
// Exif block further into the file.
func Padding(marker byte, n int) Segment {
	return Segment{Marker: marker, Payload: bytes.Repeat([]byte{0xaa}, n)}
}

// PNG builds a minimal PNG with an eXIf chunk before IDAT when tiffData is
// non-nil, or after IDAT when late is set.
func PNG(tiffData []byte, late bool) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr, 1)
	binary.BigEndian.PutUint32(ihdr[4:], 1)
	ihdr[8], ihdr[9] = 8, 2
	writeChunk(&buf, "IHDR", ihdr)
	if tiffData != nil && !late {
		writeChunk(&buf, "eXIf", tiffData)
	}
	writeChunk(&buf, "IDAT", bytes.Repeat([]byte{0}, 64))
	if tiffData != nil && late {
		writeChunk(&buf, "eXIf", tiffData)
	}
	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(data)))
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	buf.WriteString(typ)
	buf.Write(data)
	_ = binary.Write(buf, binary.BigEndian, crc.Sum32())
}

// WebP builds a VP8X WebP whose EXIF chunk follows the image data.
func WebP(tiffData []byte) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	vp8x := make([]byte, 10)
	if tiffData != nil {
		vp8x[0] = 0x08
	}
	writeRIFFChunk(&body, "VP8X", vp8x)
	writeRIFFChunk(&body, "VP8 ", bytes.Repeat([]byte{0x11}, 301))
	if tiffData != nil {
		writeRIFFChunk(&body, "EXIF", tiffData)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(body.Len()))
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func writeRIFFChunk(buf *bytes.Buffer, fourcc string, data []byte) {
	buf.WriteString(fourcc)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}

package exif

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fotoprobe/internal/testutil/exiftest"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// growUntilDone feeds the decoder prefixes of data, extending by the
// returned hint each time, the way the orchestrator does.
func growUntilDone(t *testing.T, d *Decoder, data []byte) (retrieval.Decoded, int) {
	t.Helper()
	var (
		n     int
		state retrieval.ParserState
	)
	for i := 0; i < 64; i++ {
		res := d.Decode(data[:n], state)
		if res.Status != retrieval.DecodeNeedMore {
			return res, n
		}
		require.Positive(t, res.Hint, "NeedMore without a hint at %d bytes", n)
		n += int(res.Hint)
		require.LessOrEqual(t, n, len(data), "hint points past the end of the file")
		state = res.State
	}
	t.Fatalf("decoder did not settle")
	return retrieval.Decoded{}, 0
}

func assertSameRecord(t *testing.T, want, got *retrieval.MetadataRecord) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	for _, name := range want.Names() {
		a, _ := want.Get(name)
		b, _ := got.Get(name)
		assert.True(t, a.Equal(b), "tag %s differs: %v vs %v", name, a, b)
	}
}

func sampleTIFF(order binary.ByteOrder) []byte {
	return exiftest.TIFF(order, exiftest.Sample())
}

// ============================================================================
// Containers
// ============================================================================

func TestDecode_Containers(t *testing.T) {
	orders := map[string]binary.ByteOrder{"LittleEndian": binary.LittleEndian, "BigEndian": binary.BigEndian}

	for name, order := range orders {
		tiffData := sampleTIFF(order)
		files := map[string][]byte{
			"JPEG": exiftest.JPEG(tiffData),
			"PNG":  exiftest.PNG(tiffData, false),
			"WebP": exiftest.WebP(tiffData),
			"TIFF": tiffData,
		}
		for container, data := range files {
			t.Run(container+name, func(t *testing.T) {
				res := NewDecoder().Decode(data, nil)
				require.Equal(t, retrieval.DecodeComplete, res.Status, res.Detail)

				r := res.Record
				assert.Equal(t, "FUJIFILM", r.String("Make"))
				assert.Equal(t, "X100V", r.String("Model"))
				assert.Equal(t, "XF23mmF2 R WR", r.String("LensModel"))
				assert.Equal(t, "2024:05:17 14:03:22", r.String("DateTimeOriginal"))

				exp, ok := r.Rational("ExposureTime", 0)
				require.True(t, ok)
				assert.Equal(t, retrieval.Rational{Num: 1, Den: 250}, exp)

				iso, ok := r.Integer("ISOSpeedRatings", 0)
				require.True(t, ok)
				assert.Equal(t, int64(200), iso)

				mk, _ := r.Get("Make")
				assert.Equal(t, "IFD0", mk.IFD)
				assert.Equal(t, uint16(0x010f), mk.ID)
				fnum, _ := r.Get("FNumber")
				assert.Equal(t, "Exif", fnum.IFD)
				lat, _ := r.Get("GPSLatitude")
				assert.Equal(t, "GPS", lat.IFD)
				assert.Len(t, lat.Rationals, 3)

				_, ok = r.Get("ExifIFDPointer")
				assert.False(t, ok)
			})
		}
	}
}

func TestDecode_NotPresent(t *testing.T) {
	t.Run("JPEGWithoutExif", func(t *testing.T) {
		res := NewDecoder().Decode(exiftest.JPEG(nil), nil)
		assert.Equal(t, retrieval.DecodeNotPresent, res.Status)
		assert.Contains(t, res.Detail, "jpeg")
	})

	t.Run("PNGExifAfterImageData", func(t *testing.T) {
		res := NewDecoder().Decode(exiftest.PNG(sampleTIFF(binary.BigEndian), true), nil)
		assert.Equal(t, retrieval.DecodeNotPresent, res.Status)
	})

	t.Run("PNGWithoutExif", func(t *testing.T) {
		res := NewDecoder().Decode(exiftest.PNG(nil, false), nil)
		assert.Equal(t, retrieval.DecodeNotPresent, res.Status)
	})

	t.Run("WebPFlagClear", func(t *testing.T) {
		res := NewDecoder().Decode(exiftest.WebP(nil), nil)
		assert.Equal(t, retrieval.DecodeNotPresent, res.Status)
	})

	t.Run("UnknownContainer", func(t *testing.T) {
		res := NewDecoder().Decode([]byte("GIF89a......binary"), nil)
		assert.Equal(t, retrieval.DecodeNotPresent, res.Status)
		assert.Equal(t, "unrecognized container", res.Detail)
	})

	t.Run("ExifWithOnlyUnknownTags", func(t *testing.T) {
		tiffData := exiftest.TIFF(binary.LittleEndian, exiftest.Fields{
			IFD0: []exiftest.Entry{exiftest.Short(0xc000, 7)},
		})
		res := NewDecoder().Decode(exiftest.JPEG(tiffData), nil)
		assert.Equal(t, retrieval.DecodeNotPresent, res.Status)
	})
}

func TestDecode_Malformed(t *testing.T) {
	t.Run("BadTIFFHeaderInJPEG", func(t *testing.T) {
		res := NewDecoder().Decode(exiftest.JPEG([]byte("XX*\x00\x08\x00\x00\x00\x00\x00")), nil)
		assert.Equal(t, retrieval.DecodeMalformed, res.Status)
		assert.Contains(t, res.Detail, "jpeg")
	})

	t.Run("TruncatedExifBlock", func(t *testing.T) {
		tiffData := sampleTIFF(binary.LittleEndian)
		res := NewDecoder().Decode(exiftest.JPEG(tiffData[:40]), nil)
		assert.Equal(t, retrieval.DecodeMalformed, res.Status)
	})

	t.Run("SegmentLengthTooSmall", func(t *testing.T) {
		data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x01, 0x00, 0x00}
		res := NewDecoder().Decode(data, nil)
		assert.Equal(t, retrieval.DecodeMalformed, res.Status)
	})

	t.Run("MissingMarker", func(t *testing.T) {
		data := []byte{0xff, 0xd8, 0x00, 0xe0, 0x00, 0x10}
		res := NewDecoder().Decode(data, nil)
		assert.Equal(t, retrieval.DecodeMalformed, res.Status)
	})

	t.Run("NextIFDInsideHeader", func(t *testing.T) {
		data := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0, 4, 0, 0, 0}
		res := NewDecoder().Decode(data, nil)
		assert.Equal(t, retrieval.DecodeMalformed, res.Status)
	})

	t.Run("PNGHugeChunk", func(t *testing.T) {
		var b bytes.Buffer
		b.WriteString("\x89PNG\r\n\x1a\n")
		b.Write([]byte{0x7f, 0xff, 0xff, 0xff})
		b.WriteString("tEXt")
		res := NewDecoder().Decode(b.Bytes(), nil)
		assert.Equal(t, retrieval.DecodeMalformed, res.Status)
	})
}

// ============================================================================
// Incremental decoding
// ============================================================================

func TestDecode_NeedMore(t *testing.T) {
	t.Run("EmptyPrefix", func(t *testing.T) {
		res := NewDecoder().Decode(nil, nil)
		require.Equal(t, retrieval.DecodeNeedMore, res.Status)
		assert.Equal(t, uint64(sniffLen), res.Hint)
	})

	t.Run("ExifBeyondPrefix", func(t *testing.T) {
		data := exiftest.JPEG(sampleTIFF(binary.BigEndian), exiftest.Padding(0xe2, 10000))
		res := NewDecoder().Decode(data[:4096], nil)
		require.Equal(t, retrieval.DecodeNeedMore, res.Status)
		assert.Positive(t, res.Hint)
	})

	t.Run("HintsReachExif", func(t *testing.T) {
		data := exiftest.JPEG(sampleTIFF(binary.BigEndian), exiftest.Padding(0xe2, 10000), exiftest.Padding(0xed, 30000))
		res, n := growUntilDone(t, NewDecoder(), data)
		require.Equal(t, retrieval.DecodeComplete, res.Status, res.Detail)
		assert.Less(t, n, len(data))
		assert.Equal(t, "FUJIFILM", res.Record.String("Make"))
	})

	t.Run("BareTIFFHints", func(t *testing.T) {
		data := sampleTIFF(binary.LittleEndian)
		res, n := growUntilDone(t, NewDecoder(), data)
		require.Equal(t, retrieval.DecodeComplete, res.Status, res.Detail)
		assert.LessOrEqual(t, n, len(data))
	})
}

func TestDecode_ResumeMatchesFreshDecode(t *testing.T) {
	tiffData := sampleTIFF(binary.LittleEndian)
	files := map[string][]byte{
		"JPEG": exiftest.JPEG(tiffData, exiftest.Padding(0xe2, 300)),
		"PNG":  exiftest.PNG(tiffData, false),
		"WebP": exiftest.WebP(tiffData),
		"TIFF": tiffData,
	}

	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			d := NewDecoder()
			fresh := d.Decode(data, nil)
			require.Equal(t, retrieval.DecodeComplete, fresh.Status, fresh.Detail)

			var state retrieval.ParserState
			var last retrieval.Decoded
			for n := 0; n <= len(data); n++ {
				last = d.Decode(data[:n], state)
				if last.Status != retrieval.DecodeNeedMore {
					break
				}
				state = last.State
			}
			require.Equal(t, retrieval.DecodeComplete, last.Status, last.Detail)
			assertSameRecord(t, fresh.Record, last.Record)
		})
	}
}

func TestDecode_Idempotent(t *testing.T) {
	data := exiftest.JPEG(sampleTIFF(binary.BigEndian))
	d := NewDecoder()

	first := d.Decode(data, nil)
	second := d.Decode(data, nil)

	require.Equal(t, retrieval.DecodeComplete, first.Status)
	require.Equal(t, first.Status, second.Status)
	assertSameRecord(t, first.Record, second.Record)
}

func TestDecode_StaleStateIsIgnored(t *testing.T) {
	data := exiftest.JPEG(sampleTIFF(binary.BigEndian))
	d := NewDecoder()

	res := d.Decode(data, scanState{format: formatJPEG, next: len(data) + 100})
	assert.Equal(t, retrieval.DecodeComplete, res.Status)

	res = d.Decode(data, "not a scan state")
	assert.Equal(t, retrieval.DecodeComplete, res.Status)
}

func TestDecoder_Incremental(t *testing.T) {
	var d retrieval.Decoder = NewDecoder()
	inc, ok := d.(retrieval.IncrementalDecoder)
	require.True(t, ok)
	assert.True(t, inc.Incremental())
}

package exif

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

const (
	unknownCamera     = "Unknown Camera"
	unknownLens       = "Unknown Lens"
	unknownParameters = "Parameters Unknown"
	unknownDate       = "Unknown"
)

// Coordinates is a decimal GPS position. Negative latitude is south and
// negative longitude is west.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (c Coordinates) String() string {
	ns, ew := 'N', 'E'
	if c.Latitude < 0 {
		ns = 'S'
	}
	if c.Longitude < 0 {
		ew = 'W'
	}
	return fmt.Sprintf("%.6f° %c, %.6f° %c", math.Abs(c.Latitude), ns, math.Abs(c.Longitude), ew)
}

// Summary is the human-oriented view of a record. Empty strings mean the
// value was absent.
type Summary struct {
	Title       string
	Camera      string
	Lens        string
	FocalLength string
	Aperture    string
	Shutter     string
	ISO         string
	DateTime    string
	Location    string
	GPS         *Coordinates
}

// Summarize extracts display values from a record. A nil record yields the
// unknown placeholders.
func Summarize(r *retrieval.MetadataRecord) Summary {
	s := Summary{
		Title:    r.String("ImageDescription"),
		Camera:   camera(r),
		Lens:     lens(r),
		Aperture: aperture(r),
		Shutter:  shutter(r),
		ISO:      iso(r),
		DateTime: datetime(r),
		Location: location(r),
		GPS:      gps(r),
	}
	s.FocalLength = focalLength(r)
	return s
}

// Parameters joins focal length, aperture, shutter and ISO.
func (s Summary) Parameters() string {
	var parts []string
	for _, p := range []string{s.FocalLength, s.Aperture, s.Shutter, s.ISO} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return unknownParameters
	}
	return strings.Join(parts, ", ")
}

// Caption renders the summary as a short multi-line text.
func (s Summary) Caption() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", s.Title)
	fmt.Fprintf(&b, "Camera: %s / %s\n", s.Camera, s.Lens)
	fmt.Fprintf(&b, "Parameters: %s\n", s.Parameters())
	date := s.DateTime
	if date == "" {
		date = unknownDate
	}
	fmt.Fprintf(&b, "Date: %s", date)
	if s.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", s.Location)
	}
	if s.GPS != nil {
		fmt.Fprintf(&b, "\nGPS: %s", s.GPS)
	}
	return b.String()
}

func camera(r *retrieval.MetadataRecord) string {
	maker, model := r.String("Make"), r.String("Model")
	switch {
	case maker != "" && model != "":
		return maker + " " + model
	case maker != "":
		return maker
	case model != "":
		return model
	}
	return unknownCamera
}

func lens(r *retrieval.MetadataRecord) string {
	if m := r.String("LensModel"); m != "" {
		return m
	}
	v, ok := r.Get("LensSpecification")
	if !ok || v.Type != retrieval.TypeRational || len(v.Rationals) < 4 {
		return unknownLens
	}
	fmin, fmax := v.Rationals[0].Float(), v.Rationals[1].Float()
	amin, amax := v.Rationals[2].Float(), v.Rationals[3].Float()

	focal := fmt.Sprintf("%.0f-%.0fmm", math.Round(fmin), math.Round(fmax))
	if math.Abs(fmin-fmax) < 0.5 {
		focal = fmt.Sprintf("%.0fmm", math.Round(fmin))
	}
	ap := formatFNumber(amin) + "-" + formatFNumber(amax)
	if math.Abs(amin-amax) < 0.1 {
		ap = formatFNumber(amin)
	}
	return focal + " " + ap
}

// focalLength prefers the actual focal length unless the 35mm equivalent
// differs from it.
func focalLength(r *retrieval.MetadataRecord) string {
	var (
		actual, eq       string
		actualVal, eqVal float64
		hasActual, hasEq bool
	)
	if rat, ok := r.Rational("FocalLength", 0); ok && rat.Den != 0 {
		actualVal, hasActual = rat.Float(), true
		actual = fmt.Sprintf("%.1fmm", actualVal)
		if math.Abs(actualVal-math.Round(actualVal)) < 0.1 {
			actual = fmt.Sprintf("%.0fmm", math.Round(actualVal))
		}
	}
	if n, ok := r.Integer("FocalLengthIn35mmFilm", 0); ok {
		eqVal, hasEq = float64(n), true
		eq = fmt.Sprintf("%dmm (35mm eq)", n)
	}

	switch {
	case !hasEq:
		return actual
	case hasActual && math.Abs(actualVal-eqVal) < 0.5:
		return actual
	}
	return eq
}

func aperture(r *retrieval.MetadataRecord) string {
	if rat, ok := r.Rational("FNumber", 0); ok && rat.Den != 0 {
		return formatFNumber(rat.Float())
	}
	// ApertureValue is in APEX units.
	if rat, ok := r.Rational("ApertureValue", 0); ok && rat.Den != 0 {
		return formatFNumber(math.Pow(2, rat.Float()/2))
	}
	return ""
}

func formatFNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "f/--"
	}
	if math.Abs(v-math.Round(v)) < 0.05 {
		return fmt.Sprintf("f/%.0f", math.Round(v))
	}
	return fmt.Sprintf("f/%.1f", v)
}

func shutter(r *retrieval.MetadataRecord) string {
	var v float64
	if rat, ok := r.Rational("ExposureTime", 0); ok && rat.Den != 0 {
		v = rat.Float()
	} else if rat, ok := r.Rational("ShutterSpeedValue", 0); ok && rat.Den != 0 {
		// APEX: exposure = 2^-Tv.
		v = math.Pow(2, -rat.Float())
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}

	if v >= 1 {
		if math.Abs(v-math.Round(v)) < 0.01 {
			return fmt.Sprintf("%.0fs", math.Round(v))
		}
		return fmt.Sprintf("%.2fs", v)
	}
	recip := math.Round(1 / v)
	if math.Abs(1/recip-v) < 0.01 && recip <= 8000 {
		return fmt.Sprintf("1/%.0fs", recip)
	}
	return fmt.Sprintf("%.3fs", v)
}

func iso(r *retrieval.MetadataRecord) string {
	for _, name := range []string{"ISOSpeedRatings", "PhotographicSensitivity", "ISOSpeed"} {
		if n, ok := r.Integer(name, 0); ok {
			return fmt.Sprintf("ISO %d", n)
		}
	}
	return ""
}

func datetime(r *retrieval.MetadataRecord) string {
	for _, name := range []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"} {
		if s := strings.TrimSpace(strings.Trim(r.String(name), "\x00")); s != "" {
			return formatDateTime(s)
		}
	}
	return ""
}

// formatDateTime turns "YYYY:MM:DD HH:MM:SS" into "YYYY-MM-DD HH:MM:SS".
// Shorter strings are returned as they are.
func formatDateTime(s string) string {
	if len(s) < 19 {
		return s
	}
	return strings.ReplaceAll(s[:10], ":", "-") + " " + s[11:19]
}

// location reads GPSAreaInformation, which is usually UNDEFINED with an
// 8-byte character code prefix.
func location(r *retrieval.MetadataRecord) string {
	v, ok := r.Get("GPSAreaInformation")
	if !ok {
		return ""
	}
	s := v.Str
	if v.Type == retrieval.TypeBytes {
		raw := v.Raw
		if len(raw) >= 8 && strings.HasPrefix(string(raw[:8]), "ASCII") {
			raw = raw[8:]
		}
		s = string(raw)
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func gps(r *retrieval.MetadataRecord) *Coordinates {
	lat, ok := dms(r, "GPSLatitude")
	if !ok {
		return nil
	}
	lon, ok := dms(r, "GPSLongitude")
	if !ok {
		return nil
	}
	if gpsRef(r.String("GPSLatitudeRef"), 'N') == 'S' {
		lat = -lat
	}
	if gpsRef(r.String("GPSLongitudeRef"), 'E') == 'W' {
		lon = -lon
	}
	return &Coordinates{Latitude: lat, Longitude: lon}
}

func dms(r *retrieval.MetadataRecord, name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok || v.Type != retrieval.TypeRational || len(v.Rationals) < 3 {
		return 0, false
	}
	var parts [3]float64
	for i := range parts {
		if v.Rationals[i].Den == 0 {
			return 0, false
		}
		parts[i] = v.Rationals[i].Float()
	}
	return parts[0] + parts[1]/60 + parts[2]/3600, true
}

// gpsRef takes the first letter of ref, falling back to def when it is not
// a compass direction.
func gpsRef(ref string, def rune) rune {
	for _, c := range ref {
		if !unicode.IsLetter(c) || c > unicode.MaxASCII {
			continue
		}
		c = unicode.ToUpper(c)
		if strings.ContainsRune("NSEW", c) {
			return c
		}
		return def
	}
	return def
}

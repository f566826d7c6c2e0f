package retrieval

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueType is the shape of a decoded tag value.
type ValueType int

const (
	TypeString ValueType = iota
	TypeRational
	TypeInteger
	TypeBytes
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeRational:
		return "rational"
	case TypeInteger:
		return "integer"
	default:
		return "bytes"
	}
}

// Rational is an unreduced fraction as stored in TIFF.
type Rational struct {
	Num int64
	Den int64
}

// Float returns Num/Den, or 0 for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Value is one decoded tag. Exactly one of the payload fields is set,
// according to Type.
type Value struct {
	ID   uint16
	IFD  string
	Type ValueType

	Str       string
	Rationals []Rational
	Integers  []int64
	Raw       []byte
}

func (v Value) clone() Value {
	out := v
	if v.Rationals != nil {
		out.Rationals = append([]Rational(nil), v.Rationals...)
	}
	if v.Integers != nil {
		out.Integers = append([]int64(nil), v.Integers...)
	}
	if v.Raw != nil {
		out.Raw = bytes.Clone(v.Raw)
	}
	return out
}

// Equal compares type and payload.
func (v Value) Equal(o Value) bool {
	if v.ID != o.ID || v.IFD != o.IFD || v.Type != o.Type || v.Str != o.Str {
		return false
	}
	if len(v.Rationals) != len(o.Rationals) || len(v.Integers) != len(o.Integers) {
		return false
	}
	for i := range v.Rationals {
		if v.Rationals[i] != o.Rationals[i] {
			return false
		}
	}
	for i := range v.Integers {
		if v.Integers[i] != o.Integers[i] {
			return false
		}
	}
	return bytes.Equal(v.Raw, o.Raw)
}

func (v Value) String() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeRational:
		parts := make([]string, len(v.Rationals))
		for i, r := range v.Rationals {
			parts[i] = r.String()
		}
		return strings.Join(parts, ", ")
	case TypeInteger:
		parts := make([]string, len(v.Integers))
		for i, n := range v.Integers {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ", ")
	default:
		if len(v.Raw) > 16 {
			return fmt.Sprintf("% x ... (%d bytes)", v.Raw[:16], len(v.Raw))
		}
		return fmt.Sprintf("% x", v.Raw)
	}
}

// MetadataRecord maps tag names to values. It is immutable: constructors
// and accessors copy.
type MetadataRecord struct {
	tags map[string]Value
}

// NewRecord builds a record from tags.
func NewRecord(tags map[string]Value) *MetadataRecord {
	m := make(map[string]Value, len(tags))
	for name, v := range tags {
		m[name] = v.clone()
	}
	return &MetadataRecord{tags: m}
}

// Get returns a copy of the named tag.
func (r *MetadataRecord) Get(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.tags[name]
	if !ok {
		return Value{}, false
	}
	return v.clone(), true
}

// Len returns the number of tags.
func (r *MetadataRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tags)
}

// Names returns tag names in sorted order.
func (r *MetadataRecord) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tags))
	for name := range r.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the first string value of name, or "".
func (r *MetadataRecord) String(name string) string {
	v, ok := r.Get(name)
	if !ok || v.Type != TypeString {
		return ""
	}
	return v.Str
}

// Rational returns element i of a rational tag.
func (r *MetadataRecord) Rational(name string, i int) (Rational, bool) {
	v, ok := r.Get(name)
	if !ok || v.Type != TypeRational || i >= len(v.Rationals) {
		return Rational{}, false
	}
	return v.Rationals[i], true
}

// Integer returns element i of an integer tag.
func (r *MetadataRecord) Integer(name string, i int) (int64, bool) {
	v, ok := r.Get(name)
	if !ok || v.Type != TypeInteger || i >= len(v.Integers) {
		return 0, false
	}
	return v.Integers[i], true
}

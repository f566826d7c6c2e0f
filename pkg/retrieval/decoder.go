package retrieval

// DecodeStatus is the verdict of one decode attempt.
type DecodeStatus int

const (
	// DecodeComplete: Record holds the metadata.
	DecodeComplete DecodeStatus = iota
	// DecodeNeedMore: the prefix ends inside the structure. Hint is the
	// minimum number of additional bytes known to be required, 0 if unknown.
	DecodeNeedMore
	// DecodeNotPresent: the object is structurally valid but has no metadata.
	DecodeNotPresent
	// DecodeMalformed: metadata structure present but unrecoverable.
	DecodeMalformed
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeComplete:
		return "complete"
	case DecodeNeedMore:
		return "need_more"
	case DecodeNotPresent:
		return "not_present"
	case DecodeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ParserState is decoder-private progress over a prefix. It may only record
// structure already validated, so handing it back with a longer prefix of
// the same object yields exactly what a fresh decode of that prefix would.
type ParserState any

// Decoded is the result of Decoder.Decode.
type Decoded struct {
	Status DecodeStatus
	Record *MetadataRecord
	Hint   uint64
	// Detail explains NotPresent and Malformed verdicts for logs.
	Detail string
	// State is passed to the next Decode call on a longer prefix.
	State ParserState
}

// Decoder extracts metadata from the leading bytes of an object.
//
// Decode must be a pure function of prefix; state only lets it skip
// re-validating structure it has already seen.
type Decoder interface {
	Decode(prefix []byte, state ParserState) Decoded
}

// IncrementalDecoder is implemented by decoders that can make use of a
// growing prefix when the object size is unknown. Decoders without it get
// a single read of the maximum size instead.
type IncrementalDecoder interface {
	Decoder
	Incremental() bool
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(prefix []byte, state ParserState) Decoded

func (f DecoderFunc) Decode(prefix []byte, state ParserState) Decoded {
	return f(prefix, state)
}

func isIncremental(d Decoder) bool {
	if id, ok := d.(IncrementalDecoder); ok {
		return id.Incremental()
	}
	return false
}

package retrieval

// SizerPolicy configures window growth.
type SizerPolicy struct {
	InitialWindow uint64
	MaxTotal      uint64
	GrowthFactor  uint64
}

// ProbeSizer picks successive read windows for one object. Windows are
// contiguous: each starts where the buffer ends. The length of each new
// window grows geometrically and every window end is clamped to MaxTotal
// and, when known, the declared size.
type ProbeSizer struct {
	policy   SizerPolicy
	limit    uint64
	singular bool
	last     uint64
	issued   int
}

// NewProbeSizer returns a sizer for an object of declaredSize bytes (0 if
// unknown). incremental tells whether the decoder can resume on a longer
// prefix; when the size is unknown and it cannot, the sizer issues a single
// window covering MaxTotal.
func NewProbeSizer(policy SizerPolicy, declaredSize uint64, incremental bool) *ProbeSizer {
	if policy.GrowthFactor < 1 {
		policy.GrowthFactor = 2
	}
	if policy.InitialWindow == 0 {
		policy.InitialWindow = policy.MaxTotal
	}
	limit := policy.MaxTotal
	if declaredSize > 0 && declaredSize < limit {
		limit = declaredSize
	}
	return &ProbeSizer{
		policy:   policy,
		limit:    limit,
		singular: declaredSize == 0 && !incremental,
	}
}

// Limit returns the highest offset any window may reach.
func (p *ProbeSizer) Limit() uint64 {
	return p.limit
}

// First returns the initial window. ok is false when nothing may be read.
func (p *ProbeSizer) First() (ByteWindow, bool) {
	length := p.policy.InitialWindow
	if p.singular {
		length = p.limit
	}
	return p.window(0, length)
}

// Next returns the window following a buffer of bufferLen bytes, after the
// decoder asked for at least hint more. ok is false once the limit is
// reached or the sizer was single-shot.
func (p *ProbeSizer) Next(bufferLen, hint uint64) (ByteWindow, bool) {
	if p.singular && p.issued > 0 {
		return ByteWindow{}, false
	}
	length := p.last * p.policy.GrowthFactor
	if length < p.last {
		length = p.limit
	}
	if hint > length {
		length = hint
	}
	return p.window(bufferLen, length)
}

func (p *ProbeSizer) window(offset, length uint64) (ByteWindow, bool) {
	if offset >= p.limit || length == 0 {
		return ByteWindow{}, false
	}
	if remaining := p.limit - offset; length > remaining {
		length = remaining
	}
	p.last = length
	p.issued++
	return ByteWindow{Offset: offset, Length: length}, true
}

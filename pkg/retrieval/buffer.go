package retrieval

// Buffer accumulates the leading bytes of one object. Appends must be
// contiguous: each chunk starts exactly where the previous one ended.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty buffer with capacity hint.
func NewBuffer(capacity uint64) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Append adds chunk at offset. An offset other than Len is a protocol
// violation and leaves the buffer unchanged.
func (b *Buffer) Append(offset uint64, chunk []byte) error {
	if offset != uint64(len(b.data)) {
		return Errorf(KindProtocol, "buffer.append", "chunk at offset %d, expected %d", offset, len(b.data))
	}
	b.data = append(b.data, chunk...)
	return nil
}

// Len returns the number of bytes received, which is also the next offset.
func (b *Buffer) Len() uint64 {
	return uint64(len(b.data))
}

// Bytes returns the accumulated prefix. Callers must not modify it.
func (b *Buffer) Bytes() []byte {
	return b.data[:len(b.data):len(b.data)]
}

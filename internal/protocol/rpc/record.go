package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FragmentHeader is the 4-byte record mark preceding each fragment.
type FragmentHeader struct {
	IsLast bool
	Length uint32
}

// ReadFragmentHeader reads one record mark.
func ReadFragmentHeader(r io.Reader) (FragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FragmentHeader{}, err
	}
	h := binary.BigEndian.Uint32(buf[:])
	return FragmentHeader{
		IsLast: h&lastFragmentBit != 0,
		Length: h & fragmentLengthMask,
	}, nil
}

// ReadRecord reads fragments until the last one and returns the
// reassembled record. maxSize bounds the total length; zero selects
// DefaultMaxRecordSize.
//
// io.EOF is returned unwrapped when the peer closes cleanly between
// records.
func ReadRecord(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxRecordSize
	}

	var record []byte
	for {
		h, err := ReadFragmentHeader(r)
		if err != nil {
			if err == io.EOF && record != nil {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if uint64(len(record))+uint64(h.Length) > uint64(maxSize) {
			return nil, fmt.Errorf("record exceeds %d bytes", maxSize)
		}

		start := len(record)
		record = append(record, make([]byte, h.Length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		if h.IsLast {
			return record, nil
		}
	}
}

package fetch

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// OpenRequest identifies a message.
//
// XDR:
//
//	struct OPEN3args {
//	    unsigned int peer;
//	    hyper        peer_id;
//	    hyper        access_hash;
//	    hyper        message_id;
//	};
type OpenRequest struct {
	Peer       uint32
	PeerID     int64
	AccessHash int64
	MessageID  int64
}

// OpenResponse carries the handle on success. Only Status is on the wire
// when Status is not StatusOK.
type OpenResponse struct {
	Status  uint32
	Handle  []byte
	Size    uint64
	Kind    uint32
	MaxRead uint32
	Mime    string
}

type openResOK struct {
	Handle  []byte
	Size    uint64
	Kind    uint32
	MaxRead uint32
	Mime    string
}

// ReadRequest asks for Count bytes at Offset.
type ReadRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

// ReadResponse carries the data on success. Only Status is on the wire
// when Status is not StatusOK.
type ReadResponse struct {
	Status uint32
	EOF    bool
	Data   []byte
}

type readResOK struct {
	EOF  bool
	Data []byte
}

// Encode serializes the request.
func (r *OpenRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, r); err != nil {
		return nil, fmt.Errorf("encode OPEN args: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeOpenRequest parses OPEN arguments.
func DecodeOpenRequest(data []byte) (*OpenRequest, error) {
	req := &OpenRequest{}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), req); err != nil {
		return nil, fmt.Errorf("decode OPEN args: %w", err)
	}
	return req, nil
}

// Encode serializes the response as a status-discriminated union.
func (r *OpenResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, r.Status); err != nil {
		return nil, fmt.Errorf("encode OPEN status: %w", err)
	}
	if r.Status != StatusOK {
		return buf.Bytes(), nil
	}
	ok := openResOK{Handle: r.Handle, Size: r.Size, Kind: r.Kind, MaxRead: r.MaxRead, Mime: r.Mime}
	if ok.Handle == nil {
		ok.Handle = []byte{}
	}
	if _, err := xdr.Marshal(&buf, &ok); err != nil {
		return nil, fmt.Errorf("encode OPEN result: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeOpenResponse parses an OPEN result and checks its limits.
func DecodeOpenResponse(data []byte) (*OpenResponse, error) {
	rd := bytes.NewReader(data)
	resp := &OpenResponse{}
	if _, err := xdr.Unmarshal(rd, &resp.Status); err != nil {
		return nil, fmt.Errorf("decode OPEN status: %w", err)
	}
	if resp.Status != StatusOK {
		return resp, nil
	}

	var ok openResOK
	if _, err := xdr.Unmarshal(rd, &ok); err != nil {
		return nil, fmt.Errorf("decode OPEN result: %w", err)
	}
	if len(ok.Handle) == 0 || len(ok.Handle) > MaxHandleSize {
		return nil, fmt.Errorf("decode OPEN result: handle of %d bytes", len(ok.Handle))
	}
	if len(ok.Mime) > MaxMimeLength {
		return nil, fmt.Errorf("decode OPEN result: mime type of %d bytes", len(ok.Mime))
	}
	resp.Handle, resp.Size, resp.Kind, resp.MaxRead, resp.Mime = ok.Handle, ok.Size, ok.Kind, ok.MaxRead, ok.Mime
	return resp, nil
}

// Encode serializes the request.
func (r *ReadRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	req := *r
	if req.Handle == nil {
		req.Handle = []byte{}
	}
	if _, err := xdr.Marshal(&buf, &req); err != nil {
		return nil, fmt.Errorf("encode READ args: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadRequest parses READ arguments.
func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	req := &ReadRequest{}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), req); err != nil {
		return nil, fmt.Errorf("decode READ args: %w", err)
	}
	if len(req.Handle) > MaxHandleSize {
		return nil, fmt.Errorf("decode READ args: handle of %d bytes", len(req.Handle))
	}
	return req, nil
}

// Encode serializes the response as a status-discriminated union.
func (r *ReadResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, r.Status); err != nil {
		return nil, fmt.Errorf("encode READ status: %w", err)
	}
	if r.Status != StatusOK {
		return buf.Bytes(), nil
	}
	ok := readResOK{EOF: r.EOF, Data: r.Data}
	if ok.Data == nil {
		ok.Data = []byte{}
	}
	if _, err := xdr.Marshal(&buf, &ok); err != nil {
		return nil, fmt.Errorf("encode READ result: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadResponse parses a READ result.
func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	rd := bytes.NewReader(data)
	resp := &ReadResponse{}
	if _, err := xdr.Unmarshal(rd, &resp.Status); err != nil {
		return nil, fmt.Errorf("decode READ status: %w", err)
	}
	if resp.Status != StatusOK {
		return resp, nil
	}

	var ok readResOK
	if _, err := xdr.Unmarshal(rd, &ok); err != nil {
		return nil, fmt.Errorf("decode READ result: %w", err)
	}
	if len(ok.Data) > MaxReadSize {
		return nil, fmt.Errorf("decode READ result: %d bytes exceeds %d", len(ok.Data), MaxReadSize)
	}
	resp.EOF, resp.Data = ok.EOF, ok.Data
	return resp, nil
}

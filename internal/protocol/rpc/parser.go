package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ReadCall parses an RPC call header from a reassembled record.
//
// After calling ReadCall, use ReadData to extract the procedure-specific
// parameters that follow the header.
func ReadCall(data []byte) (*RPCCallMessage, error) {
	call := &RPCCallMessage{}

	_, err := xdr.Unmarshal(bytes.NewReader(data), call)
	if err != nil {
		return nil, fmt.Errorf("unmarshal RPC call: %w", err)
	}

	if call.MsgType != RPCCall {
		return nil, fmt.Errorf("expected CALL (0), got %d", call.MsgType)
	}

	return call, nil
}

// ReadData returns the procedure parameters that follow the call header.
//
// Offsets are computed by hand because the parameter layout depends on the
// procedure:
//   - RPC header: 6 fields × 4 bytes = 24 bytes (XID through Procedure)
//   - Credentials: 4 bytes (flavor) + 4 bytes (length) + data + padding
//   - Verifier: 4 bytes (flavor) + 4 bytes (length) + data + padding
func ReadData(message []byte, call *RPCCallMessage) ([]byte, error) {
	offset := 24

	for _, field := range []string{"credential", "verifier"} {
		if offset+8 > len(message) {
			return nil, fmt.Errorf("truncated %s at offset %d", field, offset)
		}
		bodyLen := binary.BigEndian.Uint32(message[offset+4 : offset+8])
		offset += 8 + int(bodyLen) + int(XdrPadding(bodyLen))
	}

	if offset >= len(message) {
		return []byte{}, nil
	}
	return message[offset:], nil
}

// MakeCall encodes a complete, record-marked CALL message.
func MakeCall(xid, program, version, procedure uint32, cred OpaqueAuth, args []byte) ([]byte, error) {
	if cred.Body == nil {
		cred.Body = []byte{}
	}
	call := RPCCallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
		Cred:       cred,
		Verf:       OpaqueAuth{Flavor: AuthNull, Body: []byte{}},
	}

	buf := bytes.NewBuffer(make([]byte, 4, 4+40+len(cred.Body)+len(args)))
	if _, err := xdr.Marshal(buf, &call); err != nil {
		return nil, fmt.Errorf("marshal call: %w", err)
	}
	buf.Write(args)

	return markRecord(buf.Bytes()), nil
}

// ReadReply decodes a reply header from a reassembled record.
func ReadReply(message []byte) (*Reply, error) {
	r := bytes.NewReader(message)
	var head struct {
		XID        uint32
		MsgType    uint32
		ReplyState uint32
	}
	if _, err := xdr.Unmarshal(r, &head); err != nil {
		return nil, fmt.Errorf("unmarshal reply header: %w", err)
	}
	if head.MsgType != RPCReply {
		return nil, fmt.Errorf("expected REPLY (1), got %d", head.MsgType)
	}

	reply := &Reply{XID: head.XID, ReplyState: head.ReplyState}

	switch head.ReplyState {
	case RPCMsgAccepted:
		var body struct {
			Verf       OpaqueAuth
			AcceptStat uint32
		}
		if _, err := xdr.Unmarshal(r, &body); err != nil {
			return nil, fmt.Errorf("unmarshal accepted reply: %w", err)
		}
		reply.AcceptStat = body.AcceptStat
		switch body.AcceptStat {
		case RPCSuccess:
			reply.Data = message[len(message)-r.Len():]
		case RPCProgMismatch:
			if _, err := xdr.Unmarshal(r, &reply.Low); err != nil {
				return nil, fmt.Errorf("unmarshal mismatch range: %w", err)
			}
			if _, err := xdr.Unmarshal(r, &reply.High); err != nil {
				return nil, fmt.Errorf("unmarshal mismatch range: %w", err)
			}
		}

	case RPCMsgDenied:
		if _, err := xdr.Unmarshal(r, &reply.RejectStat); err != nil {
			return nil, fmt.Errorf("unmarshal reject status: %w", err)
		}
		switch reply.RejectStat {
		case RPCAuthError:
			if _, err := xdr.Unmarshal(r, &reply.AuthStat); err != nil {
				return nil, fmt.Errorf("unmarshal auth status: %w", err)
			}
		case RPCMismatch:
			if _, err := xdr.Unmarshal(r, &reply.Low); err != nil {
				return nil, fmt.Errorf("unmarshal mismatch range: %w", err)
			}
			if _, err := xdr.Unmarshal(r, &reply.High); err != nil {
				return nil, fmt.Errorf("unmarshal mismatch range: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown reject status %d", reply.RejectStat)
		}

	default:
		return nil, fmt.Errorf("unknown reply state %d", head.ReplyState)
	}

	return reply, nil
}

// MakeSuccessReply constructs a record-marked reply with accept_stat
// SUCCESS followed by data, which must already be XDR-encoded.
func MakeSuccessReply(xid uint32, data []byte) ([]byte, error) {
	return makeAcceptedReply(xid, RPCSuccess, data)
}

// MakeErrorReply constructs a record-marked accepted reply carrying a
// non-success accept_stat such as RPCSystemErr or RPCProcUnavail.
func MakeErrorReply(xid uint32, acceptStat uint32) ([]byte, error) {
	return makeAcceptedReply(xid, acceptStat, nil)
}

// MakeProgMismatchReply reports the supported version range.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	var tail bytes.Buffer
	if _, err := xdr.Marshal(&tail, &struct{ Low, High uint32 }{low, high}); err != nil {
		return nil, fmt.Errorf("marshal version range: %w", err)
	}
	return makeAcceptedReply(xid, RPCProgMismatch, tail.Bytes())
}

// MakeAuthErrorReply constructs a MSG_DENIED reply with AUTH_ERROR and
// the given auth_stat.
func MakeAuthErrorReply(xid uint32, authStat uint32) ([]byte, error) {
	denied := struct {
		XID        uint32
		MsgType    uint32
		ReplyState uint32
		RejectStat uint32
		AuthStat   uint32
	}{xid, RPCReply, RPCMsgDenied, RPCAuthError, authStat}

	buf := bytes.NewBuffer(make([]byte, 4, 24))
	if _, err := xdr.Marshal(buf, &denied); err != nil {
		return nil, fmt.Errorf("marshal denied reply: %w", err)
	}
	return markRecord(buf.Bytes()), nil
}

func makeAcceptedReply(xid, acceptStat uint32, data []byte) ([]byte, error) {
	reply := RPCReplyMessage{
		XID:        xid,
		MsgType:    RPCReply,
		ReplyState: RPCMsgAccepted,
		Verf: OpaqueAuth{
			Flavor: AuthNull,
			Body:   []byte{},
		},
		AcceptStat: acceptStat,
	}

	// 4 bytes of record mark, then a 24-byte header.
	buf := bytes.NewBuffer(make([]byte, 4, 4+24+len(data)))
	if _, err := xdr.Marshal(buf, &reply); err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	buf.Write(data)

	return markRecord(buf.Bytes()), nil
}

// markRecord fills the 4 reserved leading bytes of msg with a
// last-fragment header.
func markRecord(msg []byte) []byte {
	binary.BigEndian.PutUint32(msg, lastFragmentBit|uint32(len(msg)-4))
	return msg
}

// XdrPadding returns the number of zero bytes needed to align length to 4.
func XdrPadding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

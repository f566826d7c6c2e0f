package rpc

import "fmt"

// RPCCallMessage represents an RPC call (request) header.
//
// Wire Format (XDR encoding):
//   - XID:        4 bytes (transaction identifier)
//   - MsgType:    4 bytes (must be 0 for CALL)
//   - RPCVersion: 4 bytes (must be 2)
//   - Program:    4 bytes
//   - Version:    4 bytes
//   - Procedure:  4 bytes
//   - Cred:       variable
//   - Verf:       variable
//   - [procedure-specific parameters follow]
type RPCCallMessage struct {
	// XID is echoed by the server so replies can be matched to calls.
	XID uint32

	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32

	// Cred identifies the caller. The flavor decides how Body is read.
	Cred OpaqueAuth

	// Verf is unused by the flavors implemented here and sent as AUTH_NULL.
	Verf OpaqueAuth
}

// RPCReplyMessage is the header of an accepted reply.
type RPCReplyMessage struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
	Verf       OpaqueAuth
	AcceptStat uint32
}

// OpaqueAuth represents authentication credentials or verifiers.
//
// Reference: RFC 5531 Section 8 (Authentication)
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}

// GetAuthFlavor returns the authentication flavor of the call credentials.
func (c *RPCCallMessage) GetAuthFlavor() uint32 {
	return c.Cred.Flavor
}

// GetAuthBody returns the raw credential body.
func (c *RPCCallMessage) GetAuthBody() []byte {
	return c.Cred.Body
}

// Reply is a decoded reply header as seen by a client.
//
// Exactly one branch is meaningful:
//   - ReplyState == RPCMsgAccepted: AcceptStat, and Data when AcceptStat
//     is RPCSuccess, or Low/High for RPCProgMismatch
//   - ReplyState == RPCMsgDenied: RejectStat, then AuthStat for
//     RPCAuthError or Low/High for RPCMismatch
type Reply struct {
	XID        uint32
	ReplyState uint32
	AcceptStat uint32
	RejectStat uint32
	AuthStat   uint32
	Low        uint32
	High       uint32

	// Data holds the procedure results that follow an accepted, successful
	// header.
	Data []byte
}

// Accepted reports whether the call ran to completion on the server.
func (r *Reply) Accepted() bool {
	return r.ReplyState == RPCMsgAccepted && r.AcceptStat == RPCSuccess
}

func (r *Reply) String() string {
	switch {
	case r.ReplyState == RPCMsgDenied && r.RejectStat == RPCAuthError:
		return fmt.Sprintf("xid=0x%x denied: auth_stat=%d", r.XID, r.AuthStat)
	case r.ReplyState == RPCMsgDenied:
		return fmt.Sprintf("xid=0x%x denied: rpc mismatch %d-%d", r.XID, r.Low, r.High)
	case r.AcceptStat != RPCSuccess:
		return fmt.Sprintf("xid=0x%x accepted: accept_stat=%d", r.XID, r.AcceptStat)
	default:
		return fmt.Sprintf("xid=0x%x success (%d bytes)", r.XID, len(r.Data))
	}
}

package rpc

// RPC Message Types
//
// Reference: RFC 5531 Section 9 (RPC Message Protocol)
const (
	// RPCCall indicates an RPC call message.
	RPCCall = 0

	// RPCReply indicates an RPC reply message.
	RPCReply = 1
)

// RPCVersion is the only ONC RPC version spoken on the wire.
const RPCVersion = 2

// RPC Reply States
const (
	// RPCMsgAccepted indicates the call was accepted. The reply carries an
	// accept_stat telling whether the procedure ran.
	RPCMsgAccepted = 0

	// RPCMsgDenied indicates the call was rejected before dispatch, either
	// for an RPC version mismatch or for an authentication failure.
	RPCMsgDenied = 1
)

// RPC Accept Status
//
// When an RPC call is accepted (RPCMsgAccepted), the accept_stat field
// indicates whether the procedure executed successfully or why it failed.
const (
	// RPCSuccess indicates successful RPC execution.
	RPCSuccess = 0

	// RPCProgUnavail indicates the program is not served on this port.
	RPCProgUnavail = 1

	// RPCProgMismatch indicates program version mismatch. The reply
	// includes the supported version range.
	RPCProgMismatch = 2

	// RPCProcUnavail indicates the procedure is unavailable.
	RPCProcUnavail = 3

	// RPCGarbageArgs indicates the arguments could not be decoded.
	RPCGarbageArgs = 4

	// RPCSystemErr indicates a server-side failure such as resource
	// exhaustion or rate limiting.
	RPCSystemErr = 5
)

// RPC Reject Status (MSG_DENIED)
const (
	// RPCMismatch means the RPC version is not 2.
	RPCMismatch = 0

	// RPCAuthError means the credentials were refused. An auth_stat
	// follows.
	RPCAuthError = 1
)

// Authentication Status (RFC 5531 Section 9)
const (
	AuthOK           = 0
	AuthBadCred      = 1
	AuthRejectedCred = 2
	AuthBadVerf      = 3
	AuthRejectedVerf = 4
	AuthTooWeak      = 5
)

// Authentication Flavors
const (
	// AuthNull carries no credentials.
	AuthNull uint32 = 0

	// AuthUnix carries Unix UID/GID credentials.
	AuthUnix uint32 = 1

	// AuthToken carries an opaque bearer token in the credential body.
	// The value spells "FTKN".
	AuthToken uint32 = 0x46544B4E
)

// Record marking (RFC 5531 Section 11)
const (
	// lastFragmentBit marks the final fragment of a record.
	lastFragmentBit = 0x80000000

	// fragmentLengthMask extracts the fragment length.
	fragmentLengthMask = 0x7FFFFFFF

	// DefaultMaxRecordSize bounds a reassembled record. It leaves room for
	// a 1 MiB READ payload plus headers.
	DefaultMaxRecordSize = 2 << 20
)

// Package fetch defines the FETCH wire protocol: an ONC RPC program with
// two real procedures, OPEN and READ, that serves byte ranges of message
// attachments.
//
// OPEN resolves a message reference to an opaque, expiring handle and
// reports the declared size and the largest READ count the server accepts.
// READ returns up to count bytes at an offset; a short read with eof set
// marks the end of the object.
package fetch

// Program identification.
const (
	Program = 0x2F070001
	Version = 1
)

// Procedures.
const (
	ProcNull = 0
	ProcOpen = 1
	ProcRead = 2
)

// Status codes. The values follow the NFSv3 numbering for the cases the
// two protocols share.
const (
	StatusOK          = 0
	StatusNoEnt       = 2
	StatusAccess      = 13
	StatusInval       = 22
	StatusStale       = 70
	StatusServerFault = 10006
	StatusJukebox     = 10008
)

// Limits.
const (
	// MaxHandleSize bounds the opaque handle.
	MaxHandleSize = 64

	// MaxReadSize is the largest count a server may advertise.
	MaxReadSize = 1 << 20

	// MaxMimeLength bounds the MIME type string.
	MaxMimeLength = 255
)

// StatusName returns the symbolic name of a status code.
func StatusName(status uint32) string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusNoEnt:
		return "NOENT"
	case StatusAccess:
		return "ACCES"
	case StatusInval:
		return "INVAL"
	case StatusStale:
		return "STALE"
	case StatusServerFault:
		return "SERVERFAULT"
	case StatusJukebox:
		return "JUKEBOX"
	default:
		return "UNKNOWN"
	}
}

// ProcedureName returns the name used in logs and metrics.
func ProcedureName(proc uint32) string {
	switch proc {
	case ProcNull:
		return "NULL"
	case ProcOpen:
		return "OPEN"
	case ProcRead:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

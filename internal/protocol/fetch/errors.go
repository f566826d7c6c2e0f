package fetch

import "github.com/marmos91/fotoprobe/pkg/retrieval"

// KindForStatus maps a non-OK status to the error kind a client reports.
// Unknown statuses are protocol errors.
func KindForStatus(status uint32) retrieval.ErrorKind {
	switch status {
	case StatusNoEnt, StatusStale:
		return retrieval.KindNotFound
	case StatusAccess:
		return retrieval.KindUnauthorized
	case StatusJukebox, StatusServerFault:
		return retrieval.KindTransient
	default:
		return retrieval.KindProtocol
	}
}

// StatusForError maps a backend error to the status a server replies
// with.
func StatusForError(err error) uint32 {
	if err == nil {
		return StatusOK
	}
	switch retrieval.KindOf(err) {
	case retrieval.KindNotFound:
		return StatusNoEnt
	case retrieval.KindUnauthorized, retrieval.KindSessionExpired:
		return StatusAccess
	case retrieval.KindTransient:
		return StatusJukebox
	case retrieval.KindProtocol:
		return StatusInval
	default:
		return StatusServerFault
	}
}

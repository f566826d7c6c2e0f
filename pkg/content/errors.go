package content

import "errors"

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors give every store implementation a common vocabulary. The
// store-backed session maps them onto retrieval error kinds.
//
// Implementations wrap them with context:
//
//	if !exists {
//	    return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
//	}

var (
	// ErrContentNotFound indicates the requested object does not exist.
	//
	// Retrieval mapping: KindNotFound
	ErrContentNotFound = errors.New("content not found")

	// ErrAccessDenied indicates the backend refused the credentials in use,
	// for example an S3 AccessDenied response.
	//
	// Retrieval mapping: KindUnauthorized
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidSize indicates a read or write size outside the limits of
	// the store.
	//
	// Retrieval mapping: KindProtocol
	ErrInvalidSize = errors.New("invalid size")

	// ErrInvalidContentID indicates an ID the store cannot represent, such
	// as an empty string.
	//
	// Retrieval mapping: KindProtocol
	ErrInvalidContentID = errors.New("invalid content ID")

	// ErrUnavailable indicates the backend is temporarily unreachable or
	// throttling. Retrying may succeed.
	//
	// Retrieval mapping: KindTransient
	ErrUnavailable = errors.New("storage unavailable")
)

package telegram

import (
	"context"
	"errors"

	"github.com/gotd/td/tgerr"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// classify maps an MTProto failure to a retrieval error kind.
//
//   - FLOOD_WAIT_N: Transient, with RetryAfter N seconds
//   - 401 AUTH_KEY_UNREGISTERED, SESSION_*: SessionExpired
//   - other 401, 403, CHANNEL_PRIVATE: Unauthorized
//   - FILE_REFERENCE_*, MSG_ID_INVALID, peer/channel invalid: NotFound
//   - other 4xx, 303 migrations: Protocol
//   - 5xx, timeouts, transport errors: Transient
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return retrieval.NewError(retrieval.KindCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retrieval.NewError(retrieval.KindIncomplete, op, err)
	}

	if d, ok := tgerr.AsFloodWait(err); ok {
		e := retrieval.NewError(retrieval.KindTransient, op, err)
		e.RetryAfter = d
		return e
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		return retrieval.NewError(retrieval.KindTransient, op, err)
	}

	switch rpcErr.Type {
	case "AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID", "SESSION_REVOKED", "SESSION_EXPIRED",
		"SESSION_PASSWORD_NEEDED", "USER_DEACTIVATED":
		return retrieval.NewError(retrieval.KindSessionExpired, op, err)
	case "CHANNEL_PRIVATE", "CHAT_FORBIDDEN", "USER_BANNED_IN_CHANNEL":
		return retrieval.NewError(retrieval.KindUnauthorized, op, err)
	case "FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID", "FILE_ID_INVALID",
		"MSG_ID_INVALID", "PEER_ID_INVALID", "CHANNEL_INVALID", "CHAT_ID_INVALID":
		return retrieval.NewError(retrieval.KindNotFound, op, err)
	}

	switch {
	case rpcErr.Code == 401:
		return retrieval.NewError(retrieval.KindSessionExpired, op, err)
	case rpcErr.Code == 403:
		return retrieval.NewError(retrieval.KindUnauthorized, op, err)
	case rpcErr.Code == 420:
		return retrieval.NewError(retrieval.KindTransient, op, err)
	case rpcErr.Code >= 500 || rpcErr.Code < 0:
		return retrieval.NewError(retrieval.KindTransient, op, err)
	default:
		return retrieval.NewError(retrieval.KindProtocol, op, err)
	}
}

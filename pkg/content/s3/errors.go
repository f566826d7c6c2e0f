package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/marmos91/fotoprobe/pkg/content"
)

// classify maps an SDK error onto the content errors. Context errors pass
// through untouched so callers can tell cancellation apart.
func classify(id content.ContentID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("content %s: %w: %s", id, content.ErrAccessDenied, apiErr.ErrorMessage())
		case "InvalidRange":
			return io.EOF
		case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout", "ServiceUnavailable", "InternalError":
			return fmt.Errorf("content %s: %w: %w", id, content.ErrUnavailable, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch status := respErr.HTTPStatusCode(); {
		case status == http.StatusNotFound:
			return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		case status == http.StatusForbidden || status == http.StatusUnauthorized:
			return fmt.Errorf("content %s: %w", id, content.ErrAccessDenied)
		case status == http.StatusRequestedRangeNotSatisfiable:
			return io.EOF
		case status == http.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("content %s: %w: %w", id, content.ErrUnavailable, err)
		default:
			return fmt.Errorf("content %s: %w", id, err)
		}
	}

	// No API response at all: the request never reached S3.
	return fmt.Errorf("content %s: %w: %w", id, content.ErrUnavailable, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, content.ErrContentNotFound)
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

package httpclient

import (
	"errors"
	"fmt"
	"io"
)

// BodyTooLargeError reports a response body over its byte limit.
type BodyTooLargeError struct {
	Limit int64
}

func (e BodyTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeds %d byte limit", e.Limit)
}

// IsBodyTooLarge reports whether err is a body limit violation.
func IsBodyTooLarge(err error) bool {
	var tooLarge BodyTooLargeError
	return errors.As(err, &tooLarge)
}

// ReadBody reads r to its end, failing once limit bytes are exceeded rather
// than truncating. limit <= 0 reads unbounded.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, BodyTooLargeError{Limit: limit}
	}
	return data, nil
}

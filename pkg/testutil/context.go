package testutil

import (
	"net/http"

	"joblinker/pkg/requestcontext"
)

// WithRequestID stamps req as the request ID middleware would, for handlers
// exercised without the full portal chain.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

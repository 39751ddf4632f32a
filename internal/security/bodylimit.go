package security

import (
	"net/http"

	"github.com/noah-isme/toko-cart/internal/common"
)

// BodyLimit caps request payloads. Cart payloads are tiny, so anything above
// Max is rejected before it reaches the JSON decoder.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 for a declared oversize body and wraps the body in
// http.MaxBytesReader so undeclared oversize bodies fail while decoding.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}

// Package requestid assigns each request an id for log correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"enrichd/pkg/requestcontext"
)

// Header is the inbound header honored before generating a fresh id.
const Header = "X-Request-ID"

// Middleware stores the request id in the context and echoes it on the
// response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

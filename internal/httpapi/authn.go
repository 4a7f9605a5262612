package httpapi

import (
	"net/http"
	"strings"

	"accountd.io/internal/auth"
	"accountd.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "bearer"
)

// authenticate is the per-request bearer pipeline. A request without a
// Bearer header continues anonymously; any presented token either resolves
// to an identity or short-circuits with 401 (40101 expired, 40100 otherwise).
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get(authHeader))
		if !ok {
			obs.ObserveAuthentication("anonymous")
			next.ServeHTTP(w, r)
			return
		}

		id, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			respondErr(w, r, err)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), id)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reports whether header uses the Bearer scheme and returns the
// credential, which may be empty.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, bearer) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

package httpapi

import (
	"net/http"

	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
	"accountd.io/internal/obs"
)

// require gates a route on the caller's role set. Anonymous callers get
// 401/40100; authenticated callers lacking a role get 403/40300 and an
// ACCESS_DENIED audit entry.
func (a *API) require(req auth.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, present := auth.IdentityFromContext(r.Context())
			decision := auth.Decide(id, present, req)
			obs.ObserveAccessDecision(decision.String())
			if decision == auth.Allow {
				next.ServeHTTP(w, r)
				return
			}
			if !present {
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, msgAuthRequired)
				return
			}
			a.auditor.Record(r.Context(), audit.Event{
				Action:   audit.ActionAccessDenied,
				Level:    audit.LevelWarn,
				ActorID:  audit.Int64(id.ID),
				Entity:   audit.EntityHTTPRequest,
				Field:    "endpoint",
				NewValue: audit.String(endpoint(r)),
			})
			writeError(w, http.StatusForbidden, CodeAccessDenied, msgAccessDenied)
		})
	}
}

// accessLog writes the generic ACCESS entry after the handler has produced
// its final status. A panicking handler is recorded as a 500 before the
// panic continues to Recover.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			rec := recover()
			code := sw.code
			if rec != nil && !sw.wroteHeader {
				code = http.StatusInternalServerError
			}
			a.recordAccess(r, code)
			if rec != nil {
				panic(rec)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

func (a *API) recordAccess(r *http.Request, code int) {
	level := audit.LevelInfo
	if code >= http.StatusBadRequest {
		level = audit.LevelWarn
	}
	a.auditor.Record(r.Context(), audit.Event{
		Action:   audit.ActionAccess,
		Level:    level,
		ActorID:  auth.ActorID(r.Context()),
		Entity:   audit.EntityHTTPRequest,
		Field:    "endpoint",
		NewValue: audit.String(endpoint(r)),
	})
}

func endpoint(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

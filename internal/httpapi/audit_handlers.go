package httpapi

import (
	"net/http"
	"strconv"

	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
)

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if a.trail == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "Audit trail is not available")
		return
	}
	q := r.URL.Query()
	var f audit.Filter
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondErr(w, r, auth.Errorf(auth.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
		f.Limit = n
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondErr(w, r, auth.Errorf(auth.ErrInvalidInput, "actor_id must be an integer"))
			return
		}
		f.ActorID = &id
	}
	f.Action = audit.Action(q.Get("action"))

	entries, err := a.trail.List(r.Context(), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", entries)
}

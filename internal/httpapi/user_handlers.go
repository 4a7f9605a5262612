package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type changeOwnPasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// changeEmailRequest accepts {"email": ...} or {"newEmail": ...}.
type changeEmailRequest struct {
	Email    string `json:"email"`
	NewEmail string `json:"newEmail"`
}

func (r changeEmailRequest) address() string {
	if r.NewEmail != "" {
		return r.NewEmail
	}
	return r.Email
}

// updateRolesRequest accepts a bare ["ROLE_X", ...] array or {"roles": [...]}.
type updateRolesRequest struct {
	Roles []string `json:"roles"`
}

func (r *updateRolesRequest) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Roles)
	}
	var obj struct {
		Roles []string `json:"roles"`
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obj); err != nil {
		return err
	}
	r.Roles = obj.Roles
	return nil
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := a.accounts.Me(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", profileOf(p))
}

func (a *API) handleChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req changeOwnPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := a.accounts.ChangeOwnPassword(r.Context(), req.OldPassword, req.NewPassword); err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password changed successfully", nil)
}

func (a *API) handleChangeOwnEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	p, err := a.accounts.ChangeOwnEmail(r.Context(), req.address())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Email changed successfully", profileOf(p))
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	p, err := a.accounts.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", profileOf(p))
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := a.accounts.ChangePassword(r.Context(), chi.URLParam(r, "username"), req.NewPassword); err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password changed successfully", nil)
}

func (a *API) handleChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	p, err := a.accounts.ChangeEmail(r.Context(), chi.URLParam(r, "username"), req.address())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Email changed successfully", profileOf(p))
}

func (a *API) handleUpdateRoles(w http.ResponseWriter, r *http.Request) {
	var req updateRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	p, err := a.accounts.UpdateRoles(r.Context(), chi.URLParam(r, "username"), req.Roles)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Roles updated successfully", profileOf(p))
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.Delete(r.Context(), chi.URLParam(r, "username")); err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User deleted successfully", nil)
}

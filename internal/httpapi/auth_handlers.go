package httpapi

import (
	"net/http"

	"accountd.io/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type profileResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

func profileOf(p *auth.Principal) profileResponse {
	return profileResponse{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Roles:    auth.NewRoleSet(p.Roles...).Names(),
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	p, err := a.auth.Register(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "User registered successfully", profileOf(&p))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	pair, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Login successful", tokenResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.Access.ExpiresAt.Sub(pair.Access.IssuedAt).Seconds()),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	tok, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Token refreshed", tokenResponse{
		AccessToken: tok.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(tok.ExpiresAt.Sub(tok.IssuedAt).Seconds()),
	})
}

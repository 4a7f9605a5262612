package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"accountd.io/internal/auth"
	"accountd.io/internal/obs"
)

// Error codes carried in the envelope. 40100, 40101 and 40300 are part of
// the public contract; the others mirror the HTTP status.
const (
	CodeOK               = 0
	CodeInvalidToken     = 40100
	CodeTokenExpired     = 40101
	CodeAccessDenied     = 40300
	CodeBadRequest       = 400
	CodeUnauthorized     = 401
	CodeNotFound         = 404
	CodeConflict         = 409
	CodeTooLarge         = 413
	CodeTooManyRequests  = 429
	CodeInternal         = 500
	CodeUnavailable      = 503
	CodeMethodNotAllowed = 405
)

const (
	msgInvalidToken     = "Invalid authentication token."
	msgTokenExpired     = "JWT token expired. Please log in again."
	msgAuthRequired     = "Unauthorized: full authentication is required"
	msgAccessDenied     = "Access denied"
	msgInternal         = "Internal server error"
	msgTooManyRequests  = "Too many requests"
	msgBodyTooLarge     = "Request body too large"
	msgNotFound         = "Not found"
	msgMethodNotAllowed = "Method not allowed"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Response    string `json:"response"`
	ErrorCode   int    `json:"errorCode"`
	Description string `json:"description"`
	Data        any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, description string, data any) {
	writeJSON(w, status, Envelope{Response: "ok", ErrorCode: CodeOK, Description: description, Data: data})
}

func writeError(w http.ResponseWriter, status, code int, description string) {
	writeJSON(w, status, Envelope{Response: "error", ErrorCode: code, Description: description})
}

// respondErr is the single boundary translator from service errors to the
// envelope. Unknown errors are logged with the request id and sanitized.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code, fallback := classify(err)
	if status == http.StatusInternalServerError {
		obs.Logger().ErrorContext(r.Context(), "request failed",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, code, msgInternal)
		return
	}
	msg, ok := auth.Message(err)
	if !ok {
		msg = fallback
	}
	writeError(w, status, code, msg)
}

func classify(err error) (status, code int, fallback string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, CodeTooLarge, msgBodyTooLarge
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, CodeBadRequest, "Invalid request"
	case errors.Is(err, auth.ErrIncorrectPassword):
		return http.StatusBadRequest, CodeBadRequest, "Old password is incorrect"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeUnauthorized, "Invalid username or password"
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, CodeUnauthorized, "Invalid refresh token"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired, msgTokenExpired
	case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrWrongTokenKind):
		return http.StatusUnauthorized, CodeInvalidToken, msgInvalidToken
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, CodeInvalidToken, msgAuthRequired
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, CodeAccessDenied, msgAccessDenied
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, msgNotFound
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict, CodeConflict, "Already exists"
	default:
		return http.StatusInternalServerError, CodeInternal, msgInternal
	}
}

// decodeJSON reads a single JSON object with unknown fields rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return auth.Errorf(auth.ErrInvalidInput, "Malformed JSON body")
	}
	if dec.More() {
		return auth.Errorf(auth.ErrInvalidInput, "Request body must contain a single JSON object")
	}
	return nil
}

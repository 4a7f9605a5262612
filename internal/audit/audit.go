// Package audit records the append-only trail of security-relevant events.
package audit

import (
	"context"
	"strings"
	"time"
)

// Action names a recorded event kind.
type Action string

const (
	ActionCreateUser          Action = "CREATE_USER"
	ActionLoginSuccess        Action = "LOGIN_SUCCESS"
	ActionLoginFailed         Action = "LOGIN_FAILED"
	ActionRefreshToken        Action = "REFRESH_TOKEN"
	ActionInvalidRefreshToken Action = "INVALID_REFRESH_TOKEN"
	ActionReadUser            Action = "READ_USER"
	ActionChangePassword      Action = "CHANGE_PASSWORD"
	ActionChangeEmail         Action = "CHANGE_EMAIL"
	ActionUpdateRoles         Action = "UPDATE_ROLES"
	ActionDeleteUser          Action = "DELETE_USER"
	ActionAccess              Action = "ACCESS"
	ActionInvalidToken        Action = "INVALID_TOKEN"
	ActionAccessDenied        Action = "ACCESS_DENIED"
)

// Level is the severity stored with an entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entity names used in entries.
const (
	EntityUser        = "User"
	EntityHTTPRequest = "HttpRequest"
)

// Event is what callers hand to the Recorder. Timestamp, request id and
// client address are filled in from the clock and the context.
type Event struct {
	Action   Action
	Level    Level
	ActorID  *int64
	Entity   string
	EntityID *int64
	Field    string
	OldValue *string
	NewValue *string
}

// Entry is one persisted audit record. Entries are never updated or removed.
type Entry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ActorID    *int64    `json:"actor_principal_id"`
	EntityName string    `json:"entity_name"`
	EntityID   *int64    `json:"entity_id"`
	FieldName  *string   `json:"field_name"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	Action     Action    `json:"action_type"`
	Level      Level     `json:"log_level"`
	IPAddress  string    `json:"ip_address"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Limit   int
	Action  Action
	ActorID *int64
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Normalize clamps the limit into [1, MaxListLimit].
func (f Filter) Normalize() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	f.Action = Action(strings.ToUpper(strings.TrimSpace(string(f.Action))))
	return f
}

// Matches reports whether e passes the action and actor filters.
func (f Filter) Matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
		return false
	}
	return true
}

// Store persists audit entries.
type Store interface {
	// Append assigns e.ID.
	Append(ctx context.Context, e *Entry) error
	// List returns the newest entries first.
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }

package auth

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleTherapist Role = "therapist"
)

// Session identifies the authenticated actor for one request. Authentication
// itself happens upstream; the gateway forwards the verified identity and this
// value travels explicitly through the request context instead of living in a
// package-level singleton.
type Session struct {
	UserID uuid.UUID
	Role   Role
}

func (s Session) IsTherapist() bool { return s.Role == RoleTherapist }
func (s Session) IsPatient() bool   { return s.Role == RolePatient }

type contextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

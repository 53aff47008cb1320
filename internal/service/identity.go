package service

import "strings"

// Roles carried in bearer tokens.
const (
	RoleAdmin   = "admin"
	RoleLearner = "learner"
	RoleCoach   = "coach"
	RoleStation = "station"
)

// Identity is the authenticated caller of an engine operation.
type Identity struct {
	ActorID uint
	Role    string
}

// IsAdmin reports whether the caller may review justifications and read any record.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(i.Role, RoleAdmin)
}

// Owns reports whether the caller is the actor the record belongs to.
func (i Identity) Owns(actorID uint) bool {
	return i.ActorID != 0 && i.ActorID == actorID
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

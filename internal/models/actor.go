package models

import "time"

// ActorKind distinguishes the two populations subject to attendance tracking.
type ActorKind string

const (
	// ActorKindLearner marks a learner enrolled in a promotion.
	ActorKindLearner ActorKind = "learner"
	// ActorKindCoach marks a coach; coaches check in and out.
	ActorKindCoach ActorKind = "coach"
)

// Actor is a directory entry for a learner or coach. The directory is owned by
// another system; this service only reads it.
type Actor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Matricule string    `gorm:"size:64;uniqueIndex;not null" json:"matricule"`
	Kind      ActorKind `gorm:"size:16;index;not null" json:"kind"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Email     string    `gorm:"size:255" json:"email"`
	GroupCode string    `gorm:"size:64;index" json:"group_code"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCoach reports whether the actor uses paired check-in/check-out.
func (a Actor) IsCoach() bool {
	return a.Kind == ActorKindCoach
}

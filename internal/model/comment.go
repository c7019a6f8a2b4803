package model

import "time"

// CommentType distinguishes the four kinds of annotation a service
// order can carry on its timeline.
type CommentType string

const (
	CommentDiagnosis CommentType = "DIAGNOSIS"
	CommentRepair    CommentType = "REPAIR"
	CommentNote      CommentType = "NOTE"
	CommentFinal     CommentType = "FINAL"
)

// Valid reports whether t is a known comment type.
func (t CommentType) Valid() bool {
	switch t {
	case CommentDiagnosis, CommentRepair, CommentNote, CommentFinal:
		return true
	}
	return false
}

// Comment is one append-only annotation on a service order. Comments
// are never edited or deleted; the timeline is ordered by CreatedAt
// ascending. UserID is nil for system-authored notes.
type Comment struct {
	ID             uint64       `json:"id"`
	ServiceOrderID uint64       `json:"serviceOrderId"`
	UserID         *uint64      `json:"userId"`
	CommentType    CommentType  `json:"commentType"`
	Content        string       `json:"content"`
	CreatedAt      time.Time    `json:"createdAt"`
	User           *UserSummary `json:"user,omitempty"`
}

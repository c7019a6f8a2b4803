package model

import "time"

// Priority classifies how quickly a service order should be worked.
// The values form a fixed queue ranking: URGENT orders are always
// listed before HIGH, HIGH before MEDIUM and MEDIUM before LOW.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// priorityRank fixes the board ordering. Lower rank sorts first.
var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

// Rank returns the queue position of the priority. Unknown values
// sort after LOW so malformed rows never jump the queue.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Status is the progress state of a service order. COMPLETED is the
// only terminal state; every other transition is free for human
// actors. The legacy importer is additionally bound to the progress
// ranking below and may never move an order backward.
type Status string

const (
	StatusReceived     Status = "RECEIVED"
	StatusWaitingParts Status = "WAITING_PARTS"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusTesting      Status = "TESTING"
	StatusCompleted    Status = "COMPLETED"
)

// progressRank orders statuses by how far along the repair is. This
// is a separate total order from the priority ranking: one measures
// urgency, the other measures progress, and they must never be mixed.
var progressRank = map[Status]int{
	StatusReceived:     0,
	StatusWaitingParts: 1,
	StatusInProgress:   2,
	StatusTesting:      3,
	StatusCompleted:    4,
}

// ProgressRank returns the position of s in the repair progression.
// Unknown values rank lowest so they can never overwrite real state.
func (s Status) ProgressRank() int {
	if r, ok := progressRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	_, ok := progressRank[s]
	return ok
}

// ServiceOrder is a maintenance ticket for a piece of equipment.
// The struct mirrors the service_orders table and doubles as the
// wire representation for API responses and broadcast events, so
// the JSON names follow the client vocabulary.
//
// OptionalDescription carries free-form notes; orders imported from
// the legacy workshop database additionally embed an origin tag of
// the form "[shoficina:<id>]" there, which the importer uses to
// recognise rows it has already brought over.
type ServiceOrder struct {
	ID                        uint64        `json:"id"`
	OSNumber                  string        `json:"osNumber"`
	ClientName                string        `json:"clientName"`
	EquipmentName             string        `json:"equipmentName"`
	EquipmentClass            string        `json:"equipmentClass,omitempty"`
	SerialNumber              string        `json:"serialNumber,omitempty"`
	Accessories               string        `json:"accessories,omitempty"`
	HasPreviousDefect         bool          `json:"hasPreviousDefect"`
	PreviousDefectDescription string        `json:"previousDefectDescription,omitempty"`
	OptionalDescription       string        `json:"optionalDescription,omitempty"`
	Priority                  Priority      `json:"priority"`
	CurrentStatus             Status        `json:"currentStatus"`
	AssignedToUserID          *uint64       `json:"assignedToUserId"`
	CreatedByUserID           *uint64       `json:"createdByUserId"`
	CreatedAt                 time.Time     `json:"createdAt"`
	UpdatedAt                 time.Time     `json:"updatedAt"`
	CompletedAt               *time.Time    `json:"completedAt"`
	AssignedToUser            *UserSummary  `json:"assignedToUser,omitempty"`
	CreatedByUser             *UserSummary  `json:"createdByUser,omitempty"`
	Comments                  []Comment     `json:"comments"`
}

// OrderFilter narrows the open-order listing. Zero values mean "no
// constraint". Name filters match case-insensitive substrings.
type OrderFilter struct {
	Status        Status
	Priority      Priority
	ClientName    string
	EquipmentName string
}

// DateRange optionally bounds the completion timestamp of history
// queries on either side.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// OrderDelta is a partial update to a service order. Nil pointer
// fields are left untouched. ClearAssigned and ClearCompleted exist
// because "set to NULL" and "leave alone" are different requests.
// UpdatedAt is stamped by the lifecycle engine on every write.
type OrderDelta struct {
	OSNumber                  *string
	ClientName                *string
	EquipmentName             *string
	EquipmentClass            *string
	SerialNumber              *string
	Accessories               *string
	HasPreviousDefect         *bool
	PreviousDefectDescription *string
	OptionalDescription       *string
	Priority                  *Priority
	CurrentStatus             *Status
	AssignedToUserID          *uint64
	ClearAssigned             bool
	CompletedAt               *time.Time
	ClearCompleted            bool
	UpdatedAt                 time.Time
}

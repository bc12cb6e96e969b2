package entity

import "time"

// CaseLog is an append-only audit entry written once per successful transition
type CaseLog struct {
	ID         int64     `json:"id"`
	CaseID     string    `json:"case_id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Timestamp  time.Time `json:"timestamp"`
}

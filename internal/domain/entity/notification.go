package entity

// NotificationRequest asks the delivery side to tell users about a case change.
// The engine only builds it; delivery happens after the transition commits.
type NotificationRequest struct {
	CaseID     string   `json:"case_id"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
}

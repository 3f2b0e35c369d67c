package models

// MergedSection is one section of a merged view with its data source
// provenance ("live" row or ledger "snapshot")
type MergedSection struct {
	Source MergeSource            `json:"source"`
	Fields map[string]interface{} `json:"fields"`
}

// MergedView is the read-side merge of live records and the ledger snapshot
// for one submission group
type MergedView struct {
	GroupID       string            `json:"groupId"`
	SubmitterKind string            `json:"submitterKind"`
	Status        string            `json:"status"`
	Profile       MergedSection     `json:"profile"`
	Detail        MergedSection     `json:"detail"`
	Rate          MergedSection     `json:"rate"`
	Documents     map[string]string `json:"documents,omitempty"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     string            `json:"updatedAt"`
}

// SubmitResult is returned by a successful submission
type SubmitResult struct {
	GroupID   string `json:"groupId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// CancelResult is returned by a successful (or idempotently repeated)
// cancellation
type CancelResult struct {
	GroupID     string `json:"groupId"`
	CancelledAt string `json:"cancelledAt"`
}

// CancelRequest carries the cancellation reason choice and optional free text
type CancelRequest struct {
	ReasonChoice string `json:"reasonChoice"`
	ReasonText   string `json:"reasonText,omitempty"`
}

// DecisionRequest carries the administrator decision reason
type DecisionRequest struct {
	Reason string `json:"reason,omitempty"`
}

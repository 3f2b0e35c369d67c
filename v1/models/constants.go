package models

// SubmitterKind distinguishes the two submission flows
type SubmitterKind string

const (
	KindRequester SubmitterKind = "requester"
	KindProvider  SubmitterKind = "provider"
)

// Status represents the status of a submission ledger entry
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further automatic transition exists
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// RateType represents the pricing mode of a rate card
type RateType string

const (
	RateTypeHourly RateType = "hourly"
	RateTypeFixed  RateType = "fixed"
)

// HistoricalRateLabels lists legacy spellings still enforced by old check
// constraints. The writer retries with these when the canonical label is
// rejected.
var HistoricalRateLabels = map[RateType][]string{
	RateTypeHourly: {"hourly_rate", "per_hour"},
	RateTypeFixed:  {"by_the_job", "fixed_rate"},
}

// ListScope selects which ledger statuses a listing returns
type ListScope string

const (
	ScopeCurrent   ListScope = "current"
	ScopeActive    ListScope = "active"
	ScopeCancelled ListScope = "cancelled"
	ScopeExpired   ListScope = "expired"
)

// ScopeStatuses maps a list scope to the effective statuses it includes
var ScopeStatuses = map[ListScope][]Status{
	ScopeCurrent:   {StatusPending, StatusApproved, StatusDeclined},
	ScopeActive:    {StatusPending, StatusApproved},
	ScopeCancelled: {StatusCancelled},
	ScopeExpired:   {StatusExpired},
}

// Document slot names for the provider flow. PrimaryID is the only
// mandatory slot.
const (
	SlotPrimaryID        = "primary_id"
	SlotSecondaryID      = "secondary_id"
	SlotPoliceClearance  = "police_clearance"
	SlotAddressProof     = "address_proof"
	SlotMedicalClearance = "medical_clearance"
	SlotCertifications   = "certifications"
	SlotProfileImage     = "profile_image"
)

// DocumentSlots is the fixed slot vocabulary for provider documents
var DocumentSlots = []string{
	SlotPrimaryID,
	SlotSecondaryID,
	SlotPoliceClearance,
	SlotAddressProof,
	SlotMedicalClearance,
	SlotCertifications,
}

// CancellationReasons is the fixed reason-choice vocabulary for cancellations
var CancellationReasons = []string{
	"schedule_conflict",
	"found_elsewhere",
	"price_changed",
	"no_longer_needed",
	"other",
}

// MergeSource identifies which side of the read-side merge supplied a section
type MergeSource string

const (
	SourceLive     MergeSource = "live"
	SourceSnapshot MergeSource = "snapshot"
)

// Field length constraints
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 2000
	MaxEmailLength       = 320 // RFC 3696
	MaxPhoneLength       = 15  // E.164 format
)

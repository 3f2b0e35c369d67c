package models

import "time"

// Account represents a registered submitter (requester or provider)
type Account struct {
	AccountID string `gorm:"primarykey;column:account_id" json:"accountId"`
	AuthID    string `gorm:"column:auth_id;index" json:"authId"`
	Email     string `gorm:"column:email;not null;unique" json:"email"`
	Name      string `gorm:"column:name" json:"name"`
	Phone     string `gorm:"column:phone" json:"phone"`
	BaseModel
}

// TableName sets the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// SubmissionProfile is the identity record captured at submission time.
// One row per submission group.
type SubmissionProfile struct {
	ID              uint    `gorm:"primarykey" json:"-"`
	GroupID         string  `gorm:"column:group_id;uniqueIndex;not null" json:"groupId"`
	AccountID       *string `gorm:"column:account_id" json:"accountId,omitempty"`
	Name            string  `gorm:"column:name;not null" json:"name"`
	Email           string  `gorm:"column:email;not null" json:"email"`
	Phone           string  `gorm:"column:phone;not null" json:"phone"`
	Address         string  `gorm:"column:address" json:"address"`
	PostalCode      string  `gorm:"column:postal_code" json:"postalCode"`
	BirthDate       string  `gorm:"column:birth_date" json:"birthDate"`
	Age             *int    `gorm:"column:age" json:"age,omitempty"`
	ProfileImageURL string  `gorm:"column:profile_image_url" json:"profileImageUrl"`
	BaseModel
}

// TableName sets the table name for GORM
func (SubmissionProfile) TableName() string {
	return "submission_profiles"
}

// JobDetail is the requester-flow detail record
type JobDetail struct {
	ID             uint       `gorm:"primarykey" json:"-"`
	GroupID        string     `gorm:"column:group_id;uniqueIndex;not null" json:"groupId"`
	JobType        string     `gorm:"column:job_type;not null" json:"jobType"`
	Description    string     `gorm:"column:description" json:"description"`
	ScheduledDate  string     `gorm:"column:scheduled_date;not null" json:"scheduledDate"`
	ScheduledTime  string     `gorm:"column:scheduled_time" json:"scheduledTime"`
	IsUrgent       bool       `gorm:"column:is_urgent" json:"isUrgent"`
	ToolsProvided  bool       `gorm:"column:tools_provided" json:"toolsProvided"`
	WorkerCount    int        `gorm:"column:worker_count" json:"workerCount"`
	AttachmentURLs StringList `gorm:"column:attachment_urls" json:"attachmentUrls"`
	BaseModel
}

// TableName sets the table name for GORM
func (JobDetail) TableName() string {
	return "job_details"
}

// ServiceDetail is the provider-flow detail record
type ServiceDetail struct {
	ID              uint       `gorm:"primarykey" json:"-"`
	GroupID         string     `gorm:"column:group_id;uniqueIndex;not null" json:"groupId"`
	Categories      StringList `gorm:"column:categories" json:"categories"`
	TaskSelections  JSONMap    `gorm:"column:task_selections" json:"taskSelections"`
	ExperienceYears int        `gorm:"column:experience_years" json:"experienceYears"`
	HasOwnTools     bool       `gorm:"column:has_own_tools" json:"hasOwnTools"`
	Description     string     `gorm:"column:description" json:"description"`
	BaseModel
}

// TableName sets the table name for GORM
func (ServiceDetail) TableName() string {
	return "service_details"
}

// RateCard holds the pricing mode and numbers for one submission group.
// Exactly one of {RateFrom+RateTo, RateValue} is populated per mode.
type RateCard struct {
	ID        uint     `gorm:"primarykey" json:"-"`
	GroupID   string   `gorm:"column:group_id;uniqueIndex;not null" json:"groupId"`
	RateType  string   `gorm:"column:rate_type;not null" json:"rateType"`
	RateFrom  *float64 `gorm:"column:rate_from" json:"rateFrom,omitempty"`
	RateTo    *float64 `gorm:"column:rate_to" json:"rateTo,omitempty"`
	RateValue *float64 `gorm:"column:rate_value" json:"rateValue,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (RateCard) TableName() string {
	return "rate_cards"
}

// ProviderDocuments is the fixed document slot set for the provider flow.
// Slots hold hosted URLs or empty strings, never raw binary.
type ProviderDocuments struct {
	ID               uint   `gorm:"primarykey" json:"-"`
	GroupID          string `gorm:"column:group_id;uniqueIndex;not null" json:"groupId"`
	PrimaryID        string `gorm:"column:primary_id" json:"primaryId"`
	SecondaryID      string `gorm:"column:secondary_id" json:"secondaryId"`
	PoliceClearance  string `gorm:"column:police_clearance" json:"policeClearance"`
	AddressProof     string `gorm:"column:address_proof" json:"addressProof"`
	MedicalClearance string `gorm:"column:medical_clearance" json:"medicalClearance"`
	Certifications   string `gorm:"column:certifications" json:"certifications"`
	BaseModel
}

// TableName sets the table name for GORM
func (ProviderDocuments) TableName() string {
	return "provider_documents"
}

// LedgerEntry is the status ledger row for one submission group. The
// snapshot columns are a denormalized copy of the profile/detail/rate
// records so listings never need joins.
type LedgerEntry struct {
	LedgerID        string     `gorm:"primarykey;column:ledger_id" json:"ledgerId"`
	GroupID         string     `gorm:"column:group_id;uniqueIndex;not null" json:"groupId"`
	SubmitterKind   string     `gorm:"column:submitter_kind;not null" json:"submitterKind"`
	Email           string     `gorm:"column:email;index;not null" json:"email"`
	Status          string     `gorm:"column:status;not null" json:"status"`
	DecisionReason  *string    `gorm:"column:decision_reason" json:"decisionReason,omitempty"`
	DecidedAt       *time.Time `gorm:"column:decided_at" json:"decidedAt,omitempty"`
	SnapshotProfile JSONMap    `gorm:"column:snapshot_profile" json:"snapshotProfile"`
	SnapshotDetail  JSONMap    `gorm:"column:snapshot_detail" json:"snapshotDetail"`
	SnapshotRate    JSONMap    `gorm:"column:snapshot_rate" json:"snapshotRate"`
	BaseModel
}

// TableName sets the table name for GORM
func (LedgerEntry) TableName() string {
	return "submission_ledger"
}

// CancellationLog is an append-only record of a submitter cancellation
type CancellationLog struct {
	LogID        string    `gorm:"primarykey;column:log_id" json:"logId"`
	GroupID      string    `gorm:"column:group_id;index;not null" json:"groupId"`
	ReasonChoice string    `gorm:"column:reason_choice;not null" json:"reasonChoice"`
	ReasonText   string    `gorm:"column:reason_text" json:"reasonText"`
	CancelledAt  time.Time `gorm:"column:cancelled_at;not null" json:"cancelledAt"`
	BaseModel
}

// TableName sets the table name for GORM
func (CancellationLog) TableName() string {
	return "cancellation_logs"
}

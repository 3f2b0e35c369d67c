package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/taskbridge/intake-backend/v1/models"
	"gorm.io/gorm"
)

// WriterService persists the normalized rows for one submission group.
// Writes are strictly sequential in a fixed order so a partial failure is
// always attributable to the first failing table.
type WriterService struct {
	db *gorm.DB
}

// NewWriterService creates a new writer service
func NewWriterService(db *gorm.DB) *WriterService {
	return &WriterService{db: db}
}

// columnAlternates lists the known legacy column name for each logical
// field that has drifted between schema revisions. A missing-column failure
// is retried once with these names applied.
var columnAlternates = map[string]map[string]string{
	"submission_profiles": {
		"postal_code": "pincode",
		"birth_date":  "date_of_birth",
	},
	"job_details": {
		"worker_count":   "workers_count",
		"scheduled_date": "schedule_date",
		"tools_provided": "has_tools",
	},
	"service_details": {
		"experience_years": "years_of_experience",
	},
	"provider_documents": {
		"police_clearance": "clearance",
	},
}

// WriteAll writes Identity Record, Detail Record, Rate Record and (for the
// provider flow) the Document Set, in that order, all under one group id.
// There is no cross-table transaction; a later failure leaves earlier rows
// in place and surfaces as a PartialWriteError.
func (w *WriterService) WriteAll(ctx context.Context, groupID string, kind models.SubmitterKind, c *CanonicalFields, identity *ResolvedIdentity, profileImageURL string, attachmentURLs []string, documents map[string]string) error {
	if err := w.writeProfile(ctx, groupID, c, identity, profileImageURL); err != nil {
		return err
	}

	var detailErr error
	switch kind {
	case models.KindRequester:
		detailErr = w.writeJobDetail(ctx, groupID, c, attachmentURLs)
	case models.KindProvider:
		detailErr = w.writeServiceDetail(ctx, groupID, c)
	}
	if detailErr != nil {
		return wrapPartial(detailTable(kind), detailErr)
	}

	if err := w.writeRate(ctx, groupID, c); err != nil {
		return wrapPartial("rate_cards", err)
	}

	if kind == models.KindProvider {
		if err := w.writeDocuments(ctx, groupID, documents); err != nil {
			return wrapPartial("provider_documents", err)
		}
	}
	return nil
}

func detailTable(kind models.SubmitterKind) string {
	if kind == models.KindProvider {
		return "service_details"
	}
	return "job_details"
}

// wrapPartial marks an infrastructure failure after the first table
// succeeded. Validation failures keep their own type so callers still see
// the missing field names.
func wrapPartial(table string, err error) error {
	if models.IsValidationError(err) {
		return err
	}
	return &models.PartialWriteError{Table: table, Err: err}
}

func (w *WriterService) writeProfile(ctx context.Context, groupID string, c *CanonicalFields, identity *ResolvedIdentity, profileImageURL string) error {
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if identity.Email == "" {
		missing = append(missing, "email")
	}
	if c.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return models.NewValidationError("submission_profiles", missing...)
	}

	cols := map[string]interface{}{
		"group_id":          groupID,
		"name":              c.Name,
		"email":             identity.Email,
		"phone":             c.Phone,
		"address":           c.Address,
		"postal_code":       c.PostalCode,
		"birth_date":        c.BirthDate,
		"profile_image_url": profileImageURL,
	}
	if identity.AccountID != nil {
		cols["account_id"] = *identity.AccountID
	}
	if age, err := strconv.Atoi(c.Age); err == nil {
		cols["age"] = age
	}
	stampNew(cols)

	return w.insertWithRetry(ctx, "submission_profiles", cols)
}

func (w *WriterService) writeJobDetail(ctx context.Context, groupID string, c *CanonicalFields, attachmentURLs []string) error {
	var missing []string
	if c.JobType == "" {
		missing = append(missing, "job_type")
	}
	if c.ScheduledDate == "" {
		missing = append(missing, "scheduled_date")
	}
	if len(missing) > 0 {
		return models.NewValidationError("job_details", missing...)
	}

	cols := map[string]interface{}{
		"group_id":        groupID,
		"job_type":        c.JobType,
		"description":     c.JobDescription,
		"scheduled_date":  c.ScheduledDate,
		"scheduled_time":  c.ScheduledTime,
		"is_urgent":       c.IsUrgent,
		"tools_provided":  c.ToolsProvided,
		"worker_count":    intOr(c.WorkerCount, 1),
		"attachment_urls": jsonString(attachmentURLs),
	}
	stampNew(cols)

	return w.insertWithRetry(ctx, "job_details", cols)
}

func (w *WriterService) writeServiceDetail(ctx context.Context, groupID string, c *CanonicalFields) error {
	if len(c.Categories) == 0 {
		return models.NewValidationError("service_details", "categories")
	}

	cols := map[string]interface{}{
		"group_id":         groupID,
		"categories":       jsonString(c.Categories),
		"task_selections":  jsonString(c.TaskSelections),
		"experience_years": intOr(c.ExperienceYears, 0),
		"has_own_tools":    c.HasOwnTools,
		"description":      c.ServiceDescription,
	}
	stampNew(cols)

	return w.insertWithRetry(ctx, "service_details", cols)
}

func (w *WriterService) writeRate(ctx context.Context, groupID string, c *CanonicalFields) error {
	rateType, err := CanonicalRateType(c)
	if err != nil {
		return err
	}

	cols := map[string]interface{}{
		"group_id":  groupID,
		"rate_type": string(rateType),
	}
	switch rateType {
	case models.RateTypeHourly:
		from, fromOK := parseRate(c.RateFrom)
		to, toOK := parseRate(c.RateTo)
		if !fromOK || !toOK {
			return models.NewValidationError("rate_cards", "rate_from", "rate_to")
		}
		cols["rate_from"] = from
		cols["rate_to"] = to
	case models.RateTypeFixed:
		value, ok := parseRate(c.RateValue)
		if !ok {
			return models.NewValidationError("rate_cards", "rate_value")
		}
		cols["rate_value"] = value
	}
	stampNew(cols)

	err = w.insertWithRetry(ctx, "rate_cards", cols)
	if err == nil || !isCheckConstraintError(err) {
		return err
	}

	// A legacy check constraint may still enforce an old label spelling
	for _, label := range models.HistoricalRateLabels[rateType] {
		schemaDriftRetriesTotal.WithLabelValues("rate_cards").Inc()
		cols["rate_type"] = label
		if retryErr := w.insertWithRetry(ctx, "rate_cards", cols); retryErr == nil {
			return nil
		} else if !isCheckConstraintError(retryErr) {
			return retryErr
		}
	}
	return &models.SchemaDriftError{Table: "rate_cards", Err: err}
}

func (w *WriterService) writeDocuments(ctx context.Context, groupID string, documents map[string]string) error {
	if documents[models.SlotPrimaryID] == "" {
		return models.NewValidationError("provider_documents", models.SlotPrimaryID)
	}

	cols := map[string]interface{}{"group_id": groupID}
	for _, slot := range models.DocumentSlots {
		cols[slot] = documents[slot]
	}
	stampNew(cols)

	return w.insertWithRetry(ctx, "provider_documents", cols)
}

// insertWithRetry creates a row from a column map and, on a missing-column
// failure, retries once with the known alternate column names before giving
// up with a SchemaDriftError.
func (w *WriterService) insertWithRetry(ctx context.Context, table string, cols map[string]interface{}) error {
	err := w.db.WithContext(ctx).Table(table).Create(cols).Error
	if err == nil || !isMissingColumnError(err) {
		return err
	}

	schemaDriftRetriesTotal.WithLabelValues(table).Inc()
	retryCols := applyAlternates(table, cols)
	if retryErr := w.db.WithContext(ctx).Table(table).Create(retryCols).Error; retryErr != nil {
		return &models.SchemaDriftError{Table: table, Err: retryErr}
	}
	return nil
}

// updateWithRetry applies a column map to the existing row for a group with
// the same drift tolerance as inserts
func (w *WriterService) updateWithRetry(ctx context.Context, table, groupID string, cols map[string]interface{}) error {
	err := w.db.WithContext(ctx).Table(table).Where("group_id = ?", groupID).Updates(cols).Error
	if err == nil || !isMissingColumnError(err) {
		return err
	}

	schemaDriftRetriesTotal.WithLabelValues(table).Inc()
	retryCols := applyAlternates(table, cols)
	if retryErr := w.db.WithContext(ctx).Table(table).Where("group_id = ?", groupID).Updates(retryCols).Error; retryErr != nil {
		return &models.SchemaDriftError{Table: table, Err: retryErr}
	}
	return nil
}

func applyAlternates(table string, cols map[string]interface{}) map[string]interface{} {
	alternates := columnAlternates[table]
	out := make(map[string]interface{}, len(cols))
	for column, value := range cols {
		if alt, ok := alternates[column]; ok {
			out[alt] = value
			continue
		}
		out[column] = value
	}
	return out
}

// CanonicalRateType canonicalizes the rate label, inferring the mode from
// which numeric fields are present when the label is omitted
func CanonicalRateType(c *CanonicalFields) (models.RateType, error) {
	switch strings.ToLower(strings.TrimSpace(c.RateType)) {
	case "hourly", "hour", "per_hour", "hourly_rate", "per hour":
		return models.RateTypeHourly, nil
	case "fixed", "by_the_job", "by the job", "fixed_rate", "job", "per_job", "lump_sum":
		return models.RateTypeFixed, nil
	case "":
		if c.RateValue != "" {
			return models.RateTypeFixed, nil
		}
		if c.RateFrom != "" || c.RateTo != "" {
			return models.RateTypeHourly, nil
		}
		return "", models.NewValidationError("rate_cards", "rate_type")
	default:
		return "", models.NewValidationError("rate_cards", "rate_type")
	}
}

func isMissingColumnError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "schema cache"):
		return true
	case strings.Contains(msg, "no such column"):
		return true
	case strings.Contains(msg, "unknown column"):
		return true
	case strings.Contains(msg, "column") && strings.Contains(msg, "does not exist"):
		return true
	}
	return false
}

func isCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "check constraint") || strings.Contains(msg, "constraint failed")
}

func parseRate(s string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

func intOr(s string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 0 {
		return n
	}
	return fallback
}

func jsonString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func stampNew(cols map[string]interface{}) {
	now := time.Now().UTC()
	cols["created_at"] = now
	cols["updated_at"] = now
}

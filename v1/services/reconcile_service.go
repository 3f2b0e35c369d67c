package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/taskbridge/intake-backend/v1/models"
	"gorm.io/gorm"
)

// BucketConfig names the object storage buckets, one per submitter kind and
// purpose
type BucketConfig struct {
	ProfileImages     string
	JobAttachments    string
	ProviderDocuments string
}

// ReconcileService applies post-submission edits across the related tables
// and keeps the ledger snapshot consistent with the reconciled values
type ReconcileService struct {
	db      *gorm.DB
	writer  *WriterService
	storage *StorageService
	ledger  *LedgerService
	buckets BucketConfig
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(db *gorm.DB, writer *WriterService, storage *StorageService, ledger *LedgerService, buckets BucketConfig) *ReconcileService {
	return &ReconcileService{db: db, writer: writer, storage: storage, ledger: ledger, buckets: buckets}
}

// Reconcile applies a partial edit set to the live tables for one group.
// Fields absent from the edits are left untouched. New inline document
// payloads are uploaded before the rows are upserted, and the ledger
// snapshot is rewritten last so snapshot fallbacks stay consistent.
func (s *ReconcileService) Reconcile(ctx context.Context, groupID string, rawEdits map[string]interface{}) error {
	entry, err := s.ledger.GetByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	kind := models.SubmitterKind(entry.SubmitterKind)

	edits := NormalizePartial(kind, rawEdits)
	if len(edits) == 0 {
		return nil
	}

	if err := s.reconcileProfile(ctx, groupID, edits); err != nil {
		return err
	}
	if err := s.reconcileDetail(ctx, groupID, kind, edits); err != nil {
		return err
	}
	if err := s.reconcileRate(ctx, groupID, edits); err != nil {
		return err
	}
	if kind == models.KindProvider {
		if err := s.reconcileDocuments(ctx, groupID, edits); err != nil {
			return err
		}
	}

	return s.refreshSnapshots(ctx, entry)
}

func (s *ReconcileService) reconcileProfile(ctx context.Context, groupID string, edits map[string]interface{}) error {
	cols := map[string]interface{}{}
	for _, field := range []string{"name", "phone", "address", "postal_code", "birth_date"} {
		if v, ok := edits[field].(string); ok {
			cols[field] = v
		}
	}
	if v, ok := edits["age"].(string); ok {
		if age, err := strconv.Atoi(v); err == nil {
			cols["age"] = age
		}
	}
	if att, ok := edits["profile_image"].(*Attachment); ok {
		imageURL, err := s.storage.UploadSlot(ctx, s.buckets.ProfileImages, groupID, models.SlotProfileImage, att)
		if err != nil {
			return err
		}
		cols["profile_image_url"] = imageURL
	}

	return s.upsert(ctx, "submission_profiles", groupID, cols)
}

func (s *ReconcileService) reconcileDetail(ctx context.Context, groupID string, kind models.SubmitterKind, edits map[string]interface{}) error {
	cols := map[string]interface{}{}

	switch kind {
	case models.KindRequester:
		mapping := map[string]string{
			"job_type":        "job_type",
			"job_description": "description",
			"scheduled_date":  "scheduled_date",
			"scheduled_time":  "scheduled_time",
		}
		for canonical, column := range mapping {
			if v, ok := edits[canonical].(string); ok {
				cols[column] = v
			}
		}
		if v, ok := edits["worker_count"].(string); ok {
			cols["worker_count"] = intOr(v, 1)
		}
		if v, ok := edits["is_urgent"].(bool); ok {
			cols["is_urgent"] = v
		}
		if v, ok := edits["tools_provided"].(bool); ok {
			cols["tools_provided"] = v
		}
		return s.upsert(ctx, "job_details", groupID, cols)

	case models.KindProvider:
		if v, ok := edits["categories"].([]string); ok {
			cols["categories"] = jsonString(v)
		}
		if v, ok := edits["task_selections"].(map[string][]string); ok {
			cols["task_selections"] = jsonString(v)
		}
		if v, ok := edits["experience_years"].(string); ok {
			cols["experience_years"] = intOr(v, 0)
		}
		if v, ok := edits["has_own_tools"].(bool); ok {
			cols["has_own_tools"] = v
		}
		if v, ok := edits["service_description"].(string); ok {
			cols["description"] = v
		}
		return s.upsert(ctx, "service_details", groupID, cols)
	}
	return nil
}

func (s *ReconcileService) reconcileRate(ctx context.Context, groupID string, edits map[string]interface{}) error {
	cols := map[string]interface{}{}

	if v, ok := edits["rate_type"].(string); ok {
		rateType, err := CanonicalRateType(&CanonicalFields{RateType: v})
		if err != nil {
			return err
		}
		cols["rate_type"] = string(rateType)
		// Changing the pricing mode clears the other mode's fields so
		// exactly one of {range, value} stays populated
		switch rateType {
		case models.RateTypeHourly:
			cols["rate_value"] = nil
		case models.RateTypeFixed:
			cols["rate_from"] = nil
			cols["rate_to"] = nil
		}
	}
	for canonical, column := range map[string]string{"rate_from": "rate_from", "rate_to": "rate_to", "rate_value": "rate_value"} {
		if v, ok := edits[canonical].(string); ok {
			if value, valid := parseRate(v); valid {
				cols[column] = value
			}
		}
	}

	return s.upsert(ctx, "rate_cards", groupID, cols)
}

func (s *ReconcileService) reconcileDocuments(ctx context.Context, groupID string, edits map[string]interface{}) error {
	cols := map[string]interface{}{}
	for key, value := range edits {
		if !strings.HasPrefix(key, "documents.") {
			continue
		}
		att, ok := value.(*Attachment)
		if !ok {
			continue
		}
		slot := strings.TrimPrefix(key, "documents.")
		uploadedURL, err := s.storage.UploadSlot(ctx, s.buckets.ProviderDocuments, groupID, slot, att)
		if err != nil {
			return err
		}
		cols[slot] = uploadedURL
	}

	return s.upsert(ctx, "provider_documents", groupID, cols)
}

// upsert updates the live row when one exists and inserts otherwise
func (s *ReconcileService) upsert(ctx context.Context, table, groupID string, cols map[string]interface{}) error {
	if len(cols) == 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Table(table).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		cols["updated_at"] = time.Now().UTC()
		return s.writer.updateWithRetry(ctx, table, groupID, cols)
	}
	cols["group_id"] = groupID
	stampNew(cols)
	return s.writer.insertWithRetry(ctx, table, cols)
}

// refreshSnapshots rewrites the ledger snapshot from the freshly reconciled
// live rows. A section whose live row is still missing keeps its previous
// snapshot so the read-side fallback keeps working.
func (s *ReconcileService) refreshSnapshots(ctx context.Context, entry *models.LedgerEntry) error {
	snapshots := Snapshots{
		Profile: entry.SnapshotProfile,
		Detail:  entry.SnapshotDetail,
		Rate:    entry.SnapshotRate,
	}

	var profile models.SubmissionProfile
	if err := s.db.WithContext(ctx).First(&profile, "group_id = ?", entry.GroupID).Error; err == nil {
		snapshots.Profile = profileSnapshot(&profile)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	switch models.SubmitterKind(entry.SubmitterKind) {
	case models.KindRequester:
		var detail models.JobDetail
		if err := s.db.WithContext(ctx).First(&detail, "group_id = ?", entry.GroupID).Error; err == nil {
			snapshots.Detail = jobSnapshot(&detail)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	case models.KindProvider:
		var detail models.ServiceDetail
		if err := s.db.WithContext(ctx).First(&detail, "group_id = ?", entry.GroupID).Error; err == nil {
			snapshots.Detail = serviceSnapshot(&detail)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	var rate models.RateCard
	if err := s.db.WithContext(ctx).First(&rate, "group_id = ?", entry.GroupID).Error; err == nil {
		snapshots.Rate = rateSnapshot(&rate)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.ledger.RefreshSnapshots(ctx, entry.GroupID, snapshots)
}

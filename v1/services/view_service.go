package services

import (
	"context"
	"errors"
	"time"

	"github.com/taskbridge/intake-backend/v1/models"
	"gorm.io/gorm"
)

// ViewService merges live per-table records with the ledger snapshot for
// reads. Live rows win; snapshot fields fill in when a live row is missing,
// and each section carries its source so callers can detect the fallback.
type ViewService struct {
	db     *gorm.DB
	ledger *LedgerService
}

// NewViewService creates a new view service
func NewViewService(db *gorm.DB, ledger *LedgerService) *ViewService {
	return &ViewService{db: db, ledger: ledger}
}

// GetByGroup builds the merged view for one submission group
func (s *ViewService) GetByGroup(ctx context.Context, groupID string, now time.Time) (*models.MergedView, error) {
	entry, err := s.ledger.GetByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.merge(ctx, entry, now)
}

// ListMine returns merged views for one email anchor filtered by scope.
// Expiry is computed at read time from the scheduled date, so entries whose
// date has passed surface as expired regardless of their stored status.
func (s *ViewService) ListMine(ctx context.Context, email string, scope models.ListScope, now time.Time) ([]models.MergedView, error) {
	statuses, ok := models.ScopeStatuses[scope]
	if !ok {
		return nil, &models.ValidationError{Fields: []string{"scope"}}
	}

	entries, err := s.ledger.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	views := make([]models.MergedView, 0, len(entries))
	for i := range entries {
		view, err := s.merge(ctx, &entries[i], now)
		if err != nil {
			return nil, err
		}
		if statusIn(models.Status(view.Status), statuses) {
			views = append(views, *view)
		}
	}
	return views, nil
}

func statusIn(status models.Status, set []models.Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (s *ViewService) merge(ctx context.Context, entry *models.LedgerEntry, now time.Time) (*models.MergedView, error) {
	view := &models.MergedView{
		GroupID:       entry.GroupID,
		SubmitterKind: entry.SubmitterKind,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     entry.UpdatedAt.Format(time.RFC3339),
	}

	// Profile section
	var profile models.SubmissionProfile
	err := s.db.WithContext(ctx).First(&profile, "group_id = ?", entry.GroupID).Error
	switch {
	case err == nil:
		view.Profile = models.MergedSection{Source: models.SourceLive, Fields: profileSnapshot(&profile)}
	case errors.Is(err, gorm.ErrRecordNotFound):
		view.Profile = models.MergedSection{Source: models.SourceSnapshot, Fields: entry.SnapshotProfile}
	default:
		return nil, err
	}

	// Detail section
	var scheduledDate string
	switch models.SubmitterKind(entry.SubmitterKind) {
	case models.KindRequester:
		var detail models.JobDetail
		err = s.db.WithContext(ctx).First(&detail, "group_id = ?", entry.GroupID).Error
		switch {
		case err == nil:
			view.Detail = models.MergedSection{Source: models.SourceLive, Fields: jobSnapshot(&detail)}
			scheduledDate = detail.ScheduledDate
		case errors.Is(err, gorm.ErrRecordNotFound):
			view.Detail = models.MergedSection{Source: models.SourceSnapshot, Fields: entry.SnapshotDetail}
			scheduledDate = snapshotString(entry.SnapshotDetail, "scheduled_date")
		default:
			return nil, err
		}
	case models.KindProvider:
		var detail models.ServiceDetail
		err = s.db.WithContext(ctx).First(&detail, "group_id = ?", entry.GroupID).Error
		switch {
		case err == nil:
			view.Detail = models.MergedSection{Source: models.SourceLive, Fields: serviceSnapshot(&detail)}
		case errors.Is(err, gorm.ErrRecordNotFound):
			view.Detail = models.MergedSection{Source: models.SourceSnapshot, Fields: entry.SnapshotDetail}
		default:
			return nil, err
		}

		var documents models.ProviderDocuments
		if err := s.db.WithContext(ctx).First(&documents, "group_id = ?", entry.GroupID).Error; err == nil {
			view.Documents = documentsMap(&documents)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	// Rate section
	var rate models.RateCard
	err = s.db.WithContext(ctx).First(&rate, "group_id = ?", entry.GroupID).Error
	switch {
	case err == nil:
		view.Rate = models.MergedSection{Source: models.SourceLive, Fields: rateSnapshot(&rate)}
	case errors.Is(err, gorm.ErrRecordNotFound):
		view.Rate = models.MergedSection{Source: models.SourceSnapshot, Fields: entry.SnapshotRate}
	default:
		return nil, err
	}

	view.Status = string(effectiveStatus(entry, scheduledDate, now))
	return view, nil
}

func snapshotString(snapshot models.JSONMap, key string) string {
	if snapshot == nil {
		return ""
	}
	if s, ok := snapshot[key].(string); ok {
		return s
	}
	return ""
}

// effectiveStatus computes the read-time status. A requester submission
// whose scheduled date has passed reads as expired while it is still
// pending or approved in the ledger; the stored status is never rewritten.
func effectiveStatus(entry *models.LedgerEntry, scheduledDate string, now time.Time) models.Status {
	status := models.Status(entry.Status)
	if models.SubmitterKind(entry.SubmitterKind) != models.KindRequester {
		return status
	}
	if status != models.StatusPending && status != models.StatusApproved {
		return status
	}
	if scheduledDate == "" {
		return status
	}

	date, err := time.Parse("2006-01-02", scheduledDate)
	if err != nil {
		return status
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return models.StatusExpired
	}
	return status
}

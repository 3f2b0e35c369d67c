package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskbridge/intake-backend/v1/models"
	"gorm.io/gorm"
)

// LedgerService owns the status ledger: one pending row per submission
// group with a denormalized snapshot for join-free listings
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Snapshots is the denormalized copy of the live records stored on a
// ledger entry
type Snapshots struct {
	Profile models.JSONMap
	Detail  models.JSONMap
	Rate    models.JSONMap
}

// CheckDuplicateActive rejects a second active submission for the same
// email anchor. Applied to the provider flow only; the requester flow
// allows multiple concurrent requests by design.
func (s *LedgerService) CheckDuplicateActive(ctx context.Context, email string) error {
	var existing models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("email = ? AND status IN ?", CanonicalEmail(email), []string{string(models.StatusPending), string(models.StatusApproved)}).
		First(&existing).Error
	if err == nil {
		return &models.ConflictError{Email: CanonicalEmail(email), ExistingStatus: models.Status(existing.Status)}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// CreatePending creates the single pending ledger entry for a new
// submission group
func (s *LedgerService) CreatePending(ctx context.Context, groupID string, kind models.SubmitterKind, email string, snapshots Snapshots) (*models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		LedgerID:        "led_" + uuid.New().String(),
		GroupID:         groupID,
		SubmitterKind:   string(kind),
		Email:           CanonicalEmail(email),
		Status:          string(models.StatusPending),
		SnapshotProfile: snapshots.Profile,
		SnapshotDetail:  snapshots.Detail,
		SnapshotRate:    snapshots.Rate,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	ledgerTransitionsTotal.WithLabelValues(string(models.StatusPending)).Inc()
	slog.Info("Ledger entry created", "groupId", groupID, "ledgerId", entry.LedgerID, "kind", kind)
	return &entry, nil
}

// GetByGroup loads the ledger entry for a submission group
func (s *LedgerService) GetByGroup(ctx context.Context, groupID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := s.db.WithContext(ctx).First(&entry, "group_id = ?", groupID).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Transition moves a pending entry to approved or declined and records the
// decision reason. Terminal states accept no further transitions.
func (s *LedgerService) Transition(ctx context.Context, groupID string, newStatus models.Status, reason *string) (*models.LedgerEntry, error) {
	entry, err := s.GetByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	current := models.Status(entry.Status)
	if current != models.StatusPending {
		return nil, &models.InvalidTransitionError{From: current, To: newStatus}
	}

	now := time.Now().UTC()
	entry.Status = string(newStatus)
	entry.DecisionReason = reason
	entry.DecidedAt = &now

	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to transition ledger entry: %w", err)
	}

	ledgerTransitionsTotal.WithLabelValues(string(newStatus)).Inc()
	slog.Info("Ledger entry transitioned", "groupId", groupID, "from", current, "to", newStatus)
	return entry, nil
}

// Cancel moves a pending entry to cancelled and appends a cancellation log
// record. Both writes happen inside one transaction so either both succeed
// or the transition is considered not to have happened. Re-cancelling an
// already-cancelled group is a no-op, not an error.
func (s *LedgerService) Cancel(ctx context.Context, groupID, reasonChoice, reasonText string) (*models.LedgerEntry, error) {
	entry, err := s.GetByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	current := models.Status(entry.Status)
	if current == models.StatusCancelled {
		return entry, nil
	}
	if current != models.StatusPending {
		return nil, &models.InvalidTransitionError{From: current, To: models.StatusCancelled}
	}

	now := time.Now().UTC()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	entry.Status = string(models.StatusCancelled)
	entry.DecidedAt = &now
	if err := tx.Save(entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to cancel ledger entry: %w", err)
	}

	logEntry := models.CancellationLog{
		LogID:        "can_" + uuid.New().String(),
		GroupID:      groupID,
		ReasonChoice: reasonChoice,
		ReasonText:   reasonText,
		CancelledAt:  now,
	}
	if err := tx.Create(&logEntry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to write cancellation log: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	ledgerTransitionsTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	slog.Info("Submission cancelled", "groupId", groupID, "reasonChoice", reasonChoice)
	return entry, nil
}

// RefreshSnapshots rewrites the denormalized snapshot on a ledger entry
// after an update reconciliation
func (s *LedgerService) RefreshSnapshots(ctx context.Context, groupID string, snapshots Snapshots) error {
	result := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("group_id = ?", groupID).
		Updates(map[string]interface{}{
			"snapshot_profile": snapshots.Profile,
			"snapshot_detail":  snapshots.Detail,
			"snapshot_rate":    snapshots.Rate,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to refresh ledger snapshot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByEmail loads all ledger entries for an email anchor, newest first
func (s *LedgerService) ListByEmail(ctx context.Context, email string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("email = ?", CanonicalEmail(email)).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

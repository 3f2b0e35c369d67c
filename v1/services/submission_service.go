package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/taskbridge/intake-backend/v1/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// SubmissionService runs the intake pipeline end to end and exposes the
// operations the routing layer calls
type SubmissionService struct {
	identity  *IdentityService
	storage   *StorageService
	writer    *WriterService
	ledger    *LedgerService
	views     *ViewService
	reconcile *ReconcileService
	buckets   BucketConfig
}

// NewSubmissionService wires the pipeline components together
func NewSubmissionService(db *gorm.DB, storage *StorageService, buckets BucketConfig) *SubmissionService {
	ledger := NewLedgerService(db)
	writer := NewWriterService(db)
	return &SubmissionService{
		identity:  NewIdentityService(db),
		storage:   storage,
		writer:    writer,
		ledger:    ledger,
		views:     NewViewService(db, ledger),
		reconcile: NewReconcileService(db, writer, storage, ledger, buckets),
		buckets:   buckets,
	}
}

// Submit accepts one loosely-structured payload, resolves the submitter,
// uploads attachments, writes the related tables under one fresh group id
// and creates the pending ledger entry
func (s *SubmissionService) Submit(ctx context.Context, kind models.SubmitterKind, raw map[string]interface{}) (*models.SubmitResult, error) {
	c := Normalize(kind, raw)

	identity, err := s.resolveAndGuard(ctx, kind, c)
	if err != nil {
		submissionsTotal.WithLabelValues(string(kind), "rejected").Inc()
		return nil, err
	}

	groupID := uuid.New().String()

	profileImageURL, err := s.storage.UploadSlot(ctx, s.buckets.ProfileImages, groupID, models.SlotProfileImage, c.ProfileImage)
	if err != nil {
		// The profile image slot is optional
		slog.Warn("profile image upload degraded to empty", "groupId", groupID, "error", err)
		profileImageURL = ""
	}

	attachmentURLs, err := s.uploadRequesterAttachments(ctx, groupID, c)
	if err != nil {
		submissionsTotal.WithLabelValues(string(kind), "failed").Inc()
		return nil, err
	}

	var documents map[string]string
	if kind == models.KindProvider {
		mandatory := map[string]bool{models.SlotPrimaryID: true}
		documents, err = s.storage.UploadAll(ctx, s.buckets.ProviderDocuments, groupID, c.Documents, mandatory)
		if err != nil {
			submissionsTotal.WithLabelValues(string(kind), "failed").Inc()
			return nil, err
		}
	}

	if err := s.writer.WriteAll(ctx, groupID, kind, c, identity, profileImageURL, attachmentURLs, documents); err != nil {
		submissionsTotal.WithLabelValues(string(kind), "failed").Inc()
		return nil, err
	}

	snapshots := BuildSnapshots(kind, c, identity, profileImageURL, attachmentURLs, documents)
	entry, err := s.ledger.CreatePending(ctx, groupID, kind, identity.Email, snapshots)
	if err != nil {
		submissionsTotal.WithLabelValues(string(kind), "failed").Inc()
		return nil, err
	}

	submissionsTotal.WithLabelValues(string(kind), "accepted").Inc()
	slog.Info("Submission accepted", "groupId", groupID, "kind", kind, "email", identity.Email)

	return &models.SubmitResult{
		GroupID:   groupID,
		Status:    entry.Status,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	}, nil
}

// resolveAndGuard resolves the submitter identity and, for the provider
// flow, rejects a duplicate active submission. When the payload already
// carries an email the two read-only lookups are independent and run
// concurrently.
func (s *SubmissionService) resolveAndGuard(ctx context.Context, kind models.SubmitterKind, c *CanonicalFields) (*ResolvedIdentity, error) {
	if kind != models.KindProvider {
		return s.identity.Resolve(ctx, c)
	}

	if c.Email != "" {
		var identity *ResolvedIdentity
		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			resolved, err := s.identity.Resolve(groupCtx, c)
			identity = resolved
			return err
		})
		group.Go(func() error {
			return s.ledger.CheckDuplicateActive(groupCtx, c.Email)
		})
		if err := group.Wait(); err != nil {
			return nil, err
		}
		return identity, nil
	}

	identity, err := s.identity.Resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.CheckDuplicateActive(ctx, identity.Email); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *SubmissionService) uploadRequesterAttachments(ctx context.Context, groupID string, c *CanonicalFields) ([]string, error) {
	if len(c.Attachments) == 0 {
		return nil, nil
	}

	slots := make(map[string]*Attachment, len(c.Attachments))
	for i, att := range c.Attachments {
		slots[attachmentSlotName(i)] = att
	}
	// Requester attachments are all optional
	uploaded, err := s.storage.UploadAll(ctx, s.buckets.JobAttachments, groupID, slots, nil)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(c.Attachments))
	for i := range c.Attachments {
		if uploadedURL := uploaded[attachmentSlotName(i)]; uploadedURL != "" {
			urls = append(urls, uploadedURL)
		}
	}
	return urls, nil
}

func attachmentSlotName(i int) string {
	return "attachment_" + strconv.Itoa(i+1)
}

// Cancel runs the ledger transition plus cancellation log dual write
func (s *SubmissionService) Cancel(ctx context.Context, groupID string, req *models.CancelRequest) (*models.CancelResult, error) {
	if req == nil || req.ReasonChoice == "" {
		return nil, models.NewValidationError("", "reasonChoice")
	}

	entry, err := s.ledger.Cancel(ctx, groupID, req.ReasonChoice, req.ReasonText)
	if err != nil {
		return nil, err
	}

	cancelledAt := entry.UpdatedAt
	if entry.DecidedAt != nil {
		cancelledAt = *entry.DecidedAt
	}
	return &models.CancelResult{
		GroupID:     groupID,
		CancelledAt: cancelledAt.Format(time.RFC3339),
	}, nil
}

// Approve transitions a pending group to approved (administrator only)
func (s *SubmissionService) Approve(ctx context.Context, groupID string) (*models.LedgerEntry, error) {
	return s.ledger.Transition(ctx, groupID, models.StatusApproved, nil)
}

// Decline transitions a pending group to declined with a reason
// (administrator only)
func (s *SubmissionService) Decline(ctx context.Context, groupID, reason string) (*models.LedgerEntry, error) {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	return s.ledger.Transition(ctx, groupID, models.StatusDeclined, reasonPtr)
}

// GetByGroup returns the merged view for one group
func (s *SubmissionService) GetByGroup(ctx context.Context, groupID string) (*models.MergedView, error) {
	return s.views.GetByGroup(ctx, groupID, time.Now().UTC())
}

// ListMine returns merged views for one identity anchor (account id or
// email) filtered by scope
func (s *SubmissionService) ListMine(ctx context.Context, anchor string, scope models.ListScope) ([]models.MergedView, error) {
	email, err := s.identity.ResolveAnchorEmail(ctx, anchor)
	if err != nil {
		return nil, err
	}
	return s.views.ListMine(ctx, email, scope, time.Now().UTC())
}

// Update applies a partial edit set and refreshes the ledger snapshot
func (s *SubmissionService) Update(ctx context.Context, groupID string, partialEdits map[string]interface{}) error {
	return s.reconcile.Reconcile(ctx, groupID, partialEdits)
}

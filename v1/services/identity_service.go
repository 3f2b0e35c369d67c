package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taskbridge/intake-backend/v1/models"
	"gorm.io/gorm"
)

// ResolvedIdentity is the anchor set established for one submission.
// AccountID stays nil when the submitter could only be anchored by email.
type ResolvedIdentity struct {
	AccountID *string
	AuthID    string
	Email     string
}

// IdentityService maps a normalized payload to an existing submitter account
type IdentityService struct {
	db *gorm.DB
}

// NewIdentityService creates a new identity service
func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db}
}

// Resolve establishes the submitter identity in order: explicit account id,
// external auth id, then case-insensitive email. Each successful lookup
// backfills still-missing identity fields. Email is the minimum anchor; an
// unresolvable account id degrades to anonymous-by-email instead of failing.
func (s *IdentityService) Resolve(ctx context.Context, c *CanonicalFields) (*ResolvedIdentity, error) {
	resolved := &ResolvedIdentity{
		AuthID: c.AuthID,
		Email:  CanonicalEmail(c.Email),
	}

	if c.AccountID != "" {
		var account models.Account
		err := s.db.WithContext(ctx).First(&account, "account_id = ?", c.AccountID).Error
		switch {
		case err == nil:
			s.backfill(resolved, &account)
			resolved.AccountID = &account.AccountID
			return resolved, s.requireEmail(resolved)
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Proceed anonymously by email alone
			slog.Warn("account id in payload does not resolve, continuing by email", "accountId", c.AccountID)
		default:
			return nil, err
		}
	}

	if resolved.AccountID == nil && c.AuthID != "" {
		var account models.Account
		err := s.db.WithContext(ctx).First(&account, "auth_id = ?", c.AuthID).Error
		switch {
		case err == nil:
			s.backfill(resolved, &account)
			resolved.AccountID = &account.AccountID
			return resolved, s.requireEmail(resolved)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, err
		}
	}

	if resolved.AccountID == nil && resolved.Email != "" {
		var account models.Account
		err := s.db.WithContext(ctx).First(&account, "LOWER(email) = ?", resolved.Email).Error
		switch {
		case err == nil:
			s.backfill(resolved, &account)
			resolved.AccountID = &account.AccountID
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, err
		}
	}

	return resolved, s.requireEmail(resolved)
}

// backfill fills identity fields the payload omitted from a matched account
func (s *IdentityService) backfill(resolved *ResolvedIdentity, account *models.Account) {
	if resolved.Email == "" {
		resolved.Email = CanonicalEmail(account.Email)
	}
	if resolved.AuthID == "" {
		resolved.AuthID = account.AuthID
	}
}

func (s *IdentityService) requireEmail(resolved *ResolvedIdentity) error {
	if resolved.Email == "" {
		return &models.IdentityUnresolvedError{Hint: "no email could be established for this submission"}
	}
	return nil
}

// ResolveAnchorEmail maps a listing anchor (account id or email) to the
// canonical email used by the ledger
func (s *IdentityService) ResolveAnchorEmail(ctx context.Context, anchor string) (string, error) {
	if anchor == "" {
		return "", &models.IdentityUnresolvedError{Hint: "empty identity anchor"}
	}
	if isEmailAnchor(anchor) {
		return CanonicalEmail(anchor), nil
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "account_id = ?", anchor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &models.IdentityUnresolvedError{Hint: "unknown account id " + anchor}
		}
		return "", err
	}
	return CanonicalEmail(account.Email), nil
}

func isEmailAnchor(anchor string) bool {
	for _, r := range anchor {
		if r == '@' {
			return true
		}
	}
	return false
}

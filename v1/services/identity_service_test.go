package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbridge/intake-backend/v1/models"
)

func seedAccount(t *testing.T, svc *IdentityService, account models.Account) {
	require.NoError(t, svc.db.Create(&account).Error)
}

func TestIdentityService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolves by account id and backfills email", func(t *testing.T) {
		svc := NewIdentityService(SetupSQLiteTestDB(t))
		seedAccount(t, svc, models.Account{AccountID: "acc-1", AuthID: "auth-1", Email: "Owner@Example.com"})

		resolved, err := svc.Resolve(ctx, &CanonicalFields{AccountID: "acc-1"})
		require.NoError(t, err)
		require.NotNil(t, resolved.AccountID)
		assert.Equal(t, "acc-1", *resolved.AccountID)
		assert.Equal(t, "owner@example.com", resolved.Email)
		assert.Equal(t, "auth-1", resolved.AuthID)
	})

	t.Run("Falls back to auth id lookup", func(t *testing.T) {
		svc := NewIdentityService(SetupSQLiteTestDB(t))
		seedAccount(t, svc, models.Account{AccountID: "acc-2", AuthID: "auth-2", Email: "two@example.com"})

		resolved, err := svc.Resolve(ctx, &CanonicalFields{AuthID: "auth-2"})
		require.NoError(t, err)
		require.NotNil(t, resolved.AccountID)
		assert.Equal(t, "acc-2", *resolved.AccountID)
		assert.Equal(t, "two@example.com", resolved.Email)
	})

	t.Run("Email lookup is case-insensitive", func(t *testing.T) {
		svc := NewIdentityService(SetupSQLiteTestDB(t))
		seedAccount(t, svc, models.Account{AccountID: "acc-3", Email: "Three@Example.com"})

		resolved, err := svc.Resolve(ctx, &CanonicalFields{Email: "THREE@example.COM"})
		require.NoError(t, err)
		require.NotNil(t, resolved.AccountID)
		assert.Equal(t, "acc-3", *resolved.AccountID)
	})

	t.Run("Unresolvable account id degrades to anonymous by email", func(t *testing.T) {
		svc := NewIdentityService(SetupSQLiteTestDB(t))

		resolved, err := svc.Resolve(ctx, &CanonicalFields{AccountID: "ghost", Email: "anon@example.com"})
		require.NoError(t, err)
		assert.Nil(t, resolved.AccountID)
		assert.Equal(t, "anon@example.com", resolved.Email)
	})

	t.Run("No anchor at all fails with IdentityUnresolvedError", func(t *testing.T) {
		svc := NewIdentityService(SetupSQLiteTestDB(t))

		_, err := svc.Resolve(ctx, &CanonicalFields{})
		var unresolved *models.IdentityUnresolvedError
		assert.ErrorAs(t, err, &unresolved)
	})
}

func TestIdentityService_ResolveAnchorEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewIdentityService(SetupSQLiteTestDB(t))
	seedAccount(t, svc, models.Account{AccountID: "acc-9", Email: "Nine@Example.com"})

	t.Run("Email anchor is canonicalized", func(t *testing.T) {
		email, err := svc.ResolveAnchorEmail(ctx, " Nine@Example.COM ")
		assert.NoError(t, err)
		assert.Equal(t, "nine@example.com", email)
	})

	t.Run("Account id anchor resolves to the account email", func(t *testing.T) {
		email, err := svc.ResolveAnchorEmail(ctx, "acc-9")
		assert.NoError(t, err)
		assert.Equal(t, "nine@example.com", email)
	})

	t.Run("Unknown account id fails", func(t *testing.T) {
		_, err := svc.ResolveAnchorEmail(ctx, "acc-missing")
		var unresolved *models.IdentityUnresolvedError
		assert.ErrorAs(t, err, &unresolved)
	})
}

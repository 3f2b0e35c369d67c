package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbridge/intake-backend/v1/models"
)

func testIdentity(email string) *ResolvedIdentity {
	return &ResolvedIdentity{Email: email}
}

func TestWriterService_WriteAll_Requester(t *testing.T) {
	ctx := context.Background()
	db := SetupSQLiteTestDB(t)
	writer := NewWriterService(db)

	c := &CanonicalFields{
		Name:          "Asha Perera",
		Phone:         "+94771234567",
		JobType:       "plumbing",
		JobDescription: "Fix kitchen sink",
		ScheduledDate: "2027-03-14",
		IsUrgent:      true,
		WorkerCount:   "2",
		RateType:      "hourly",
		RateFrom:      "1500",
		RateTo:        "2500",
	}

	err := writer.WriteAll(ctx, "group-r1", models.KindRequester, c, testIdentity("asha@example.com"), "https://img.example.com/p.jpg", []string{"https://cdn.example.com/a1.jpg"}, nil)
	require.NoError(t, err)

	var profile models.SubmissionProfile
	require.NoError(t, db.First(&profile, "group_id = ?", "group-r1").Error)
	assert.Equal(t, "asha@example.com", profile.Email)
	assert.Equal(t, "https://img.example.com/p.jpg", profile.ProfileImageURL)

	var detail models.JobDetail
	require.NoError(t, db.First(&detail, "group_id = ?", "group-r1").Error)
	assert.True(t, detail.IsUrgent)
	assert.Equal(t, 2, detail.WorkerCount)
	assert.Equal(t, models.StringList{"https://cdn.example.com/a1.jpg"}, detail.AttachmentURLs)

	var rate models.RateCard
	require.NoError(t, db.First(&rate, "group_id = ?", "group-r1").Error)
	assert.Equal(t, string(models.RateTypeHourly), rate.RateType)
	require.NotNil(t, rate.RateFrom)
	assert.Equal(t, 1500.0, *rate.RateFrom)
	assert.Nil(t, rate.RateValue)
}

func TestWriterService_WriteAll_Provider(t *testing.T) {
	ctx := context.Background()
	db := SetupSQLiteTestDB(t)
	writer := NewWriterService(db)

	c := &CanonicalFields{
		Name:            "Nimal Silva",
		Phone:           "+94770000001",
		Categories:      []string{"cleaning", "gardening"},
		TaskSelections:  map[string][]string{"cleaning": {"deep clean"}},
		ExperienceYears: "7",
		HasOwnTools:     true,
		RateValue:       "500",
	}
	documents := map[string]string{
		models.SlotPrimaryID:    "https://docs.example.com/id.pdf",
		models.SlotAddressProof: "",
	}

	err := writer.WriteAll(ctx, "group-p1", models.KindProvider, c, testIdentity("nimal@example.com"), "", nil, documents)
	require.NoError(t, err)

	var detail models.ServiceDetail
	require.NoError(t, db.First(&detail, "group_id = ?", "group-p1").Error)
	assert.Equal(t, models.StringList{"cleaning", "gardening"}, detail.Categories)
	assert.Equal(t, 7, detail.ExperienceYears)

	// Rate type omitted with a value present infers the fixed label
	var rate models.RateCard
	require.NoError(t, db.First(&rate, "group_id = ?", "group-p1").Error)
	assert.Equal(t, string(models.RateTypeFixed), rate.RateType)
	require.NotNil(t, rate.RateValue)
	assert.Equal(t, 500.0, *rate.RateValue)
	assert.Nil(t, rate.RateFrom)
	assert.Nil(t, rate.RateTo)

	var docs models.ProviderDocuments
	require.NoError(t, db.First(&docs, "group_id = ?", "group-p1").Error)
	assert.Equal(t, "https://docs.example.com/id.pdf", docs.PrimaryID)
}

func TestWriterService_Validation(t *testing.T) {
	ctx := context.Background()
	db := SetupSQLiteTestDB(t)
	writer := NewWriterService(db)

	t.Run("Missing profile fields abort before any write", func(t *testing.T) {
		c := &CanonicalFields{JobType: "plumbing", ScheduledDate: "2027-01-01"}
		err := writer.WriteAll(ctx, "group-v1", models.KindRequester, c, testIdentity(""), "", nil, nil)

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.ElementsMatch(t, []string{"name", "email", "phone"}, validationErr.Fields)

		var count int64
		db.Model(&models.SubmissionProfile{}).Where("group_id = ?", "group-v1").Count(&count)
		assert.Zero(t, count)
	})

	t.Run("Detail validation failure leaves the profile row in place", func(t *testing.T) {
		c := &CanonicalFields{Name: "A", Phone: "1"}
		err := writer.WriteAll(ctx, "group-v2", models.KindRequester, c, testIdentity("v2@example.com"), "", nil, nil)

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.ElementsMatch(t, []string{"job_type", "scheduled_date"}, validationErr.Fields)

		// No rollback of the earlier write: accepted limitation
		var count int64
		db.Model(&models.SubmissionProfile{}).Where("group_id = ?", "group-v2").Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Provider without mandatory document fails", func(t *testing.T) {
		c := &CanonicalFields{Name: "B", Phone: "2", Categories: []string{"cleaning"}, RateValue: "100"}
		err := writer.WriteAll(ctx, "group-v3", models.KindProvider, c, testIdentity("v3@example.com"), "", nil, map[string]string{})

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, []string{models.SlotPrimaryID}, validationErr.Fields)
	})

	t.Run("No rate mode at all is a validation error", func(t *testing.T) {
		_, err := CanonicalRateType(&CanonicalFields{})
		assert.True(t, models.IsValidationError(err))
	})
}

func TestCanonicalRateType(t *testing.T) {
	cases := []struct {
		in   CanonicalFields
		want models.RateType
	}{
		{CanonicalFields{RateType: "hourly"}, models.RateTypeHourly},
		{CanonicalFields{RateType: "Per_Hour"}, models.RateTypeHourly},
		{CanonicalFields{RateType: "by_the_job"}, models.RateTypeFixed},
		{CanonicalFields{RateType: "FIXED"}, models.RateTypeFixed},
		{CanonicalFields{RateValue: "500"}, models.RateTypeFixed},
		{CanonicalFields{RateFrom: "100", RateTo: "200"}, models.RateTypeHourly},
	}
	for _, tc := range cases {
		got, err := CanonicalRateType(&tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestWriterService_SchemaDriftRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing column retries once with the alternate name", func(t *testing.T) {
		db, mock, cleanup := SetupMockDB(t)
		defer cleanup()
		writer := NewWriterService(db)

		mock.ExpectExec(`INSERT INTO "job_details"`).
			WillReturnError(errors.New(`ERROR: column "worker_count" of relation "job_details" does not exist (SQLSTATE 42703)`))
		mock.ExpectExec(`INSERT INTO "job_details"`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		cols := map[string]interface{}{"group_id": "g", "worker_count": 2}
		err := writer.insertWithRetry(ctx, "job_details", cols)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Retry failing too surfaces SchemaDriftError", func(t *testing.T) {
		db, mock, cleanup := SetupMockDB(t)
		defer cleanup()
		writer := NewWriterService(db)

		mock.ExpectExec(`INSERT INTO "job_details"`).
			WillReturnError(errors.New(`column "worker_count" of relation "job_details" does not exist`))
		mock.ExpectExec(`INSERT INTO "job_details"`).
			WillReturnError(errors.New(`column "workers_count" of relation "job_details" does not exist`))

		err := writer.insertWithRetry(ctx, "job_details", map[string]interface{}{"group_id": "g", "worker_count": 2})
		var driftErr *models.SchemaDriftError
		require.ErrorAs(t, err, &driftErr)
		assert.Equal(t, "job_details", driftErr.Table)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Schema cache signature also triggers the retry", func(t *testing.T) {
		assert.True(t, isMissingColumnError(errors.New(`could not find the 'worker_count' column in the schema cache`)))
		assert.True(t, isMissingColumnError(errors.New(`no such column: workers_count`)))
		assert.False(t, isMissingColumnError(errors.New(`connection refused`)))
	})

	t.Run("Rejected rate label retries historical spellings", func(t *testing.T) {
		db, mock, cleanup := SetupMockDB(t)
		defer cleanup()
		writer := NewWriterService(db)

		mock.ExpectExec(`INSERT INTO "rate_cards"`).
			WillReturnError(errors.New(`new row for relation "rate_cards" violates check constraint "rate_cards_rate_type_check"`))
		mock.ExpectExec(`INSERT INTO "rate_cards"`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		c := &CanonicalFields{RateType: "hourly", RateFrom: "100", RateTo: "200"}
		err := writer.writeRate(ctx, "group-l1", c)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWrapPartial(t *testing.T) {
	validation := models.NewValidationError("rate_cards", "rate_type")
	assert.Same(t, validation, wrapPartial("rate_cards", validation).(*models.ValidationError))

	infra := errors.New("disk on fire")
	var partialErr *models.PartialWriteError
	require.ErrorAs(t, wrapPartial("rate_cards", infra), &partialErr)
	assert.Equal(t, "rate_cards", partialErr.Table)
}

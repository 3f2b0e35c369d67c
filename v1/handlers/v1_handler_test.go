package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbridge/intake-backend/v1/middleware"
	"github.com/taskbridge/intake-backend/v1/models"
	"github.com/taskbridge/intake-backend/v1/services"
)

const testAdminSecret = "handler-test-secret"
const testAdminIssuer = "taskbridge-admin-portal"

// memoryStore satisfies services.ObjectStore for handler tests
type memoryStore struct{}

func (memoryStore) EnsureBucket(ctx context.Context, bucket string) error { return nil }

func (memoryStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	return fmt.Sprintf("https://storage.test/%s/%s", bucket, object), nil
}

func newTestMux(t *testing.T) *http.ServeMux {
	db := services.SetupSQLiteTestDB(t)
	storage := services.NewStorageService(memoryStore{}, memoryStore{})
	buckets := services.BucketConfig{
		ProfileImages:     "test-profile-images",
		JobAttachments:    "test-job-attachments",
		ProviderDocuments: "test-provider-documents",
	}
	submissions := services.NewSubmissionService(db, storage, buckets)
	adminAuth := middleware.NewAdminAuthMiddleware(middleware.AdminAuthConfig{
		Secret:         testAdminSecret,
		ExpectedIssuer: testAdminIssuer,
	})

	mux := http.NewServeMux()
	NewV1Handler(submissions, adminAuth).SetupV1Routes(mux)
	return mux
}

func adminToken(t *testing.T) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  testAdminIssuer,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testAdminSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func submitRequester(t *testing.T, mux *http.ServeMux, email string) string {
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/requester", map[string]interface{}{
		"full_name":      "Asha Perera",
		"email":          email,
		"phone":          "+94771234567",
		"job_type":       "plumbing",
		"scheduled_date": "2027-03-14",
		"rate_type":      "hourly",
		"rate_from":      "1000",
		"rate_to":        "2000",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result models.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result.GroupID
}

func TestSubmitEndpoint(t *testing.T) {
	mux := newTestMux(t)

	t.Run("Valid requester payload is accepted", func(t *testing.T) {
		groupID := submitRequester(t, mux, "h1@example.com")
		assert.NotEmpty(t, groupID)
	})

	t.Run("Missing fields return 400 with the field list", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/requester", map[string]interface{}{
			"email": "h2@example.com",
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body struct {
			Fields []string `json:"fields"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Fields)
	})

	t.Run("Malformed JSON returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/requester", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Duplicate active provider returns 409", func(t *testing.T) {
		payload := map[string]interface{}{
			"full_name":  "Nimal Silva",
			"email":      "h3@example.com",
			"phone":      "+94770000001",
			"categories": []string{"cleaning"},
			"rate_value": "500",
			"documents":  map[string]interface{}{"primary_id": "https://docs.example.com/id.pdf"},
		}
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/provider", payload, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = doJSON(t, mux, http.MethodPost, "/api/v1/submissions/provider", payload, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestReadEndpoints(t *testing.T) {
	mux := newTestMux(t)
	groupID := submitRequester(t, mux, "h4@example.com")

	t.Run("Get by group returns the merged view", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/submissions/"+groupID, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var view models.MergedView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, groupID, view.GroupID)
		assert.Equal(t, string(models.StatusPending), view.Status)
	})

	t.Run("Unknown group returns 404", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/submissions/missing-group", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Listing requires an anchor", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/submissions", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Listing by email anchor returns the submission", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/submissions?anchor=h4@example.com", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var views []models.MergedView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		require.Len(t, views, 1)
		assert.Equal(t, groupID, views[0].GroupID)
	})
}

func TestCancelEndpoint(t *testing.T) {
	mux := newTestMux(t)
	groupID := submitRequester(t, mux, "h5@example.com")

	t.Run("Cancel without a reason choice returns 400", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/cancel", map[string]string{}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Cancel with a reason succeeds and repeats as a no-op", func(t *testing.T) {
		payload := map[string]string{"reasonChoice": "no_longer_needed"}
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/cancel", payload, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/cancel", payload, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestDecisionEndpoints(t *testing.T) {
	mux := newTestMux(t)
	token := adminToken(t)

	t.Run("Approve requires the admin token", func(t *testing.T) {
		groupID := submitRequester(t, mux, "h6@example.com")
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/approve", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/approve", nil, token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Decline requires a reason", func(t *testing.T) {
		groupID := submitRequester(t, mux, "h7@example.com")
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/decline", map[string]string{}, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/decline", map[string]string{"reason": "incomplete"}, token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Deciding a terminal entry returns 409", func(t *testing.T) {
		groupID := submitRequester(t, mux, "h8@example.com")
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/approve", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, mux, http.MethodPost, "/api/v1/submissions/"+groupID+"/decline", map[string]string{"reason": "late"}, token)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestUpdateEndpoint(t *testing.T) {
	mux := newTestMux(t)
	groupID := submitRequester(t, mux, "h9@example.com")

	rec := doJSON(t, mux, http.MethodPatch, "/api/v1/submissions/"+groupID, map[string]interface{}{
		"scheduled_date": "2027-09-30",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/submissions/"+groupID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.MergedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "2027-09-30", view.Detail.Fields["scheduled_date"])
}

func TestUnknownRoutes(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/submissions/g/extra/path", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/submissions/some-group", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotizy/internal/directory"
	"kotizy/internal/ledger"
	"kotizy/internal/storage"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	led := ledger.NewService(store, nil, false)
	dir := directory.NewService(store)

	srv := NewServer("127.0.0.1:0", testAPIKey, led, dir, store)
	t.Cleanup(func() {
		srv.cacheManager.Stop()
		srv.rateLimiter.Stop()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createMember(t *testing.T, srv *Server, req memberRequest) memberResponse {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/admins/members", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[memberResponse](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireAPIKey(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admins/members", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMemberLifecycle(t *testing.T) {
	srv := newTestServer(t)

	created := createMember(t, srv, memberRequest{
		FirstName:   "Hery",
		LastName:    "Rakoto",
		BirthDate:   "1985-04-12",
		Gender:      "MALE",
		PhoneNumber: "+261 34 00 000 00",
		Status:      "WORKER",
	})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.SequenceNumber)
	assert.True(t, created.Active)

	rec := doJSON(t, srv, http.MethodGet, "/api/admins/members/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[memberResponse](t, rec)
	assert.Equal(t, "Hery Rakoto", got.FirstName+" "+got.LastName)

	rec = doJSON(t, srv, http.MethodPut, "/api/admins/members/"+created.ID, memberRequest{
		FirstName: "Hery",
		LastName:  "Rakoto",
		Status:    "STUDENT",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "STUDENT", decodeBody[memberResponse](t, rec).Status)

	rec = doJSON(t, srv, http.MethodGet, "/api/admins/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]memberResponse](t, rec), 1)

	rec = doJSON(t, srv, http.MethodDelete, "/api/admins/members/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/admins/members/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemberValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/admins/members", memberRequest{
		FirstName: "",
		LastName:  "Rakoto",
		Status:    "WORKER",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/admins/members/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteHeadWithDependentsConflicts(t *testing.T) {
	srv := newTestServer(t)

	head := createMember(t, srv, memberRequest{
		FirstName: "Hery", LastName: "Rakoto", Status: "WORKER",
	})
	createMember(t, srv, memberRequest{
		FirstName: "Naly", LastName: "Rakoto", Status: "STUDENT",
		ParentID: head.ID,
	})

	rec := doJSON(t, srv, http.MethodDelete, "/api/admins/members/"+head.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTaxonomyEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/admins/districts", taxonomyRequest{Name: "Analakely"})
	require.Equal(t, http.StatusCreated, rec.Code)
	district := decodeBody[taxonomyResponse](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/admins/districts", taxonomyRequest{Name: "Analakely"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/admins/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]taxonomyResponse](t, rec), 1)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/admins/districts/%d", district.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/admins/tributes", taxonomyRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateListAndReport(t *testing.T) {
	srv := newTestServer(t)
	year := time.Now().UTC().Year() + 1

	head := createMember(t, srv, memberRequest{
		FirstName: "Hery", LastName: "Rakoto", Status: "WORKER",
	})
	createMember(t, srv, memberRequest{
		FirstName: "Naly", LastName: "Rakoto", Status: "STUDENT",
		ParentID: head.ID,
	})
	createMember(t, srv, memberRequest{
		FirstName: "Voara", LastName: "Andriana", Status: "STUDENT",
	})

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/admins/contributions/generate/%d", year), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decodeBody[generationResponse](t, rec)
	assert.Equal(t, 3, gen.Generated)
	assert.Equal(t, 0, gen.Skipped)
	assert.Empty(t, gen.Failures)

	// Rerun is idempotent.
	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/admins/contributions/generate/%d", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gen = decodeBody[generationResponse](t, rec)
	assert.Equal(t, 0, gen.Generated)
	assert.Equal(t, 3, gen.Skipped)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]contributionResponse](t, rec)
	require.Len(t, all, 3)

	// Worker with one dependent owes 10000 + 5000.
	var headTotal int64
	for _, c := range all {
		if c.MemberName == "Hery Rakoto" {
			headTotal = c.AmountAriary
		}
	}
	assert.Equal(t, int64(15000), headTotal)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d?q=andriana", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]contributionResponse](t, rec), 1)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d?min_remaining=10%%20000", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]contributionResponse](t, rec), 1)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d?min_remaining=-5", year), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d/report", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[reportResponse](t, rec)
	assert.Equal(t, 3, report.Members)
	assert.Equal(t, int64(25000), report.TotalExpectedAriary)
	assert.Equal(t, 0, report.PercentCollected)
	assert.Len(t, report.AtRisk, 3)

	// Filtered report aggregates only the matching slice of the roster.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d/report?q=rakoto", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decodeBody[reportResponse](t, rec)
	assert.Equal(t, 2, filtered.Members)
	assert.Equal(t, int64(20000), filtered.TotalExpectedAriary)
}

func TestPaymentFlowInvalidatesReport(t *testing.T) {
	srv := newTestServer(t)
	year := time.Now().UTC().Year() + 1

	m := createMember(t, srv, memberRequest{
		FirstName: "Hery", LastName: "Rakoto", Status: "WORKER",
	})

	rec := doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/admins/members/%s/contributions/%d", m.ID, year), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	contribution := decodeBody[contributionResponse](t, rec)
	assert.Equal(t, int64(10000), contribution.AmountAriary)

	// Warm the report cache before any payment.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d/report", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decodeBody[reportResponse](t, rec).TotalCollectedAriary)

	rec = doJSON(t, srv, http.MethodPost,
		"/api/admins/contributions/"+contribution.ID+"/payments",
		paymentCreateRequest{AmountAriary: 4000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeBody[paymentWithContribution](t, rec)
	assert.Equal(t, "PARTIAL", result.Contribution.Status)
	assert.Equal(t, int64(6000), result.Contribution.RemainingAriary)

	// The cached report was invalidated by the payment.
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/admins/contributions/years/%d/report", year), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4000), decodeBody[reportResponse](t, rec).TotalCollectedAriary)

	// Overpayment is rejected with the default policy.
	rec = doJSON(t, srv, http.MethodPost,
		"/api/admins/contributions/"+contribution.ID+"/payments",
		paymentCreateRequest{AmountAriary: 7000})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, srv, http.MethodPost,
		"/api/admins/contributions/"+contribution.ID+"/payments",
		paymentCreateRequest{AmountAriary: 6000})
	require.Equal(t, http.StatusCreated, rec.Code)
	result = decodeBody[paymentWithContribution](t, rec)
	assert.Equal(t, "PAID", result.Contribution.Status)

	// Payment history covers both recorded payments.
	rec = doJSON(t, srv, http.MethodGet, "/api/admins/contributions/"+contribution.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]paymentResponse](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, int64(10000), history[0].AmountAriary+history[1].AmountAriary)

	// Payment CRUD on the recorded payment.
	rec = doJSON(t, srv, http.MethodGet, "/api/admins/payments/"+result.Payment.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	newAmount := int64(5000)
	rec = doJSON(t, srv, http.MethodPut, "/api/admins/payments/"+result.Payment.ID,
		paymentUpdateRequest{AmountAriary: &newAmount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PARTIAL", decodeBody[paymentWithContribution](t, rec).Contribution.Status)

	rec = doJSON(t, srv, http.MethodDelete, "/api/admins/payments/"+result.Payment.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4000), decodeBody[contributionResponse](t, rec).TotalPaidAriary)
}

func TestGenerateRejectsBadYear(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/admins/contributions/generate/1990", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/admins/contributions/generate/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

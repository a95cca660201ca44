package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/jobs"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/testutil"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

const (
	testPhone      = "972501234567"
	testCronSecret = "cron-secret"
	testAuthSecret = "dashboard-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeConversation struct {
	err      error
	inbound  []string
	asked    []engine.Question
	reported []engine.AutoClassification
	mu       sync.Mutex
}

func (f *fakeConversation) ReportAutoClassified(_ context.Context, _ string, autos []engine.AutoClassification) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, autos...)
	return len(autos), nil
}

func (f *fakeConversation) HandleInbound(_ context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, phone+"|"+text)
	return f.err
}

func (f *fakeConversation) AskQuestions(_ context.Context, _ string, questions []engine.Question) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, questions...)
	return len(questions) > 0, nil
}

type fakeJobs struct {
	ran []string
	err error
}

func (f *fakeJobs) RunByName(_ context.Context, name string) (*jobs.RunSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch name {
	case jobs.NameAlerts, jobs.NameSavingsSync, jobs.NameMilestones:
	default:
		return nil, common.ErrNotFound
	}
	f.ran = append(f.ran, name)
	return &jobs.RunSummary{Job: name, Users: 1, Succeeded: 1}, nil
}

type testServer struct {
	srv   *Server
	db    *testutil.TestDB
	conv  *fakeConversation
	jobs  *fakeJobs
	user  *model.User
	token string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	user := db.MustCreateUser(testPhone)
	policy := config.DefaultPolicy()
	learner := learning.New(db.Storage, policy)

	ts := &testServer{db: db, user: user, conv: &fakeConversation{}, jobs: &fakeJobs{}}
	srv, err := New(Config{
		JWTSecret:  "test-jwt-secret-0123456789",
		CronSecret: testCronSecret,
		AuthSecret: testAuthSecret,
	}, Deps{
		Store:        db.Storage,
		Conversation: ts.conv,
		Rules:        learner,
		Bulk:         engine.NewBulkClassifier(db.Storage, learner, policy),
		Insights:     behavior.NewEngine(db.Storage, policy),
		Jobs:         ts.jobs,
	})
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

	token, _, err := srv.IssueToken(user.ID)
	require.NoError(t, err)
	ts.srv = srv
	ts.token = token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing jwt secret", Config{CronSecret: "x"}, common.ErrMissingConfig},
		{"short jwt secret", Config{JWTSecret: "short", CronSecret: "x"}, common.ErrInvalidConfig},
		{"missing cron secret", Config{JWTSecret: "0123456789abcdef"}, common.ErrMissingConfig},
		{"valid", Config{JWTSecret: "0123456789abcdef", CronSecret: "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWebhook(t *testing.T) {
	ts := setupServer(t)

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	t.Run("message is handed to the conversation", func(t *testing.T) {
		rec := post(url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"שלום"}, "MessageSid": {"SM1"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<Response>")
		assert.Equal(t, []string{testPhone + "|שלום"}, ts.conv.inbound)
	})

	t.Run("processing errors still answer 200", func(t *testing.T) {
		ts.conv.err = common.ErrNotFound
		defer func() { ts.conv.err = nil }()
		rec := post(url.Values{"From": {"whatsapp:+972509999999"}, "Body": {"hi"}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("payload without body is rejected", func(t *testing.T) {
		rec := post(url.Values{"From": {"whatsapp:+972501234567"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhookSignature(t *testing.T) {
	ts := setupServer(t)
	ts.srv.cfg.TwilioAuthToken = "twilio-token"
	ts.srv.cfg.PublicURL = "https://phi.example.com"

	form := url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"כן"}}
	send := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Twilio-Signature", sig)
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send("bogus"))
	assert.Empty(t, ts.conv.inbound)

	sig := whatsapp.Sign("twilio-token", "https://phi.example.com/webhook/whatsapp", form)
	assert.Equal(t, http.StatusOK, send(sig))
	assert.Len(t, ts.conv.inbound, 1)
}

func TestAuth(t *testing.T) {
	ts := setupServer(t)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		ts.srv.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
		defer func() {
			ts.srv.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
		}()
		rec := ts.do(t, http.MethodGet, "/api/profile", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token exchange", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/token",
			strings.NewReader(`{"phone":"050-123-4567","secret":"dashboard-secret"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, ts.user.ID, body["user_id"])
		assert.NotEmpty(t, body["token"])
	})

	t.Run("token exchange rejects unknown phone and bad secret", func(t *testing.T) {
		for _, payload := range []string{
			`{"phone":"0509999999","secret":"dashboard-secret"}`,
			`{"phone":"0501234567","secret":"wrong"}`,
		} {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			ts.srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, payload)
		}
	})
}

func TestCron(t *testing.T) {
	ts := setupServer(t)

	call := func(path, secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if secret != "" {
			req.Header.Set("X-Cron-Secret", secret)
		}
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("/cron/alerts", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call("/cron/alerts", "nope").Code)
	assert.Empty(t, ts.jobs.ran)

	rec := call("/cron/milestones", testCronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{jobs.NameMilestones}, ts.jobs.ran)
}

func TestServerFailuresHideCauses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "upstream",
			err:      common.Upstream("list users", errors.New("database is locked: /var/lib/phi/phi.db")),
			wantCode: http.StatusBadGateway,
			wantMsg:  "upstream service unavailable",
		},
		{
			name:     "internal",
			err:      errors.New("nil map write in runner"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupServer(t)
			ts.jobs.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/cron/alerts", nil)
			req.Header.Set("X-Cron-Secret", testCronSecret)
			rec := httptest.NewRecorder()
			ts.srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.wantMsg, env.Error.Message)
			assert.NotContains(t, rec.Body.String(), "phi.db")
			assert.NotContains(t, rec.Body.String(), "list users")
			assert.NotContains(t, rec.Body.String(), "runner")
		})
	}
}

func TestTransactions(t *testing.T) {
	ts := setupServer(t)
	day := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	txns := ts.db.MustAddTransactions(ts.user.ID,
		testutil.Expense("NETFLIX.COM", 49.90, day),
		testutil.Expense("PAZ 123", 210, day),
	)

	t.Run("list proposed", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/transactions?status=proposed&month=2024-03", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Len(t, body["transactions"], 2)
	})

	t.Run("bad month", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/transactions?month=March", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("confirm teaches the rule", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/transactions/"+txns[0].ID+"/confirm", map[string]string{"category": "מנויים"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got, err := ts.db.Storage.GetTransactionByID(context.Background(), ts.user.ID, txns[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, got.Status)
		assert.Equal(t, "מנויים", got.Category)

		rule, err := ts.db.Storage.GetVendorPattern(context.Background(), ts.user.ID, txns[0].NormalizedVendor)
		require.NoError(t, err)
		assert.Equal(t, "מנויים", rule.Category)
	})

	t.Run("confirm rejects unknown category", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/transactions/"+txns[1].ID+"/confirm", map[string]string{"category": "קזינו"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reject", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/transactions/"+txns[1].ID+"/reject", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got, err := ts.db.Storage.GetTransactionByID(context.Background(), ts.user.ID, txns[1].ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejected, got.Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/transactions/missing/reject", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", errorCode(t, rec))
	})

	t.Run("import without importer", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/import/ofx", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

type fakeImporter struct {
	result *engine.IncomingResult
	body   string
}

func (f *fakeImporter) Import(_ context.Context, _ string, r io.Reader) (*engine.IncomingResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	return f.result, nil
}

func TestImportReportsAutoClassified(t *testing.T) {
	ts := setupServer(t)
	importer := &fakeImporter{result: &engine.IncomingResult{
		Received:       3,
		Saved:          3,
		AutoClassified: 2,
		Auto: []engine.AutoClassification{
			{Vendor: "netflix", Category: "מנויים", Confidence: 95, TransactionIDs: []string{"a", "b"}},
		},
		Questions: []engine.Question{{Vendor: "wolt", TransactionIDs: []string{"c"}}},
	}}
	ts.srv.deps.Importer = importer

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "march.ofx")
	require.NoError(t, err)
	_, err = part.Write([]byte("OFXHEADER:100"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/ofx", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["reported"])
	assert.EqualValues(t, 2, body["auto_classified"])
	assert.Equal(t, true, body["asked"])
	assert.Equal(t, "OFXHEADER:100", importer.body)

	require.Len(t, ts.conv.reported, 1)
	assert.Equal(t, "netflix", ts.conv.reported[0].Vendor)
	require.Len(t, ts.conv.asked, 1)
	assert.Equal(t, "wolt", ts.conv.asked[0].Vendor)
}

func TestRulesAndSummary(t *testing.T) {
	ts := setupServer(t)
	ts.db.MustSavePattern(ts.user.ID, "netflix", "בריאות", 85)
	ts.db.MustAddTransactions(ts.user.ID,
		testutil.Confirmed("שופרסל דיל", "מזון", 300, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)),
		testutil.Confirmed("פז", "דלק", 200, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)),
		testutil.Confirmed("פז", "דלק", 150, time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)),
	)

	rec := ts.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["rules"], 1)

	rec = ts.do(t, http.MethodPut, "/api/rules/netflix", map[string]string{"category": "מנויים"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "בריאות", decode(t, rec)["previous_category"])

	rec = ts.do(t, http.MethodDelete, "/api/rules/netflix", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/rules/netflix", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "2024-03", body["month"])
	assert.InDelta(t, 500, body["total"], 0.001)

	rec = ts.do(t, http.MethodGet, "/api/insights?at=15/03/2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/recurring?at=2024-03-15", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBulk(t *testing.T) {
	ts := setupServer(t)
	day := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	ts.db.MustAddTransactions(ts.user.ID,
		testutil.Expense("PAZ 1", 200, day),
		testutil.Expense("PAZ 2", 180, day.AddDate(0, 0, 7)),
	)

	rec := ts.do(t, http.MethodGet, "/api/classify/bulk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["proposals"], 1)

	rec = ts.do(t, http.MethodPost, "/api/classify/bulk", map[string]any{
		"groups": []map[string]string{{"vendor": "paz", "category": "דלק"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 2, decode(t, rec)["confirmed"], 0)

	rec = ts.do(t, http.MethodPost, "/api/classify/bulk", map[string]any{"groups": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	ts := setupServer(t)
	ts.db.MustAddTransactions(ts.user.ID,
		testutil.Confirmed("שופרסל", "מזון", 900, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
		testutil.Confirmed("שופרסל", "מזון", 120, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
	)

	rec := ts.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 300, body["avg_monthly_expenses"], 0.001)
	assert.InDelta(t, 120, body["current_month_expenses"], 0.001)
	assert.Equal(t, false, body["bank_linked"])

	rec = ts.do(t, http.MethodPut, "/api/profile", map[string]any{"monthly_budget": 8000, "name": "דנה"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user, err := ts.db.Storage.GetUser(context.Background(), ts.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "דנה", user.Name)
	assert.InDelta(t, 8000, user.MonthlyBudget, 0)
	budgets, err := ts.db.Storage.ListBudgets(context.Background(), ts.user.ID)
	require.NoError(t, err)
	assert.Len(t, budgets, 1)

	rec = ts.do(t, http.MethodPut, "/api/profile", map[string]any{"phase": "monitoring"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecords(t *testing.T) {
	ts := setupServer(t)

	t.Run("loans", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/loans", map[string]any{
			"lender": "בנק הפועלים", "principal": 50000, "balance": 32000, "monthly_payment": 1200, "interest_rate": 5.5,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		id, _ := decode(t, rec)["id"].(string)
		require.NotEmpty(t, id)

		rec = ts.do(t, http.MethodPut, "/api/loans/"+id, map[string]any{"lender": "בנק הפועלים", "balance": 30000})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodDelete, "/api/loans/"+id, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/loans", nil)
		assert.Empty(t, decode(t, rec)["loans"])
		rec = ts.do(t, http.MethodGet, "/api/loans?all=true", nil)
		assert.Len(t, decode(t, rec)["loans"], 1)
	})

	t.Run("income kind is checked", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/income", map[string]any{"name": "משכורת", "kind": "salary", "monthly_amount": 14000})
		assert.Equal(t, http.StatusCreated, rec.Code)
		rec = ts.do(t, http.MethodPost, "/api/income", map[string]any{"name": "x", "kind": "lottery"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("goals report progress", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/goals", map[string]any{
			"name": "קרן חירום", "target_amount": 20000, "current_amount": 5000, "deadline": "2025-01-01",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodGet, "/api/goals", nil)
		goals, _ := decode(t, rec)["goals"].([]any)
		require.Len(t, goals, 1)
		assert.InDelta(t, 25, goals[0].(map[string]any)["progress"], 0.001)

		rec = ts.do(t, http.MethodPost, "/api/goals", map[string]any{"name": "x", "target_amount": 0})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("consolidation status machine", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/consolidations", map[string]any{"loan_ids": []string{"a", "b"}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		id, _ := decode(t, rec)["id"].(string)

		rec = ts.do(t, http.MethodPost, "/api/consolidations/"+id+"/status", map[string]string{"status": "offer_sent"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = ts.do(t, http.MethodPost, "/api/consolidations/"+id+"/status", map[string]string{"status": "documents_received"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "documents_received", decode(t, rec)["status"])

		rec = ts.do(t, http.MethodPost, "/api/consolidations/"+id+"/status", map[string]string{"status": "bogus"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("alerts", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/alerts", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode(t, rec)["alerts"])
	})
}

func TestTaxAndPlaid(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPost, "/api/tax", map[string]any{"gross": 12000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "971.5", decode(t, rec)["tax"])

	rec = ts.do(t, http.MethodPost, "/api/tax", map[string]any{"gross": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/plaid/link-token", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

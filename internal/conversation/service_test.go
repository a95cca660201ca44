package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/composer"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/router"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/testutil"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

const testPhone = "972501234567"

type harness struct {
	db      *testutil.TestDB
	learner *learning.Engine
	outbox  *whatsapp.Outbox
	svc     *Service
	user    *model.User
}

func newHarness(t *testing.T, gateway whatsapp.Gateway) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	policy := config.DefaultPolicy()
	learner := learning.New(db.Storage, policy)
	r := router.New(learner, db.Storage, db.Storage, behavior.NewEngine(db.Storage, policy), policy)

	outbox := &whatsapp.Outbox{}
	if gateway == nil {
		gateway = outbox
	}
	return &harness{
		db:      db,
		learner: learner,
		outbox:  outbox,
		svc:     New(db.Storage, r, composer.NewTemplateComposer(), gateway, learner),
		user:    db.MustCreateUser(testPhone),
	}
}

func TestHandleInbound_CorrectionEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.db.MustSetPhase(h.user.ID, model.PhaseMonitoring)
	h.db.MustSavePattern(h.user.ID, "סופר פארם", "בריאות", 85)

	require.NoError(t, h.svc.HandleInbound(ctx, "whatsapp:+972501234567", "תקן סופר פארם למזון"))

	p, err := h.db.Storage.GetVendorPattern(ctx, h.user.ID, "סופר פארם")
	require.NoError(t, err)
	assert.Equal(t, "מזון", p.Category)
	assert.Equal(t, 50, p.Confidence)

	msgs := h.outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, testPhone, msgs[0].To)
	assert.Contains(t, msgs[0].Body, "סופר פארם")
	assert.Contains(t, msgs[0].Body, "מזון")
	assert.Contains(t, msgs[0].Body, "בריאות")

	sug, err := h.learner.Suggest(ctx, h.user.ID, "סופר פארם")
	require.NoError(t, err)
	assert.Equal(t, learning.TierAsk, sug.Tier)
}

func TestHandleInbound_UnknownPhone(t *testing.T) {
	h := newHarness(t, nil)

	err := h.svc.HandleInbound(context.Background(), "972509999999", "שלום")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, h.outbox.Messages())
}

func TestHandleInbound_InvalidPhone(t *testing.T) {
	h := newHarness(t, nil)

	err := h.svc.HandleInbound(context.Background(), "abc", "שלום")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestHandleInbound_GatewayFailureKeepsState(t *testing.T) {
	failing := whatsapp.GatewayFunc(func(context.Context, string, string) error {
		return errors.New("connection reset")
	})
	h := newHarness(t, failing)
	ctx := context.Background()

	err := h.svc.HandleInbound(ctx, testPhone, "אני רוצה להפסיק להיות במינוס")
	assert.ErrorIs(t, err, common.ErrUpstream)

	u, err := h.db.Storage.GetUser(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDataCollection, u.Phase)
	assert.Equal(t, "אני רוצה להפסיק להיות במינוס", u.Reflection)
}

func TestAskQuestions_AnswerThenNext(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.db.MustSetPhase(h.user.ID, model.PhaseMonitoring)
	h.db.MustSavePattern(h.user.ID, "סופר פארם", "בריאות", 80)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	h.db.MustAddTransactions(h.user.ID,
		testutil.Expense("SUPER PHARM 123", 40, day),
		testutil.Expense("SUPER PHARM 123", 60, day.AddDate(0, 0, 3)),
		testutil.Expense("פז", 250, day.AddDate(0, 0, 5)),
	)

	q, err := h.svc.nextQuestion(ctx, h.user.ID)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "סופר פארם", q.Vendor)
	assert.Equal(t, "בריאות", q.SuggestedCategory)

	asked, err := h.svc.AskQuestions(ctx, h.user.ID, []engine.Question{*q})
	require.NoError(t, err)
	assert.True(t, asked)

	// A second question waits while one is pending.
	asked, err = h.svc.AskQuestions(ctx, h.user.ID, []engine.Question{{Vendor: "פז"}})
	require.NoError(t, err)
	assert.False(t, asked)

	require.NoError(t, h.svc.HandleInbound(ctx, testPhone, "כן"))

	confirmed, err := h.db.Storage.GetTransactions(ctx, h.user.ID, service.TransactionFilter{Status: model.StatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)

	state, err := h.db.Storage.GetConversationState(ctx, h.user.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Pending)
	assert.Equal(t, "פז", state.Pending.Vendor)
	assert.Equal(t, model.PendingCategoryChoice, state.Pending.Kind)

	msgs := h.outbox.Messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Body, "סופר פארם")
	assert.Contains(t, msgs[1].Body, "בריאות")
	assert.Contains(t, msgs[2].Body, "פז")
}

func TestNotify(t *testing.T) {
	h := newHarness(t, nil)

	err := h.svc.Notify(context.Background(), h.user.ID, model.Action{Kind: model.ActionHelp})
	require.NoError(t, err)
	require.Len(t, h.outbox.Messages(), 1)

	err = h.svc.Notify(context.Background(), "missing", model.Action{Kind: model.ActionHelp})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReportAutoClassified(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sent, err := h.svc.ReportAutoClassified(ctx, h.user.ID, []engine.AutoClassification{
		{Vendor: "netflix", Category: "מנויים", Confidence: 95, TransactionIDs: []string{"t1"}},
		{Vendor: "פז", Category: "דלק", Confidence: 92, TransactionIDs: []string{"t2", "t3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	msgs := h.outbox.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "netflix")
	assert.Contains(t, msgs[0].Body, "מנויים")
	assert.Contains(t, msgs[1].Body, "פז")
	assert.Contains(t, msgs[1].Body, "2")

	sent, err = h.svc.ReportAutoClassified(ctx, h.user.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, sent)

	_, err = h.svc.ReportAutoClassified(ctx, "missing", []engine.AutoClassification{{Vendor: "netflix"}})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestImportedAutoTierReachesTheUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.db.MustSavePattern(h.user.ID, "netflix", "מנויים", 95)

	classifier := engine.NewClassifier(h.db.Storage, h.learner, config.DefaultPolicy())
	res, err := classifier.ClassifyIncoming(ctx, h.user.ID, []model.Transaction{{
		Vendor: "NETFLIX.COM",
		Amount: -49.90,
		Date:   time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC),
		Source: model.SourceOFX,
	}})
	require.NoError(t, err)
	require.Len(t, res.Auto, 1)

	_, err = h.svc.ReportAutoClassified(ctx, h.user.ID, res.Auto)
	require.NoError(t, err)
	msgs := h.outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "netflix")
	assert.Contains(t, msgs[0].Body, "מנויים")
}

package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
)

type memPatterns struct {
	patterns map[string]model.VendorPattern
}

func (m *memPatterns) GetVendorPattern(_ context.Context, userID, vendor string) (*model.VendorPattern, error) {
	p, ok := m.patterns[userID+"|"+vendor]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (m *memPatterns) SaveVendorPattern(_ context.Context, p *model.VendorPattern) error {
	m.patterns[p.UserID+"|"+p.Vendor] = *p
	return nil
}

func (m *memPatterns) DeleteVendorPattern(_ context.Context, userID, vendor string) error {
	if _, ok := m.patterns[userID+"|"+vendor]; !ok {
		return common.ErrNotFound
	}
	delete(m.patterns, userID+"|"+vendor)
	return nil
}

func (m *memPatterns) ListVendorPatterns(_ context.Context, userID string) ([]model.VendorPattern, error) {
	var out []model.VendorPattern
	for _, p := range m.patterns {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTxns struct {
	status   map[string]model.TransactionStatus
	category map[string]string
	byVendor int
}

func (f *fakeTxns) SetTransactionStatus(_ context.Context, _ string, id string, status model.TransactionStatus, category string) error {
	cur, ok := f.status[id]
	if !ok {
		return common.ErrNotFound
	}
	if !cur.CanTransition(status) {
		return common.ErrInvalidTransition
	}
	f.status[id] = status
	f.category[id] = category
	return nil
}

func (f *fakeTxns) ConfirmVendorTransactions(context.Context, string, string, string) (int, error) {
	f.byVendor++
	return 3, nil
}

type fakeRecorder struct {
	reflection string
	budget     *model.Budget
	goal       *model.Goal
	err        error
}

func (f *fakeRecorder) SaveReflection(_ context.Context, _ string, text string) error {
	f.reflection = text
	return f.err
}

func (f *fakeRecorder) SaveBudget(_ context.Context, b *model.Budget) error {
	f.budget = b
	return f.err
}

func (f *fakeRecorder) CreateGoal(_ context.Context, g *model.Goal) error {
	f.goal = g
	return f.err
}

type fakeInsights struct {
	insights []behavior.Insight
}

func (f *fakeInsights) Analyze(context.Context, string, time.Time) ([]behavior.Insight, error) {
	return f.insights, nil
}

type fixture struct {
	router   *Router
	patterns *memPatterns
	txns     *fakeTxns
	recorder *fakeRecorder
}

func newFixture(t *testing.T, patterns ...model.VendorPattern) *fixture {
	t.Helper()
	mp := &memPatterns{patterns: make(map[string]model.VendorPattern)}
	for _, p := range patterns {
		p.UserID = "u1"
		mp.patterns["u1|"+p.Vendor] = p
	}
	txns := &fakeTxns{
		status:   map[string]model.TransactionStatus{"t1": model.StatusProposed, "t2": model.StatusProposed, "t3": model.StatusConfirmed},
		category: map[string]string{},
	}
	rec := &fakeRecorder{}
	insights := &fakeInsights{insights: []behavior.Insight{
		{Kind: behavior.KindRecurring, Description: "חיוב קבוע בnetflix"},
		{Kind: behavior.KindTrend, Trend: behavior.TrendFlat, Description: "יציב"},
	}}
	policy := config.DefaultPolicy()
	r := New(learning.New(mp, policy), txns, rec, insights, policy)
	return &fixture{router: r, patterns: mp, txns: txns, recorder: rec}
}

func (f *fixture) dispatch(t *testing.T, state State, text string) Result {
	t.Helper()
	res, err := f.router.Dispatch(context.Background(), state, Inbound{UserID: "u1", Text: text})
	require.NoError(t, err)
	return res
}

func monitoring() State {
	return State{Phase: model.PhaseMonitoring}
}

func TestCorrectCommand(t *testing.T) {
	f := newFixture(t, model.VendorPattern{Vendor: "סופר פארם", Category: "בריאות", Confidence: 85})

	res := f.dispatch(t, monitoring(), "תקן סופר פארם למזון")

	assert.Equal(t, model.ActionCorrectionConfirmed, res.Action.Kind)
	assert.Equal(t, "סופר פארם", res.Action.Vendor)
	assert.Equal(t, "מזון", res.Action.Category)
	assert.Equal(t, "בריאות", res.Action.PreviousCategory)
	assert.Equal(t, 50, res.Action.Confidence)

	p := f.patterns.patterns["u1|סופר פארם"]
	assert.Equal(t, "מזון", p.Category)
	assert.Equal(t, 50, p.Confidence)
}

func TestCorrectCommandVariants(t *testing.T) {
	t.Run("multi-word category and fuzzy vendor", func(t *testing.T) {
		f := newFixture(t, model.VendorPattern{Vendor: "רב קו", Category: "דלק", Confidence: 70})
		res := f.dispatch(t, monitoring(), "תקן רבקו לתחבורה ציבורית")
		assert.Equal(t, model.ActionCorrectionConfirmed, res.Action.Kind)
		assert.Equal(t, "רב קו", res.Action.Vendor)
		assert.Equal(t, "תחבורה ציבורית", res.Action.Category)
	})

	t.Run("separate lamed", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, monitoring(), "תקן wolt ל מסעדות")
		assert.Equal(t, model.ActionCorrectionConfirmed, res.Action.Kind)
		assert.Equal(t, "wolt", res.Action.Vendor)
		assert.Empty(t, res.Action.PreviousCategory)
	})

	t.Run("unknown category", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, monitoring(), "תקן wolt לפיצות")
		assert.Equal(t, model.ActionUnknownCategory, res.Action.Kind)
		assert.Equal(t, "פיצות", res.Action.Category)
		assert.NotEmpty(t, res.Action.Options)
		assert.Empty(t, f.patterns.patterns)
	})

	t.Run("no category at all", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, monitoring(), "תקן wolt")
		assert.Equal(t, model.ActionHelp, res.Action.Kind)
	})
}

func TestForgetCommand(t *testing.T) {
	f := newFixture(t, model.VendorPattern{Vendor: "netflix", Category: "מנויים", Confidence: 90})

	res := f.dispatch(t, monitoring(), "בטל כלל Netflix")
	assert.Equal(t, model.ActionRuleDeleted, res.Action.Kind)
	assert.Equal(t, "netflix", res.Action.Vendor)
	assert.Empty(t, f.patterns.patterns)

	res = f.dispatch(t, monitoring(), "בטל netflix")
	assert.Equal(t, model.ActionRuleNotFound, res.Action.Kind)
}

func TestCommandsLeaveOtherVendorsAlone(t *testing.T) {
	apple := model.VendorPattern{Vendor: "apple", Category: "מנויים", Confidence: 95}

	t.Run("correct creates a rule for the typed vendor", func(t *testing.T) {
		f := newFixture(t, apple)
		res := f.dispatch(t, monitoring(), "תקן pineapple למזון")
		assert.Equal(t, model.ActionCorrectionConfirmed, res.Action.Kind)
		assert.Equal(t, "pineapple", res.Action.Vendor)
		assert.Empty(t, res.Action.PreviousCategory)

		kept := f.patterns.patterns["u1|apple"]
		assert.Equal(t, "מנויים", kept.Category)
		assert.Equal(t, 95, kept.Confidence)
		assert.Equal(t, "מזון", f.patterns.patterns["u1|pineapple"].Category)
	})

	t.Run("forget reports a missing rule", func(t *testing.T) {
		f := newFixture(t, apple)
		res := f.dispatch(t, monitoring(), "בטל כלל pineapple")
		assert.Equal(t, model.ActionRuleNotFound, res.Action.Kind)
		assert.Equal(t, "pineapple", res.Action.Vendor)
		assert.Contains(t, f.patterns.patterns, "u1|apple")
	})
}

func TestListRulesAndHelp(t *testing.T) {
	f := newFixture(t,
		model.VendorPattern{Vendor: "netflix", Category: "מנויים", Confidence: 90},
		model.VendorPattern{Vendor: "wolt", Category: "מסעדות", Confidence: 60},
	)

	res := f.dispatch(t, monitoring(), "הראה כללים")
	assert.Equal(t, model.ActionRulesList, res.Action.Kind)
	assert.Len(t, res.Action.Rules, 2)

	res = f.dispatch(t, monitoring(), "  עזרה? ")
	assert.Equal(t, model.ActionHelp, res.Action.Kind)
}

func TestCommandsWinOverPendingAndPhase(t *testing.T) {
	f := newFixture(t)
	state := State{
		Phase:   model.PhaseBudget,
		Pending: &model.PendingAction{Kind: model.PendingCategoryConfirmation, Vendor: "wolt", SuggestedCategory: "מסעדות"},
		Retries: 1,
	}

	res := f.dispatch(t, state, "הראה כללים")
	assert.Equal(t, model.ActionRulesList, res.Action.Kind)
	assert.Equal(t, state, res.State, "commands leave the pending question alone")

	res = f.dispatch(t, state, "בטל")
	assert.Equal(t, model.ActionPendingCancelled, res.Action.Kind)
	assert.Nil(t, res.State.Pending)
	assert.Zero(t, res.State.Retries)
	assert.Equal(t, model.PhaseBudget, res.State.Phase)
}

func TestBareCancelWithoutPendingClarifies(t *testing.T) {
	f := newFixture(t)
	res := f.dispatch(t, monitoring(), "בטל")
	assert.Equal(t, model.ActionClarify, res.Action.Kind)
}

func TestPendingConfirmationAnswers(t *testing.T) {
	pending := func() State {
		return State{Phase: model.PhaseMonitoring, Pending: &model.PendingAction{
			Kind:              model.PendingCategoryConfirmation,
			Vendor:            "סופר פארם",
			SuggestedCategory: "בריאות",
			TransactionIDs:    []string{"t1", "t2", "t3"},
		}}
	}

	t.Run("yes confirms suggestion", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, pending(), "כן")
		assert.Equal(t, model.ActionCategoryConfirmed, res.Action.Kind)
		assert.Equal(t, "בריאות", res.Action.Category)
		assert.Equal(t, 2, res.Action.Count, "already confirmed rows are skipped")
		assert.Nil(t, res.State.Pending)
		assert.Equal(t, model.StatusConfirmed, f.txns.status["t1"])
		assert.Equal(t, "בריאות", f.txns.category["t2"])
		assert.Equal(t, 60, f.patterns.patterns["u1|סופר פארם"].Confidence)
	})

	t.Run("number one confirms", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, pending(), "1")
		assert.Equal(t, model.ActionCategoryConfirmed, res.Action.Kind)
	})

	t.Run("no switches to choice", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, pending(), "לא")
		assert.Equal(t, model.ActionAskCategory, res.Action.Kind)
		require.NotNil(t, res.State.Pending)
		assert.Equal(t, model.PendingCategoryChoice, res.State.Pending.Kind)
		assert.NotEmpty(t, res.State.Pending.Options)

		res = f.dispatch(t, res.State, "1")
		assert.Equal(t, model.ActionCategoryConfirmed, res.Action.Kind)
		assert.Equal(t, "מזון", res.Action.Category)
	})

	t.Run("category name confirms that category", func(t *testing.T) {
		f := newFixture(t)
		res := f.dispatch(t, pending(), "טיפוח")
		assert.Equal(t, model.ActionCategoryConfirmed, res.Action.Kind)
		assert.Equal(t, "טיפוח", res.Action.Category)
	})

	t.Run("no transaction ids confirms by vendor", func(t *testing.T) {
		f := newFixture(t)
		s := pending()
		s.Pending.TransactionIDs = nil
		res := f.dispatch(t, s, "כן")
		assert.Equal(t, 3, res.Action.Count)
		assert.Equal(t, 1, f.txns.byVendor)
	})
}

func TestPendingRetryBudget(t *testing.T) {
	f := newFixture(t)
	state := State{Phase: model.PhaseMonitoring, Pending: &model.PendingAction{
		Kind:              model.PendingCategoryConfirmation,
		Vendor:            "wolt",
		SuggestedCategory: "מסעדות",
	}}

	first := f.dispatch(t, state, "אולי")
	assert.Equal(t, model.ActionAskCategoryConfirmation, first.Action.Kind)
	assert.Equal(t, 1, first.State.Retries)
	require.NotNil(t, first.State.Pending)

	second := f.dispatch(t, first.State, "לא יודע מה זה")
	assert.Equal(t, model.ActionAskCategoryConfirmation, second.Action.Kind)
	assert.Equal(t, "wolt", second.Action.Vendor)
	assert.Equal(t, 2, second.State.Retries)
	require.NotNil(t, second.State.Pending)

	third := f.dispatch(t, second.State, "???")
	assert.Equal(t, model.ActionClarify, third.Action.Kind)
	assert.Nil(t, third.State.Pending)
	assert.Zero(t, third.State.Retries)

	// With the question gone, the phase handles the next message.
	fourth := f.dispatch(t, third.State, "מה שלומך")
	assert.Equal(t, model.ActionFreeForm, fourth.Action.Kind)
}

func TestChoiceOutOfRangeIsUnmatched(t *testing.T) {
	f := newFixture(t)
	state := State{Phase: model.PhaseMonitoring, Pending: &model.PendingAction{
		Kind:    model.PendingCategoryChoice,
		Vendor:  "wolt",
		Options: []string{"מסעדות", "מזון"},
	}}

	res := f.dispatch(t, state, "7")
	assert.Equal(t, model.ActionAskCategory, res.Action.Kind)
	assert.Equal(t, 1, res.State.Retries)

	res = f.dispatch(t, state, "2")
	assert.Equal(t, model.ActionCategoryConfirmed, res.Action.Kind)
	assert.Equal(t, "מזון", res.Action.Category)
}

func TestPhaseMachine(t *testing.T) {
	f := newFixture(t)
	state := State{Phase: model.PhaseReflection}

	res := f.dispatch(t, state, "אני מוציא יותר ממה שאני מרוויח")
	assert.Equal(t, model.ActionDataRecorded, res.Action.Kind)
	assert.Equal(t, model.PhaseDataCollection, res.State.Phase)
	assert.Equal(t, "אני מוציא יותר ממה שאני מרוויח", f.recorder.reflection)

	res = f.dispatch(t, res.State, "שלחתי קובץ")
	assert.Equal(t, model.ActionPhasePrompt, res.Action.Kind)
	assert.Equal(t, model.PhaseDataCollection, res.State.Phase)

	res = f.dispatch(t, res.State, "סיימתי")
	assert.Equal(t, model.ActionBehaviorSummary, res.Action.Kind)
	assert.Equal(t, model.PhaseBehavior, res.State.Phase)
	assert.Equal(t, []string{"חיוב קבוע בnetflix"}, res.Action.Lines)

	res = f.dispatch(t, res.State, "הבנתי")
	assert.Equal(t, model.ActionPhaseAdvanced, res.Action.Kind)
	assert.Equal(t, model.PhaseBudget, res.State.Phase)

	res = f.dispatch(t, res.State, "לא יודע")
	assert.Equal(t, model.ActionPhasePrompt, res.Action.Kind)
	assert.Equal(t, model.PhaseBudget, res.State.Phase)

	res = f.dispatch(t, res.State, "8,500 ש\"ח")
	assert.Equal(t, model.ActionDataRecorded, res.Action.Kind)
	assert.Equal(t, model.PhaseGoals, res.State.Phase)
	assert.InDelta(t, 8500.0, f.recorder.budget.Amount, 0.001)

	res = f.dispatch(t, res.State, "חופשה באילת 6000")
	assert.Equal(t, model.ActionDataRecorded, res.Action.Kind)
	assert.Equal(t, model.PhaseMonitoring, res.State.Phase)
	require.NotNil(t, f.recorder.goal)
	assert.Equal(t, "חופשה באילת", f.recorder.goal.Name)
	assert.InDelta(t, 6000.0, f.recorder.goal.TargetAmount, 0.001)

	res = f.dispatch(t, res.State, "כמה הוצאתי על אוכל?")
	assert.Equal(t, model.ActionFreeForm, res.Action.Kind)
	assert.Equal(t, model.PhaseMonitoring, res.State.Phase)
}

func TestUnknownPhaseStartsAtReflection(t *testing.T) {
	f := newFixture(t)
	res := f.dispatch(t, State{Phase: "bogus"}, "שלום")
	assert.Equal(t, model.PhaseDataCollection, res.State.Phase)
}

func TestEmptyMessageClarifies(t *testing.T) {
	f := newFixture(t)
	res := f.dispatch(t, State{Phase: model.PhaseReflection}, "   ")
	assert.Equal(t, model.ActionClarify, res.Action.Kind)
	assert.Equal(t, model.PhaseReflection, res.State.Phase)
}

func TestSideEffectFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("db down")
	_, err := f.router.Dispatch(context.Background(), State{Phase: model.PhaseReflection}, Inbound{UserID: "u1", Text: "שלום"})
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	res, ok := Ask(State{Phase: model.PhaseMonitoring}, "סופר פארם", "בריאות", []string{"t1"})
	require.True(t, ok)
	assert.Equal(t, model.ActionAskCategoryConfirmation, res.Action.Kind)
	assert.Equal(t, model.PendingCategoryConfirmation, res.State.Pending.Kind)

	res, ok = Ask(State{Phase: model.PhaseMonitoring}, "חנות", "", nil)
	require.True(t, ok)
	assert.Equal(t, model.ActionAskCategory, res.Action.Kind)
	assert.NotEmpty(t, res.State.Pending.Options)

	_, ok = Ask(res.State, "wolt", "", nil)
	assert.False(t, ok)
}

package router

import (
	"context"
	"errors"
	"strings"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/catalog"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

type commandKind string

const (
	cmdCorrect       commandKind = "correct"
	cmdForget        commandKind = "forget"
	cmdCancelPending commandKind = "cancel_pending"
	cmdListRules     commandKind = "list_rules"
	cmdHelp          commandKind = "help"
	cmdInsights      commandKind = "insights"
)

// Command keywords.
const (
	kwCorrect   = "תקן"
	kwCancel    = "בטל"
	kwRule      = "כלל"
	kwListRules = "הראה כללים"
	kwHelp      = "עזרה"
)

var exactCommands = map[string]commandKind{
	kwListRules: cmdListRules,
	"כללים":     cmdListRules,
	"rules":     cmdListRules,
	kwHelp:      cmdHelp,
	"help":      cmdHelp,
	"תפריט":     cmdHelp,
	"תובנות":    cmdInsights,
	"סיכום":     cmdInsights,
}

// maxVendorDistance bounds fuzzy matching of vendor names typed in commands.
const maxVendorDistance = 2

type command struct {
	kind commandKind
	args string
}

func parseCommand(text string) (command, bool) {
	if kind, ok := exactCommands[strings.ToLower(text)]; ok {
		return command{kind: kind}, true
	}

	if text == kwCancel {
		return command{kind: cmdCancelPending}, true
	}
	if rest, ok := cutWord(text, kwCancel); ok {
		if r, ok := cutWord(rest, kwRule); ok {
			rest = r
		}
		if rest != "" {
			return command{kind: cmdForget, args: rest}, true
		}
	}

	if rest, ok := cutWord(text, kwCorrect); ok && rest != "" {
		return command{kind: cmdCorrect, args: rest}, true
	}
	return command{}, false
}

// cutWord strips a leading keyword that stands as a whole word.
func cutWord(text, word string) (string, bool) {
	if text == word {
		return "", true
	}
	if strings.HasPrefix(text, word+" ") {
		return strings.TrimSpace(text[len(word)+1:]), true
	}
	return "", false
}

func (r *Router) runCommand(ctx context.Context, state State, userID string, cmd command) (Result, error) {
	switch cmd.kind {
	case cmdHelp:
		return Result{Action: model.Action{Kind: model.ActionHelp, Phase: state.Phase}, State: state}, nil

	case cmdListRules:
		rules, err := r.learner.List(ctx, userID)
		if err != nil {
			return Result{State: state}, err
		}
		return Result{Action: model.Action{Kind: model.ActionRulesList, Rules: rules, Count: len(rules)}, State: state}, nil

	case cmdCancelPending:
		if state.Pending == nil {
			return clarify(state), nil
		}
		a := model.Action{Kind: model.ActionPendingCancelled, Vendor: state.Pending.Vendor}
		state.Pending = nil
		state.Retries = 0
		return Result{Action: a, State: state}, nil

	case cmdForget:
		return r.forget(ctx, state, userID, cmd.args)

	case cmdCorrect:
		return r.correct(ctx, state, userID, cmd.args)

	case cmdInsights:
		return r.summary(ctx, state, userID, state.Phase)
	}
	return clarify(state), nil
}

func (r *Router) forget(ctx context.Context, state State, userID, raw string) (Result, error) {
	v, known, err := r.resolveVendor(ctx, userID, raw)
	if err != nil {
		return Result{State: state}, err
	}
	notFound := Result{Action: model.Action{Kind: model.ActionRuleNotFound, Vendor: v}, State: state}
	if !known {
		return notFound, nil
	}

	if err := r.learner.Forget(ctx, userID, v); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return notFound, nil
		}
		return Result{State: state}, err
	}
	return Result{Action: model.Action{Kind: model.ActionRuleDeleted, Vendor: v}, State: state}, nil
}

func (r *Router) correct(ctx context.Context, state State, userID, args string) (Result, error) {
	rawVendor, category, candidate := splitCorrection(args)
	if category == "" {
		if candidate == "" {
			return Result{Action: model.Action{Kind: model.ActionHelp, Phase: state.Phase}, State: state}, nil
		}
		return Result{Action: model.Action{
			Kind:     model.ActionUnknownCategory,
			Vendor:   vendor.Normalize(rawVendor),
			Category: candidate,
			Options:  catalog.Names(),
		}, State: state}, nil
	}

	v, _, err := r.resolveVendor(ctx, userID, rawVendor)
	if err != nil {
		return Result{State: state}, err
	}

	p, previous, err := r.learner.Correct(ctx, userID, v, category)
	if err != nil {
		return Result{State: state}, err
	}

	r.logger.Info("Correction applied", "user_id", userID, "vendor", p.Vendor, "category", p.Category)
	return Result{Action: model.Action{
		Kind:             model.ActionCorrectionConfirmed,
		Vendor:           p.Vendor,
		Category:         p.Category,
		PreviousCategory: previous,
		Confidence:       p.Confidence,
	}, State: state}, nil
}

// splitCorrection splits "<vendor> ל<category>" at the last word starting
// with ל whose remainder is a catalog category. When no split names a known
// category, candidate holds the rightmost attempted category.
func splitCorrection(args string) (rawVendor, category, candidate string) {
	words := strings.Fields(args)
	for k := len(words) - 1; k >= 1; k-- {
		var cat string
		switch {
		case words[k] == "ל" && k+1 < len(words):
			cat = strings.Join(words[k+1:], " ")
		case strings.HasPrefix(words[k], "ל") && len(words[k]) > len("ל"):
			cat = strings.TrimPrefix(strings.Join(words[k:], " "), "ל")
		default:
			continue
		}
		if candidate == "" {
			candidate = cat
			rawVendor = strings.Join(words[:k], " ")
		}
		if catalog.Exists(cat) {
			return strings.Join(words[:k], " "), cat, cat
		}
	}
	return rawVendor, "", candidate
}

// resolveVendor maps a typed vendor onto one of the user's rules when it is
// close enough, and otherwise returns its normalized form.
func (r *Router) resolveVendor(ctx context.Context, userID, raw string) (string, bool, error) {
	rules, err := r.learner.List(ctx, userID)
	if err != nil {
		return "", false, err
	}
	names := make([]string, len(rules))
	for i, p := range rules {
		names[i] = p.Vendor
	}
	if v, ok := vendor.Closest(raw, names, maxVendorDistance); ok {
		return v, true, nil
	}
	return vendor.Normalize(raw), false, nil
}

func (r *Router) summary(ctx context.Context, state State, userID string, phase model.Phase) (Result, error) {
	insights, err := r.insights.Analyze(ctx, userID, r.now())
	if err != nil {
		return Result{State: state}, err
	}
	return Result{Action: model.Action{
		Kind:  model.ActionBehaviorSummary,
		Phase: phase,
		Lines: summaryLines(insights),
		Count: len(insights),
	}, State: state}, nil
}

// summaryLines keeps the insights worth telling: flat trends are dropped.
func summaryLines(insights []behavior.Insight) []string {
	lines := make([]string, 0, len(insights))
	for _, in := range insights {
		if in.Kind == behavior.KindTrend && in.Trend == behavior.TrendFlat {
			continue
		}
		lines = append(lines, in.Description)
	}
	return lines
}

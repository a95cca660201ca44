package router

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Idosegev23/finhealer/internal/model"
)

var doneWords = map[string]bool{"סיימתי": true, "סיום": true, "done": true, "זהו": true, "המשך": true}

// amountPattern finds the first number in a message, allowing thousands
// separators and decimals: "5,000", "4500.50 ש\"ח".
var amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// handlePhase runs when there is no command and no pending question.
func (r *Router) handlePhase(ctx context.Context, state State, userID, text string) (Result, error) {
	if text == "" {
		return clarify(state), nil
	}

	switch state.Phase {
	case model.PhaseReflection:
		if err := r.recorder.SaveReflection(ctx, userID, text); err != nil {
			return Result{State: state}, err
		}
		state.Phase = state.Phase.Next()
		return Result{Action: model.Action{Kind: model.ActionDataRecorded, Phase: state.Phase, Text: text}, State: state}, nil

	case model.PhaseDataCollection:
		if !doneWords[strings.ToLower(text)] {
			return Result{Action: model.Action{Kind: model.ActionPhasePrompt, Phase: state.Phase}, State: state}, nil
		}
		state.Phase = state.Phase.Next()
		return r.summary(ctx, state, userID, state.Phase)

	case model.PhaseBehavior:
		state.Phase = state.Phase.Next()
		return Result{Action: model.Action{Kind: model.ActionPhaseAdvanced, Phase: state.Phase}, State: state}, nil

	case model.PhaseBudget:
		amount, ok := parseAmount(text)
		if !ok || amount <= 0 {
			return Result{Action: model.Action{Kind: model.ActionPhasePrompt, Phase: state.Phase}, State: state}, nil
		}
		if err := r.recorder.SaveBudget(ctx, &model.Budget{UserID: userID, Amount: amount, UpdatedAt: r.now()}); err != nil {
			return Result{State: state}, err
		}
		state.Phase = state.Phase.Next()
		return Result{Action: model.Action{Kind: model.ActionDataRecorded, Phase: state.Phase, Amount: amount}, State: state}, nil

	case model.PhaseGoals:
		name, amount := parseGoal(text)
		if name == "" {
			return Result{Action: model.Action{Kind: model.ActionPhasePrompt, Phase: state.Phase}, State: state}, nil
		}
		goal := &model.Goal{UserID: userID, Name: name, TargetAmount: amount, Active: true, CreatedAt: r.now()}
		if err := r.recorder.CreateGoal(ctx, goal); err != nil {
			return Result{State: state}, err
		}
		state.Phase = state.Phase.Next()
		return Result{Action: model.Action{Kind: model.ActionDataRecorded, Phase: state.Phase, Text: name, Amount: amount}, State: state}, nil

	case model.PhaseMonitoring:
		return Result{Action: model.Action{Kind: model.ActionFreeForm, Phase: state.Phase, Text: text}, State: state}, nil
	}

	return clarify(state), nil
}

func parseAmount(text string) (float64, bool) {
	m := amountPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseGoal reads "<name> <amount>"; the amount is optional.
func parseGoal(text string) (string, float64) {
	amount, _ := parseAmount(text)
	name := amountPattern.ReplaceAllString(text, "")
	name = strings.NewReplacer("₪", "", "ש\"ח", "", "שח", "").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return name, amount
}

package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Idosegev23/finhealer/internal/model"
)

var phaseNames = map[model.Phase]string{
	model.PhaseReflection:     "היכרות",
	model.PhaseDataCollection: "איסוף נתונים",
	model.PhaseBehavior:       "ניתוח התנהגות",
	model.PhaseBudget:         "תקציב",
	model.PhaseGoals:          "יעדים",
	model.PhaseMonitoring:     "מעקב",
}

var phasePrompts = map[model.Phase]string{
	model.PhaseReflection:     "ספר/י לי בקצרה: מה הכי מטריד אותך בכסף כרגע?",
	model.PhaseDataCollection: "שלח/י לי דוחות בנק או אשראי. כשתסיים/י כתוב/י \"סיימתי\".",
	model.PhaseBehavior:       "עברנו על ההוצאות שלך. כתוב/י \"המשך\" כדי לבנות תקציב.",
	model.PhaseBudget:         "כמה תרצה/י להוציא בחודש? כתוב/י סכום, למשל 8000.",
	model.PhaseGoals:          "על מה תרצה/י לחסוך? למשל: \"רכב 40000\".",
	model.PhaseMonitoring:     "אני כאן. כתוב/י \"עזרה\" לרשימת הפקודות.",
}

const helpText = `פקודות זמינות:
תקן [עסק] ל[קטגוריה] - תיקון סיווג
בטל כלל [עסק] - מחיקת כלל
הראה כללים - רשימת הכללים שלמדתי
תובנות - סיכום התנהגות ההוצאות
בטל - ביטול השאלה הפתוחה`

// TemplateComposer renders every action kind from a fixed Hebrew template.
// Output depends only on the action.
type TemplateComposer struct{}

// NewTemplateComposer creates a TemplateComposer.
func NewTemplateComposer() TemplateComposer {
	return TemplateComposer{}
}

// Compose implements Composer.
func (TemplateComposer) Compose(_ context.Context, a model.Action) string {
	return render(a)
}

func render(a model.Action) string {
	switch a.Kind {
	case model.ActionAutoClassified:
		if a.Count <= 1 {
			return fmt.Sprintf("סיווגתי עסקה של %s כ%s.", a.Vendor, a.Category)
		}
		return fmt.Sprintf("סיווגתי %d עסקאות של %s כ%s.", a.Count, a.Vendor, a.Category)

	case model.ActionAskCategoryConfirmation:
		return fmt.Sprintf("%s%s נראה כמו %s. נכון?\n%s",
			vendorLead(a), a.Vendor, a.SuggestedCategory, numbered(a.Options))

	case model.ActionAskCategory:
		return fmt.Sprintf("%sלאיזו קטגוריה שייך %s?\n%s", vendorLead(a), a.Vendor, numbered(a.Options))

	case model.ActionCategoryConfirmed:
		msg := fmt.Sprintf("מעולה, %s נשמר כ%s.", a.Vendor, a.Category)
		if a.Count > 1 {
			msg += fmt.Sprintf(" עדכנתי %d עסקאות.", a.Count)
		}
		return msg

	case model.ActionCorrectionConfirmed:
		if a.PreviousCategory != "" && a.PreviousCategory != a.Category {
			return fmt.Sprintf("תוקן: %s עבר מ%s ל%s. מעכשיו אסווג אותו כ%s.",
				a.Vendor, a.PreviousCategory, a.Category, a.Category)
		}
		return fmt.Sprintf("תוקן: מעכשיו אסווג את %s כ%s.", a.Vendor, a.Category)

	case model.ActionUnknownCategory:
		return fmt.Sprintf("לא מכיר את הקטגוריה \"%s\". אפשר לבחור מתוך:\n%s", a.Category, numbered(a.Options))

	case model.ActionRuleDeleted:
		return fmt.Sprintf("מחקתי את הכלל עבור %s.", a.Vendor)

	case model.ActionRuleNotFound:
		return fmt.Sprintf("לא מצאתי כלל עבור %s.", a.Vendor)

	case model.ActionRulesList:
		if len(a.Rules) == 0 {
			return "עוד לא למדתי אף כלל."
		}
		lines := make([]string, 0, len(a.Rules)+1)
		lines = append(lines, "הכללים שלמדתי:")
		for _, r := range a.Rules {
			lines = append(lines, fmt.Sprintf("• %s → %s (%d%%)", r.Vendor, r.Category, r.Confidence))
		}
		return strings.Join(lines, "\n")

	case model.ActionHelp:
		return helpText

	case model.ActionClarify:
		return "לא הבנתי. " + phasePrompts[phaseOrDefault(a.Phase)]

	case model.ActionPendingCancelled:
		return fmt.Sprintf("בסדר, דילגתי על %s.", a.Vendor)

	case model.ActionPhasePrompt:
		return phasePrompts[phaseOrDefault(a.Phase)]

	case model.ActionPhaseAdvanced:
		return fmt.Sprintf("עוברים לשלב %s. %s", phaseNames[phaseOrDefault(a.Phase)], phasePrompts[phaseOrDefault(a.Phase)])

	case model.ActionDataRecorded:
		return recorded(a) + " " + phasePrompts[phaseOrDefault(a.Phase)]

	case model.ActionBehaviorSummary:
		if len(a.Lines) == 0 {
			return "עוד אין מספיק נתונים לתובנות. " + phasePrompts[phaseOrDefault(a.Phase)]
		}
		return "מה גיליתי על ההוצאות שלך:\n" + bullets(a.Lines) + "\n" + phasePrompts[phaseOrDefault(a.Phase)]

	case model.ActionFreeForm:
		return phasePrompts[model.PhaseMonitoring]

	case model.ActionAlert:
		if len(a.Lines) > 0 {
			return "שים/י לב:\n" + bullets(a.Lines)
		}
		return fmt.Sprintf("שים/י לב: הוצאה חריגה ב%s, %s החודש.", a.Category, formatAmount(a.Amount))

	case model.ActionMilestone:
		return fmt.Sprintf("כל הכבוד! הגעת ל-%d%% מהיעד \"%s\".", a.Count, a.Text)
	}

	return phasePrompts[model.PhaseMonitoring]
}

func recorded(a model.Action) string {
	switch {
	case a.Text != "" && a.Amount > 0:
		return fmt.Sprintf("רשמתי את היעד \"%s\" על סך %s.", a.Text, formatAmount(a.Amount))
	case a.Amount > 0:
		return fmt.Sprintf("רשמתי תקציב חודשי של %s.", formatAmount(a.Amount))
	case a.Text != "":
		return "תודה, רשמתי."
	}
	return "רשמתי."
}

func vendorLead(a model.Action) string {
	if a.Count > 1 {
		return fmt.Sprintf("מצאתי %d עסקאות. ", a.Count)
	}
	return ""
}

func bullets(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "• " + l
	}
	return strings.Join(out, "\n")
}

func phaseOrDefault(p model.Phase) model.Phase {
	if p.Valid() {
		return p
	}
	return model.PhaseMonitoring
}

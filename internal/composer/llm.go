package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Idosegev23/finhealer/internal/llm"
	"github.com/Idosegev23/finhealer/internal/model"
)

const systemPrompt = `You write short WhatsApp messages in Hebrew for a personal finance assistant.
Rewrite the draft you are given so it sounds warm and natural.
Copy every fact listed exactly as written: names, categories, amounts and numbers.
Keep numbered options verbatim, one per line, in the same order.
Do not add facts, advice, numbers or new questions. Reply with the message only.`

// maxMessageLen bounds generated text; longer output is treated as a failure.
const maxMessageLen = 1200

// templateOnly kinds carry lists the model tends to reorder or drop.
var templateOnly = map[model.ActionKind]bool{
	model.ActionRulesList:       true,
	model.ActionHelp:            true,
	model.ActionBehaviorSummary: true,
}

// LLMComposer phrases actions with a language model and falls back to the
// template whenever generation fails or drops a fact.
type LLMComposer struct {
	client   llm.Client
	fallback TemplateComposer
	logger   *slog.Logger
}

// NewLLMComposer creates an LLMComposer.
func NewLLMComposer(client llm.Client) *LLMComposer {
	return &LLMComposer{
		client:   client,
		fallback: NewTemplateComposer(),
		logger:   slog.Default().With("component", "composer"),
	}
}

// Compose implements Composer.
func (c *LLMComposer) Compose(ctx context.Context, a model.Action) string {
	draft := c.fallback.Compose(ctx, a)
	if templateOnly[a.Kind] {
		return draft
	}

	facts := requiredFacts(a)
	resp, err := c.client.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: buildPrompt(a, facts, draft),
	})
	if err != nil {
		c.logger.Warn("phrasing failed, using template", "kind", a.Kind, "error", err)
		return draft
	}

	text := strings.TrimSpace(resp.Text)
	if missing := missingFact(text, facts); missing != "" || text == "" || len([]rune(text)) > maxMessageLen {
		c.logger.Warn("generated message rejected, using template",
			"kind", a.Kind, "missing", missing, "length", len([]rune(text)))
		return draft
	}
	return text
}

func buildPrompt(a model.Action, facts []string, draft string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message kind: %s\n", a.Kind)
	if len(facts) > 0 {
		b.WriteString("Facts that must appear verbatim:\n")
		for _, f := range facts {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	if a.Kind == model.ActionFreeForm && a.Text != "" {
		fmt.Fprintf(&b, "The user wrote: %q\n", a.Text)
	}
	b.WriteString("Draft:\n")
	b.WriteString(draft)
	return b.String()
}

// requiredFacts lists the strings a generated message must contain.
func requiredFacts(a model.Action) []string {
	var facts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			facts = append(facts, s)
		}
	}

	add(a.Vendor)
	add(a.Category)
	add(a.SuggestedCategory)
	add(a.PreviousCategory)
	if a.Amount != 0 {
		add(formatAmount(a.Amount))
	}
	if a.Count > 1 || a.Kind == model.ActionMilestone {
		add(strconv.Itoa(a.Count))
	}
	switch {
	case a.Kind == model.ActionMilestone:
		add(a.Text)
	case a.Kind == model.ActionDataRecorded && a.Phase == model.PhaseMonitoring:
		// goal name; reflection answers are not echoed back
		add(a.Text)
	}
	for i, o := range a.Options {
		add(strconv.Itoa(i+1) + ". " + o)
	}
	for _, l := range a.Lines {
		add(l)
	}
	return facts
}

func missingFact(text string, facts []string) string {
	for _, f := range facts {
		if !strings.Contains(text, f) {
			return f
		}
	}
	return ""
}

// Package composer turns router actions into outgoing message text. The
// action decides what is said; a composer only decides how it is phrased.
package composer

import (
	"context"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Idosegev23/finhealer/internal/llm"
	"github.com/Idosegev23/finhealer/internal/model"
)

// Composer renders an action. Compose never fails; implementations degrade
// to a static template.
type Composer interface {
	Compose(ctx context.Context, action model.Action) string
}

// Select returns an LLM-backed composer when client is non-nil and the
// template composer otherwise.
func Select(client llm.Client) Composer {
	if client == nil {
		return NewTemplateComposer()
	}
	return NewLLMComposer(client)
}

var printer = message.NewPrinter(language.Hebrew)

// formatAmount renders a shekel amount the same way in templates and in the
// facts handed to the LLM, so the fact check can match it verbatim.
func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("₪%.0f", v)
	}
	return printer.Sprintf("₪%.2f", v)
}

// numbered renders options as "1. x" lines.
func numbered(options []string) string {
	var b strings.Builder
	for i, o := range options {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(o)
	}
	return b.String()
}

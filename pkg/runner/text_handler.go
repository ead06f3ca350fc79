package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/muesli/termenv"
)

// TextHandler implements the interactive prompt.
type TextHandler struct {
	lines  *lineReader
	Writer io.Writer
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextHandler{lines: newLineReader(r), Writer: w}
}

// Ask prints the invocation and reads s(uccess) or f(ailure) until one is given.
func (h *TextHandler) Ask(ctx context.Context, p Prompt) (Verdict, error) {
	out := termenv.NewOutput(h.Writer)

	header := fmt.Sprintf("%s runs %s", p.Role, p.Action)
	if p.CounterpartyRole != "" {
		header += fmt.Sprintf(" with %s", p.CounterpartyRole)
	}
	fmt.Fprintf(h.Writer, "\n[%s] %s\n", p.State, out.String(header).Bold())
	fmt.Fprintf(h.Writer, "  participant: %s\n", p.Participant)
	if p.Counterparty != "" {
		fmt.Fprintf(h.Writer, "  counterparty: %s\n", p.Counterparty)
	}
	fmt.Fprintf(h.Writer, "  protocol: %s\n", p.Protocol)
	if p.PresentationDefinition != "" {
		fmt.Fprintf(h.Writer, "  presentation definition: %s\n", p.PresentationDefinition)
	}
	if p.Deadline != nil {
		fmt.Fprintf(h.Writer, "  answer within: %s\n", time.Until(*p.Deadline).Round(time.Second))
	}

	for {
		fmt.Fprint(h.Writer, "Outcome? [s]uccess / [f]ailure > ")

		line, err := h.lines.ReadLine(ctx)
		if err != nil {
			return Verdict{}, err
		}
		clean, err := SanitizeInput(line)
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		if outcome, ok := parseOutcome(clean); ok {
			return Verdict{Outcome: outcome}, nil
		}
		fmt.Fprintf(h.Writer, "Please answer s or f.\n")
	}
}

func parseOutcome(s string) (domain.Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "success", "y", "yes", "ok":
		return domain.OutcomeSuccess, true
	case "f", "failure", "n", "no", "fail":
		return domain.OutcomeFailure, true
	}
	return "", false
}

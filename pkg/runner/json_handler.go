package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Event is one line written by the JSONHandler.
type Event struct {
	Type       string  `json:"type"`
	Invocation *Prompt `json:"invocation,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Each invocation is written as {"type":"invocation",...}; the answer is one line holding
// either a Verdict object or a bare outcome ("success", "failure").
type JSONHandler struct {
	lines *lineReader

	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{lines: newLineReader(r), encoder: json.NewEncoder(w)}
}

func (h *JSONHandler) emit(e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.encoder.Encode(e)
}

// Ask emits the invocation and reads the next verdict line.
func (h *JSONHandler) Ask(ctx context.Context, p Prompt) (Verdict, error) {
	if err := h.emit(Event{Type: "invocation", Invocation: &p}); err != nil {
		return Verdict{}, err
	}

	for {
		line, err := h.lines.ReadLine(ctx)
		if err != nil {
			return Verdict{}, err
		}
		v, err := decodeVerdict(line)
		if err == nil {
			return v, nil
		}
		if err := h.emit(Event{Type: "error", Error: err.Error()}); err != nil {
			return Verdict{}, err
		}
	}
}

func decodeVerdict(line string) (Verdict, error) {
	clean, err := SanitizeInput(strings.TrimSpace(line))
	if err != nil {
		return Verdict{}, err
	}

	if strings.HasPrefix(clean, "{") {
		var v Verdict
		if err := json.Unmarshal([]byte(clean), &v); err != nil {
			return Verdict{}, fmt.Errorf("invalid verdict: %w", err)
		}
		if _, ok := parseOutcome(string(v.Outcome)); !ok {
			return Verdict{}, fmt.Errorf("invalid outcome %q", v.Outcome)
		}
		v.Outcome, _ = parseOutcome(string(v.Outcome))
		return v, nil
	}

	// Try to unquote if it's a JSON string
	var s string
	if err := json.Unmarshal([]byte(clean), &s); err == nil {
		clean = s
	}
	outcome, ok := parseOutcome(clean)
	if !ok {
		return Verdict{}, fmt.Errorf("invalid outcome %q", clean)
	}
	return Verdict{Outcome: outcome}, nil
}

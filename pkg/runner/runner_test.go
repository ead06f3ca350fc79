package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/dsl"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/aretw0/charter/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issue = ports.Invocation{
	SessionID:         "s-1",
	State:             "issue",
	Action:            domain.Action{Name: "issue_card", Protocol: "https://didcomm.org/issue-credential/1.0/"},
	ActingParticipant: "did:example:library",
	ActingRole:        "lender",
	Counterparty:      "did:example:reader",
	CounterpartyRole:  "member",
	PresentationRef:   "pd-1",
}

type handlerFunc func(ctx context.Context, p runner.Prompt) (runner.Verdict, error)

func (f handlerFunc) Ask(ctx context.Context, p runner.Prompt) (runner.Verdict, error) {
	return f(ctx, p)
}

func TestTextHandler(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.Outcome
		wantOut []string
	}{
		{"Success", "s\n", domain.OutcomeSuccess, []string{"[issue] lender runs issue_card with member", "counterparty: did:example:reader", "presentation definition: pd-1"}},
		{"Failure", "no\n", domain.OutcomeFailure, nil},
		{"Reprompt", "maybe\nYES\n", domain.OutcomeSuccess, []string{"Please answer s or f."}},
		{"Control Chars", "\x1bs\n", domain.OutcomeSuccess, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := runner.New(runner.NewTextHandler(strings.NewReader(tt.input), &out))

			exec, err := r.Execute(context.Background(), issue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, exec.Outcome)
			for _, s := range tt.wantOut {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestTextHandler_EOF(t *testing.T) {
	r := runner.New(runner.NewTextHandler(strings.NewReader(""), io.Discard))
	_, err := r.Execute(context.Background(), issue)
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorContains(t, err, "operator did not answer 'issue_card'")
}

func TestRunner_Deadline(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	r := runner.New(runner.NewTextHandler(pr, &out))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Execute(ctx, issue)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, out.String(), "answer within:")
}

func TestRunner_UnknownOutcomeIsFailure(t *testing.T) {
	r := runner.New(handlerFunc(func(ctx context.Context, p runner.Prompt) (runner.Verdict, error) {
		assert.Equal(t, "issue_card", p.Action)
		assert.Equal(t, domain.Role("lender"), p.Role)
		return runner.Verdict{Outcome: "maybe", Artifacts: map[string]any{"k": "v"}}, nil
	}))

	exec, err := r.Execute(context.Background(), issue)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailure, exec.Outcome)
	assert.Equal(t, "v", exec.Artifacts["k"])
}

func TestJSONHandler(t *testing.T) {
	input := "bogus\n" + `{"outcome":"success","artifacts":{"credential":"abc"}}` + "\n" + `"failure"` + "\n"
	var out bytes.Buffer
	r := runner.New(runner.NewJSONHandler(strings.NewReader(input), &out))

	exec, err := r.Execute(context.Background(), issue)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, exec.Outcome)
	assert.Equal(t, "abc", exec.Artifacts["credential"])

	exec, err = r.Execute(context.Background(), issue)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailure, exec.Outcome)

	var events []runner.Event
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var e runner.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.Len(t, events, 3)
	assert.Equal(t, "invocation", events[0].Type)
	assert.Equal(t, "did:example:reader", events[0].Invocation.Counterparty)
	assert.Equal(t, "error", events[1].Type)
	assert.Contains(t, events[1].Error, `invalid outcome "bogus"`)
	assert.Equal(t, "invocation", events[2].Type)
}

func TestRunner_DrivesFlow(t *testing.T) {
	b := dsl.New("Library", "1.0")
	b.Participant("did:example:library", "City Library").
		Participant("did:example:reader", "Reader").
		Assign("lender", "did:example:library").
		Assign("member", "did:example:reader").
		Allow("member", "connect").
		Allow("lender", "issue_card")
	b.Action("connect", "https://didcomm.org/connections/1.0/")
	b.Action("issue_card", "https://didcomm.org/issue-credential/1.0/")
	b.State("join").Role("member").Initial().Do(dsl.With("connect", "lender")).Go("issue")
	b.State("issue").Role("lender").RequireConnection("member").Do(domain.Leaf("issue_card"))
	loader, err := b.Build()
	require.NoError(t, err)

	var out bytes.Buffer
	operator := runner.New(runner.NewTextHandler(strings.NewReader("s\nf\n"), &out))
	it, err := charter.New("", charter.WithLoader(loader), charter.WithExecutor(operator))
	require.NoError(t, err)

	ctx := context.Background()
	s, err := it.Start(ctx, map[domain.Role]string{"member": "did:example:reader", "lender": "did:example:library"})
	require.NoError(t, err)

	final, steps, err := it.Run(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StatusAborted, final.Status)
	assert.Contains(t, out.String(), "[join] member runs connect with lender")
	assert.Contains(t, out.String(), "[issue] lender runs issue_card")
}

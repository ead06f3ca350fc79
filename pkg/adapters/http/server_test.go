package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/internal/testutils"
	charterhttp "github.com/aretw0/charter/pkg/adapters/http"
	"github.com/aretw0/charter/pkg/adapters/memory"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/observability"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...charterhttp.Option) *httptest.Server {
	t.Helper()
	fw := testutils.LoadAruba(t)
	testutils.EnableHolder(fw)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	accept := ports.ExecutorFunc(func(ctx context.Context, inv ports.Invocation) (ports.Execution, error) {
		return ports.Execution{Outcome: domain.OutcomeSuccess}, nil
	})

	it, err := charter.New("",
		charter.WithLoader(memory.NewLoader(fw)),
		charter.WithExecutor(accept),
		charter.WithLifecycleHooks(metrics.Hooks()),
		charter.WithIDGenerator(func() string { return "s-1" }),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(charterhttp.NewHandler(it, append([]charterhttp.Option{charterhttp.WithMetrics(reg)}, opts...)...))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func startBody() charterhttp.StartRequest {
	return charterhttp.StartRequest{Bindings: map[domain.Role]string{
		"holder":        testutils.Traveler,
		"health_issuer": testutils.Hospital,
		"travel_issuer": testutils.Government,
	}}
}

func TestQueries(t *testing.T) {
	srv := newServer(t)

	t.Run("Health", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/health", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `"framework":"Aruba Health and Travel"`)
	})

	t.Run("Framework", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/framework", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Framework domain.Framework `json:"framework"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "0.2", out.Framework.Version)
	})

	t.Run("Roles", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/participants/"+testutils.Government+"/roles", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Roles []domain.Role `json:"roles"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, []domain.Role{"travel_issuer", "health_verifier", "travel_verifier"}, out.Roles)
	})

	t.Run("Authorize", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/authorize?participant="+testutils.Casino+"&action=issue_lab_order", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var d domain.Decision
		require.NoError(t, json.Unmarshal(body, &d))
		assert.False(t, d.Allowed)

		resp, body = do(t, http.MethodGet, srv.URL+"/authorize?participant="+testutils.Government+"&action=issue_trusted_traveler&role=travel_issuer", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &d))
		assert.True(t, d.Allowed)
		assert.Equal(t, domain.Role("travel_issuer"), d.As)

		resp, _ = do(t, http.MethodGet, srv.URL+"/authorize?action=connect", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Action", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/actions/verify_trusted_traveler?role=travel_verifier", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out charterhttp.ActionResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "hl:zm9YZpCjPLPJ4Epc:z3TSgXTuaHxY2tsArhUreJ4ixgw9NW7DYuQ9QTPQyLHt", out.PresentationDefinition)

		resp, _ = do(t, http.MethodGet, srv.URL+"/actions/verify_trusted_traveler?role=health_verifier", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		resp, _ = do(t, http.MethodGet, srv.URL+"/actions/teleport", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSessionLifecycle(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/sessions", startBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var session domain.Session
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, "s-1", session.ID)
	assert.Equal(t, "connect-to-health-issuer", session.CurrentState)

	resp, body = do(t, http.MethodGet, srv.URL+"/sessions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"sessions":["s-1"]}`, string(body))

	for i := 0; i < 2; i++ {
		resp, body = do(t, http.MethodPost, srv.URL+"/sessions/s-1/advance", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/sessions/s-1/advance", charterhttp.AdvanceRequest{Prefer: "issue_vaccine"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var step charterhttp.StepResponse
	require.NoError(t, json.Unmarshal(body, &step))
	assert.Equal(t, []string{"issue_vaccine"}, step.Step.Branch)
	assert.Equal(t, "connect-to-travel-issuer", step.Session.CurrentState)

	resp, body = do(t, http.MethodPost, srv.URL+"/sessions/s-1/abort", charterhttp.AbortRequest{Reason: "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, domain.StatusAborted, session.Status)

	resp, _ = do(t, http.MethodPost, srv.URL+"/sessions/s-1/advance", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `charter_sessions_ended_total{status="aborted"} 1`)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/sessions/s-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/sessions/s-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStart_Errors(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := startBody()
	delete(body.Bindings, "travel_issuer")
	resp, data := do(t, http.MethodPost, srv.URL+"/sessions", body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var out charterhttp.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out.Error, "no participant bound to role 'travel_issuer'")
	assert.NotEmpty(t, out.Decisions)
}

func TestSessionEvents(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", startBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s-1/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	readUntil := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}

	// The subscription is live once the ping arrives.
	readUntil("data: connected")

	resp, _ = do(t, http.MethodPost, srv.URL+"/sessions/s-1/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readUntil("event: step")
	data := readUntil("data: ")
	var step domain.StepResult
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &step))
	assert.Equal(t, "connect-to-health-issuer", step.From)
	assert.Equal(t, "health-verify-identity", step.To)
}

func TestStreamManager(t *testing.T) {
	sm := charterhttp.NewStreamManager(nil)
	ch, cancel := sm.Subscribe("s-1")
	assert.Equal(t, 1, sm.Subscribers("s-1"))

	sm.Broadcast("s-1", "hello")
	sm.Broadcast("s-2", "nobody listens")
	assert.Equal(t, "hello", <-ch)

	cancel()
	cancel()
	assert.Equal(t, 0, sm.Subscribers("s-1"))
	_, open := <-ch
	assert.False(t, open)
}

package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/internal/testutils"
	chartermcp "github.com/aretw0/charter/pkg/adapters/mcp"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *chartermcp.Server {
	t.Helper()
	it, err := charter.New(testutils.FixturePath(t, "aruba.json"))
	require.NoError(t, err)
	return chartermcp.NewServer(it, charter.Version, nil)
}

// call invokes a registered tool through the server's JSON-RPC entry point.
func call(t *testing.T, s *chartermcp.Server, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	rpc, ok := resp.(mcp.JSONRPCResponse)
	require.True(t, ok, "unexpected response %#v", resp)
	result, ok := rpc.Result.(mcp.CallToolResult)
	require.True(t, ok, "unexpected result %#v", rpc.Result)
	return &result
}

func text(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRolesOf(t *testing.T) {
	s := newServer(t)
	res := call(t, s, "roles_of", map[string]any{"participant": "Aruba Government"})
	require.False(t, res.IsError)

	var out chartermcp.RolesResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, []domain.Role{"travel_issuer", "health_verifier", "travel_verifier"}, out.Roles)

	res = call(t, s, "roles_of", map[string]any{})
	assert.True(t, res.IsError)
}

func TestAuthorize(t *testing.T) {
	s := newServer(t)

	res := call(t, s, "authorize", map[string]any{"participant": testutils.Casino, "action": "issue_lab_order"})
	require.False(t, res.IsError)
	var d domain.Decision
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &d))
	assert.False(t, d.Allowed)
	assert.NotEmpty(t, d.Rules)

	res = call(t, s, "authorize", map[string]any{
		"participant": testutils.Government,
		"action":      "issue_trusted_traveler",
		"role":        "travel_issuer",
	})
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &d))
	assert.True(t, d.Allowed)
	assert.Equal(t, domain.Role("travel_issuer"), d.As)
}

func TestResolveAction(t *testing.T) {
	s := newServer(t)

	res := call(t, s, "resolve_action", map[string]any{"action": "verify_trusted_traveler", "role": "hospitality_verifier"})
	require.False(t, res.IsError)
	var out chartermcp.ActionResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "hl:zm9YZpCjPLPJ4Epc:z3TSgXTuaHxY2tsArhUreJ4ixgw9NW7DYuQ9QTPQyLHy", out.PresentationDefinition)

	res = call(t, s, "resolve_action", map[string]any{"action": "verify_trusted_traveler", "role": "health_verifier"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "no presentation definition for role 'health_verifier'")

	res = call(t, s, "resolve_action", map[string]any{"action": "teleport"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "action 'teleport' is not declared")
}

func TestDescribeFlows(t *testing.T) {
	s := newServer(t)
	res := call(t, s, "describe_flows", nil)
	require.False(t, res.IsError)

	var flows []chartermcp.FlowSummary
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &flows))
	require.Len(t, flows, 6)
	assert.Equal(t, "connect-to-health-issuer", flows[0].Name)
	assert.True(t, flows[0].Initial)
	assert.Len(t, flows[0].Reachable, 6)
	assert.Equal(t, []string{"issue_lab_order", "issue_lab_result", "issue_vaccine", "issue_vaccine_exemption"}, flows[2].Actions)
}

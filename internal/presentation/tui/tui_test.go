package tui_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/aretw0/charter/internal/presentation/tui"
	"github.com/aretw0/charter/internal/testutils"
	"github.com/aretw0/charter/pkg/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	m, err := governance.Compile(testutils.LoadAruba(t))
	require.NoError(t, err)

	md := tui.Describe(m)
	assert.Contains(t, md, "# Aruba Health and Travel (v0.2)")
	assert.Contains(t, md, "| travel_issuer, health_verifier, travel_verifier |")
	assert.Contains(t, md, "### connect-to-health-issuer (initial)")
	assert.Contains(t, md, "- Actions: `(issue_lab_order AND issue_lab_result) OR issue_vaccine OR issue_vaccine_exemption`")
	assert.Contains(t, md, "- Requires: connection with holder")
	assert.Contains(t, md, "travel_verifier: `hl:zm9YZpCjPLPJ4Epc:z3TSgXTuaHxY2tsArhUreJ4ixgw9NW7DYuQ9QTPQyLHt`")
	assert.Contains(t, md, "privileges[0]")

	out, err := tui.Plain(md)
	require.NoError(t, err)
	assert.Equal(t, md, out)
}

func TestPrintDecision(t *testing.T) {
	m, err := governance.Compile(testutils.LoadAruba(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	tui.PrintDecision(&buf, m.Authorize(context.Background(), testutils.Casino, "issue_lab_order"))

	out := buf.String()
	assert.Contains(t, out, "DENIED issue_lab_order for did:example:casino")
	assert.Contains(t, out, "roles: hospitality_verifier")
	assert.Contains(t, out, "privileges[0]")

	buf.Reset()
	tui.PrintDecision(&buf, m.AuthorizeAs(context.Background(), testutils.Government, "travel_issuer", "issue_trusted_traveler"))
	assert.Contains(t, buf.String(), "ALLOWED issue_trusted_traveler for "+testutils.Government+" as travel_issuer")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "governance interpreter 1.2.3")
}

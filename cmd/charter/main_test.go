package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/charter/internal/config"
	"github.com/aretw0/charter/internal/logging"
	"github.com/aretw0/charter/internal/testutils"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	t.Setenv("CHARTER_LOG_LEVEL", "error")
	aruba := testutils.FixturePath(t, "aruba.json")

	t.Run("Version", func(t *testing.T) {
		out, err := execute(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "charter version ")
	})

	t.Run("Validate", func(t *testing.T) {
		out, err := execute(t, "validate", aruba)
		require.NoError(t, err)
		assert.Contains(t, out, "Framework Aruba Health and Travel (v0.2) is valid!")
	})

	t.Run("Roles", func(t *testing.T) {
		out, err := execute(t, "roles", "-f", aruba, testutils.Government)
		require.NoError(t, err)
		assert.Contains(t, strings.Split(out, "\n"), "travel_issuer")
	})

	t.Run("Authorize Denied", func(t *testing.T) {
		out, err := execute(t, "authorize", "-f", aruba, testutils.Casino, "issue_lab_order")
		require.ErrorIs(t, err, errDenied)
		assert.Contains(t, out, "DENIED issue_lab_order for did:example:casino")
	})

	t.Run("Graph", func(t *testing.T) {
		out, err := execute(t, "graph", aruba)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "graph TD\n"))
		assert.Contains(t, out, `connect_to_health_issuer([`)
	})

	t.Run("Missing Framework", func(t *testing.T) {
		_, err := execute(t, "describe", "--plain", filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
}

func TestRunWithOperator(t *testing.T) {
	t.Setenv("CHARTER_LOG_LEVEL", "error")

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
	doc, err := b.Document()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, doc, 0644))

	rootCmd.SetIn(strings.NewReader("s\ns\n"))
	defer rootCmd.SetIn(nil)
	out, err := execute(t, "run", path, "--operator", "text",
		"-b", "member=did:example:reader", "-b", "lender=did:example:library")
	require.NoError(t, err)
	assert.Contains(t, out, "[join] member runs connect with lender")
	assert.Contains(t, out, "join -> issue (success)")
	assert.Contains(t, out, "completed at issue")
}

func TestParseBindings(t *testing.T) {
	got, err := parseBindings([]string{"holder=did:example:traveler", "travel_issuer=" + testutils.Government})
	require.NoError(t, err)
	assert.Equal(t, map[domain.Role]string{
		"holder":        "did:example:traveler",
		"travel_issuer": testutils.Government,
	}, got)

	_, err = parseBindings([]string{"holder"})
	assert.ErrorContains(t, err, "want role=participant")
	_, err = parseBindings([]string{"=x"})
	assert.Error(t, err)
}

func TestOpenBackend_FileStoreSealsSessions(t *testing.T) {
	logger = logging.NewNop()
	dir := t.TempDir()
	c := &config.Config{
		Store:         config.StoreFile,
		SessionDir:    dir,
		EncryptionKey: hex.EncodeToString(bytes.Repeat([]byte{7}, 32)),
		MaskArtifacts: []string{"(?i)token"},
	}

	b, err := openBackend(context.Background(), c)
	require.NoError(t, err)
	defer b.close()
	assert.Nil(t, b.locker)

	s := domain.NewSession("s-1", "aruba", "start", map[domain.Role]string{"holder": testutils.Traveler})
	s.Records = append(s.Records, domain.ActionRecord{Action: "connect", Artifacts: map[string]any{"token": "secret"}})
	require.NoError(t, b.store.Save(context.Background(), s))

	raw, err := os.ReadFile(filepath.Join(dir, "s-1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), testutils.Traveler)

	loaded, err := b.store.Load(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "***", loaded.Records[0].Artifacts["token"])
	assert.Equal(t, testutils.Traveler, loaded.Bindings["holder"])
}

func TestOpenBackend_RejectsBadRedisURL(t *testing.T) {
	_, err := openBackend(context.Background(), &config.Config{Store: config.StoreRedis, RedisURL: "://nope"})
	assert.ErrorContains(t, err, "invalid redis url")
}

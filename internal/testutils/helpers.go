package testutils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/charter/internal/compiler"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/stretchr/testify/require"
)

// Participant identifiers used by the Aruba fixture.
const (
	Government = "J1pp5Ro5Xf6qtF281xknFs"
	Hospital   = "FK8a5myo4jhh3yDfn4WtbS"
	Casino     = "did:example:casino"
	Traveler   = "did:example:traveler"
)

// FixturePath returns the absolute path of a file under the repository testdata directory.
func FixturePath(t *testing.T, name string) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to resolve helper location")

	// internal/testutils/helpers.go -> repository root
	root := filepath.Join(filepath.Dir(file), "..", "..")
	return filepath.Join(root, "testdata", name)
}

// ReadFixture returns the raw bytes of a testdata file.
func ReadFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(FixturePath(t, name))
	require.NoError(t, err, "Failed to read fixture %s", name)
	return data
}

// LoadAruba parses the Aruba health and travel framework.
// Each call returns a fresh copy that the test may mutate.
func LoadAruba(t *testing.T) *domain.Framework {
	t.Helper()

	fw, err := compiler.Parse(ReadFixture(t, "aruba.json"))
	require.NoError(t, err, "Failed to parse Aruba fixture")
	return fw
}

// EnableHolder grants the holder role to the traveler and the connect action to holders,
// which the published Aruba document leaves out.
func EnableHolder(fw *domain.Framework) {
	fw.Participants = append(fw.Participants, domain.Participant{ID: Traveler, Name: "Traveler"})
	fw.Permissions = append(fw.Permissions, domain.PermissionRule{
		Grant: []domain.Role{"holder"},
		When:  domain.Any(domain.Match(domain.FieldID, Traveler)),
	})
	fw.Privileges = append(fw.Privileges, domain.PrivilegeRule{
		Grant: []string{"connect"},
		When:  domain.Any(domain.Match(domain.FieldRole, "holder")),
	})
}

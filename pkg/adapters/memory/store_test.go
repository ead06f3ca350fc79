package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/charter/internal/testutils"
	"github.com/aretw0/charter/pkg/adapters/memory"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("From document", func(t *testing.T) {
		loader, err := memory.NewFromDocument(testutils.ReadFixture(t, "aruba.json"))
		require.NoError(t, err)

		fw, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Aruba Health and Travel", fw.Name)

		// Each Load hands out an independent copy.
		fw.Roles = nil
		again, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, again.Roles, 6)
	})

	t.Run("Invalid document", func(t *testing.T) {
		_, err := memory.NewFromDocument([]byte("roles: [unclosed"))
		assert.Error(t, err)
	})
}

func TestWallet(t *testing.T) {
	ctx := context.Background()
	wallet := memory.NewWallet()
	wallet.Add(testutils.Traveler, memory.Credential{SchemaID: "schema:vaccine", IssuerID: testutils.Hospital})

	cases := []struct {
		name  string
		who   string
		query ports.CredentialQuery
		want  bool
	}{
		{"Schema only", testutils.Traveler, ports.CredentialQuery{SchemaID: "schema:vaccine"}, true},
		{"Schema and issuer", testutils.Traveler, ports.CredentialQuery{SchemaID: "schema:vaccine", IssuerID: testutils.Hospital}, true},
		{"Wrong issuer", testutils.Traveler, ports.CredentialQuery{SchemaID: "schema:vaccine", IssuerID: testutils.Casino}, false},
		{"Other schema", testutils.Traveler, ports.CredentialQuery{SchemaID: "schema:lab"}, false},
		{"Other participant", testutils.Casino, ports.CredentialQuery{SchemaID: "schema:vaccine"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := wallet.HoldsCredential(ctx, tc.who, tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/credit-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/secret"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := `env: test
storage_connection_string: "memory://"
redis_connection:
  addressredis: "` + mr.Addr() + `"
jwttoken:
  jwt_secret_key: "cli-test-secret"
  token_ttl: 1h
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashSecret(t *testing.T) {
	out, err := run(t, "hash-secret", "s3cret")
	require.NoError(t, err)
	assert.NoError(t, secret.Verify(strings.TrimSpace(out), "s3cret"))
}

func TestToken(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "--config", path, "token", "--account", "u1", "--email", "u1@example.com")
	require.NoError(t, err)

	claims, err := jwt.NewJWTMaker("cli-test-secret", 0).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.AccountID)
	assert.Equal(t, "u1@example.com", claims.Email)

	_, err = run(t, "--config", path, "token")
	assert.Error(t, err)
}

func TestSeedSlots(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "seed-slots")
	require.NoError(t, err)

	var avail []models.SlotAvailability
	require.NoError(t, json.Unmarshal([]byte(out), &avail))
	require.NotEmpty(t, avail)
	last := avail[len(avail)-1]
	assert.Equal(t, models.AggregatePoolID, last.TierID)
	assert.Equal(t, last.Max, last.Available)
}

func TestCommandErrors(t *testing.T) {
	path := writeConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no config", args: []string{"--config", "", "seed-slots"}},
		{name: "grant without reason", args: []string{"--config", path, "grant", "--account", "u1", "--amount", "5"}},
		{name: "grant to unknown account", args: []string{"--config", path, "grant", "--account", "u1", "--amount", "5", "--reason", "support"}},
		{name: "migrate on memory store", args: []string{"--config", path, "migrate", "up"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestRefundsList(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "refunds", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "[]")
}

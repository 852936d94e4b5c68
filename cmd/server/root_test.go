package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/internflow/internal/domain/entity"
	httpapi "github.com/garyjia/internflow/internal/interfaces/http"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("INTERNFLOW_AUTH_JWT_SECRET", "cli-secret")
	missing := filepath.Join(t.TempDir(), "none.yaml")

	out, err := runRoot(t, "token", "--config", missing, "--user", "director-1", "--role", "director", "--university", "uni-1")
	require.NoError(t, err)

	claims, err := httpapi.NewTokenService("cli-secret", "internflow", 0).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, entity.Actor{UserID: "director-1", Role: entity.RoleDirector, UniversityID: "uni-1"}, claims.Actor())
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	t.Setenv("INTERNFLOW_AUTH_JWT_SECRET", "cli-secret")
	missing := filepath.Join(t.TempDir(), "none.yaml")

	_, err := runRoot(t, "token", "--config", missing, "--user", "u", "--role", "system")
	assert.Error(t, err)

	_, err = runRoot(t, "token", "--config", missing, "--role", "admin")
	assert.Error(t, err)
}

func TestMigrateAndSeedCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("INTERNFLOW_AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("INTERNFLOW_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("INTERNFLOW_LOGGER_OUTPUT_PATH", filepath.Join(dir, "cli.log"))
	missing := filepath.Join(dir, "none.yaml")

	_, err := runRoot(t, "migrate", "--config", missing)
	require.NoError(t, err)

	_, err = runRoot(t, "seed", "--config", missing)
	require.NoError(t, err)
	_, err = runRoot(t, "seed", "--config", missing)
	require.NoError(t, err)
}

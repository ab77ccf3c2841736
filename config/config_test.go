package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"AGORA_BACKEND", "AGORA_MAX_RETRIES", "AGORA_TOTAL_TIMEOUT",
		"AGORA_MAINTENANCE_WORKERS", "AGORA_SCORER_CONCURRENCY",
	} {
		t.Setenv(key, "")
	}

	s := Load()
	assert.Equal(t, BackendNone, s.Backend)
	assert.Equal(t, 2, s.Retry.MaxRetries)
	assert.Equal(t, 120*time.Second, s.Timeouts.Total)
	assert.Equal(t, 2, s.MaintenanceWorkers)
	assert.Equal(t, int64(2), s.ScorerConcurrency)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("AGORA_BACKEND", "openai")
	t.Setenv("AGORA_MODEL", "gpt-4o-mini")
	t.Setenv("AGORA_MAX_RETRIES", "5")
	t.Setenv("AGORA_TOTAL_TIMEOUT", "30s")
	t.Setenv("AGORA_MAINTENANCE_WORKERS", "4")
	t.Setenv("AGORA_MAX_BACKEND_CALLS", "200")

	s := Load()
	assert.Equal(t, BackendOpenAI, s.Backend)
	assert.Equal(t, "gpt-4o-mini", s.Model)
	assert.Equal(t, 5, s.Retry.MaxRetries)
	assert.Equal(t, 30*time.Second, s.Timeouts.Total)
	assert.Equal(t, 4, s.MaintenanceWorkers)
	assert.Equal(t, 200, s.MaxBackendCalls)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("AGORA_MAX_RETRIES", "many")
	t.Setenv("AGORA_TOTAL_TIMEOUT", "soon")

	s := Load()
	assert.Equal(t, 2, s.Retry.MaxRetries)
	assert.Equal(t, 120*time.Second, s.Timeouts.Total)
}

func TestRoleTemperature(t *testing.T) {
	assert.Equal(t, 0.5, RoleTemperature("moderator"))
	assert.Equal(t, 0.9, RoleTemperature("designer"))
	assert.Equal(t, DefaultTemperature, RoleTemperature("cartographer"))
}

const rosterYAML = `
actors:
  - id: m1
    name: Mia
    role: moderator
  - id: a1
    name: Ada
    role: engineer
    scope: public
    expertise: [databases, billing]
    kinds: [speak, submit, pass]
seed_speakers: [m1]
seed_tags: [kickoff, billing]
privileged_roles: [moderator]
turn_order: [m1, a1]
`

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRoster(t *testing.T) {
	roster, err := LoadRoster(writeRoster(t, rosterYAML))
	require.NoError(t, err)

	require.Len(t, roster.Actors, 2)
	assert.Equal(t, "Mia", roster.Actors[0].Name)
	assert.Equal(t, []string{"databases", "billing"}, roster.Actors[1].Expertise)
	assert.Equal(t, []string{"m1"}, roster.SeedSpeakers)
	assert.Equal(t, []string{"m1", "a1"}, roster.TurnOrder)
}

func TestLoadRosterRejectsBadConfigs(t *testing.T) {
	_, err := LoadRoster(writeRoster(t, "actors: []\n"))
	assert.Error(t, err)

	_, err = LoadRoster(writeRoster(t, "actors: [{id: a1, name: Ada}, {id: a1, name: Bo}]\n"))
	assert.Error(t, err)

	_, err = LoadRoster(writeRoster(t, "actors: [{id: a1, name: Ada}]\nseed_speakers: [ghost]\n"))
	assert.Error(t, err)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

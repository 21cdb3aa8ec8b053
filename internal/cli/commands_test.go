package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/rotation"
	"github.com/roach88/featured/internal/store"
)

const seedYAML = `artists:
  - name: Nina Simone
    bio: High Priestess of Soul
    aliases: [Eunice Waymon]
  - name: Miles Davis
  - name: Aretha Franklin
    featured_at: 2024-01-01T00:00:00Z
`

const freshSeedYAML = `artists:
  - name: Nina Simone
    bio: High Priestess of Soul
  - name: Miles Davis
`

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	if ctx == nil {
		ctx = context.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// seededDB seeds a fresh database from seedYAML and returns its path.
func seededDB(t *testing.T) string {
	t.Helper()
	return seededDBFrom(t, seedYAML)
}

// seededDBFrom seeds a fresh database from doc and returns its path.
func seededDBFrom(t *testing.T, doc string) string {
	t.Helper()

	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(doc), 0644))

	db := filepath.Join(dir, "featured.db")
	_, err := execute(t, nil, "seed", seedPath, "--db", db)
	require.NoError(t, err)
	return db
}

type rotationResponse struct {
	Status  string            `json:"status"`
	CycleID string            `json:"cycle_id"`
	Data    rotation.Rotation `json:"data"`
	Error   *CLIError         `json:"error"`
}

func TestParseSeedFile(t *testing.T) {
	f, err := ParseSeedFile([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, f.Artists, 3)
	assert.Equal(t, []string{"Eunice Waymon"}, f.Artists[0].Aliases)
	require.NotNil(t, f.Artists[2].FeaturedAt)
	assert.True(t, f.Artists[2].FeaturedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "no artists"},
		{"unknown key", "artists:\n  - name: A\n    genre: jazz\n", "genre"},
		{"blank name", "artists:\n  - name: \"  \"\n", "artists[0]: name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeedFile([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeedCommand(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0644))
	db := filepath.Join(dir, "featured.db")

	out, err := execute(t, nil, "seed", seedPath, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Nina Simone")
	assert.Contains(t, out, "Seeded 3 artist(s)")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSeedCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "featured.db")

	t.Run("missing file", func(t *testing.T) {
		out, err := execute(t, nil, "seed", filepath.Join(dir, "nope.yaml"), "--db", db)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
	})

	t.Run("invalid file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("artist:\n  - name: A\n"), 0644))

		out, err := execute(t, nil, "seed", bad, "--db", db)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, ErrCodeInvalidSeed)
	})
}

func TestRotateCommand_CyclesCatalog(t *testing.T) {
	db := seededDB(t)

	// Never featured first by id, then the one featured longest ago.
	for _, want := range []string{"Nina Simone", "Miles Davis", "Aretha Franklin"} {
		out, err := execute(t, nil, "rotate", "--db", db, "--format", "json")
		require.NoError(t, err)

		var resp rotationResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.NotEmpty(t, resp.CycleID)
		assert.Equal(t, resp.CycleID, resp.Data.CycleID)
		assert.Equal(t, want, resp.Data.Artist.Name)
		require.NotNil(t, resp.Data.Artist.FeaturedAt)
	}

	out, err := execute(t, nil, "rotate", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, rotation.IsNoEligible(err))

	var resp rotationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoEligible, resp.Error.Code)
}

func TestRotateCommand_Text(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, nil, "rotate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Featured: Nina Simone (id=1")
}

func TestRotateCommand_EmptyCatalog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "featured.db")

	out, err := execute(t, nil, "rotate", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNoEligible+"]")
}

func TestRotateCommand_Snapshot(t *testing.T) {
	db := seededDB(t)
	snap := filepath.Join(t.TempDir(), "featured.json")

	_, err := execute(t, nil, "rotate", "--db", db, "--snapshot", snap)
	require.NoError(t, err)

	data, err := os.ReadFile(snap)
	require.NoError(t, err)
	rot, err := rotation.ReadSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "Nina Simone", rot.Artist.Name)
	assert.NotEmpty(t, rot.CycleID)
}

func TestCurrentCommand(t *testing.T) {
	db := seededDBFrom(t, freshSeedYAML)

	out, err := execute(t, nil, "current", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNothingFeatured)

	_, err = execute(t, nil, "rotate", "--db", db)
	require.NoError(t, err)

	// A new process starts with an empty slot and rehydrates from the store.
	out, err = execute(t, nil, "current", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Artist of the day: Nina Simone")
	assert.Contains(t, out, "High Priestess of Soul")

	out, err = execute(t, nil, "current", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CurrentResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Nina Simone", resp.Data.Artist.Name)
	assert.Equal(t, uint64(1), resp.Data.Stats.Misses)
	assert.Equal(t, uint64(1), resp.Data.Stats.Fills)
}

func TestListCommand(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, nil, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "never featured")
	assert.Contains(t, out, "featured 2024-01-01T00:00:00Z")
	assert.Contains(t, out, "3 artist(s)")

	out, err = execute(t, nil, "list", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []catalog.Artist `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "Nina Simone", resp.Data[0].Name)
	assert.Equal(t, int64(3), resp.Data[2].ID)
}

func TestListCommand_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "featured.db")

	out, err := execute(t, nil, "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No artists.")
}

func TestHistoryCommand(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, nil, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No rotations yet.")

	for i := 0; i < 2; i++ {
		_, err := execute(t, nil, "rotate", "--db", db)
		require.NoError(t, err)
	}

	out, err = execute(t, nil, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []store.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Miles Davis", resp.Data[0].Name)
	assert.Equal(t, "Nina Simone", resp.Data[1].Name)

	out, err = execute(t, nil, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Miles Davis")
	assert.NotContains(t, out, "Nina Simone")
}

func TestConfigFile(t *testing.T) {
	db := seededDB(t)
	dir := t.TempDir()

	t.Run("database from config", func(t *testing.T) {
		cfg := filepath.Join(dir, "featured.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("database: "+db+"\nlog_level: warn\n"), 0644))

		out, err := execute(t, nil, "list", "--config", cfg)
		require.NoError(t, err)
		assert.Contains(t, out, "3 artist(s)")
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("period: weekly\n"), 0644))

		out, err := execute(t, nil, "list", "--config", cfg, "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeInvalidConfig, resp.Error.Code)
	})

	t.Run("missing config", func(t *testing.T) {
		out, err := execute(t, nil, "list", "--config", filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
	})

	t.Run("invalid flag override", func(t *testing.T) {
		out, err := execute(t, nil, "list", "--db", db, "--timezone", "Mars/Olympus_Mons")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error ["+ErrCodeInvalidConfig+"]")
	})
}

func TestCurrentCommand_PriorFeature(t *testing.T) {
	// Seed data can carry a feature from an earlier period; it is served
	// even though it is eligible for rotation again.
	db := seededDB(t)

	out, err := execute(t, nil, "current", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Artist of the day: Aretha Franklin")
}

func TestRunCommand_RotateOnStart(t *testing.T) {
	db := seededDBFrom(t, freshSeedYAML)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := execute(t, ctx, "run", "--db", db, "--schedule", "@hourly", "--rotate-on-start")
	require.NoError(t, err)
	assert.Contains(t, out, "Scheduler started")

	out, err = execute(t, nil, "current", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Nina Simone")
}

func TestRunCommand_InvalidSchedule(t *testing.T) {
	db := filepath.Join(t.TempDir(), "featured.db")

	out, err := execute(t, nil, "run", "--db", db, "--schedule", "not a schedule")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeInvalidConfig+"]")
}

func TestRunCommand_FlagDisablesConfiguredRotateOnStart(t *testing.T) {
	db := seededDBFrom(t, freshSeedYAML)
	cfg := filepath.Join(t.TempDir(), "featured.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("database: "+db+"\nschedule: \"@hourly\"\nrotate_on_start: true\n"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := execute(t, ctx, "run", "--config", cfg, "--rotate-on-start=false")
	require.NoError(t, err)

	out, err := execute(t, nil, "current", "--db", db)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNothingFeatured)

	// Without the flag the config value applies.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel2()

	_, err = execute(t, ctx2, "run", "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, nil, "current", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Nina Simone")
}

func TestTestCommand(t *testing.T) {
	t.Run("passes", func(t *testing.T) {
		out, err := execute(t, nil, "test", "../harness/testdata")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ daily_rotation")
		assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, nil, "test", "../harness/testdata", "--format", "json", "--filter", "daily_*")
		require.NoError(t, err)

		var resp struct {
			Status string `json:"status"`
			Data   struct {
				Passed int `json:"passed"`
				Total  int `json:"total"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, 1, resp.Data.Passed)
		assert.Equal(t, 1, resp.Data.Total)
	})

	t.Run("no match", func(t *testing.T) {
		out, err := execute(t, nil, "test", "../harness/testdata", "--filter", "nothing-*")
		require.NoError(t, err)
		assert.Contains(t, out, "No scenarios found.")
	})

	t.Run("missing dir", func(t *testing.T) {
		out, err := execute(t, nil, "test", "./does-not-exist")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
	})
}

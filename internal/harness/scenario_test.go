package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "store_failures.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "store_failures", scenario.Name)
	assert.True(t, scenario.Start.Equal(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)))
	require.Len(t, scenario.Artists, 2)
	require.NotNil(t, scenario.Artists[0].FeaturedAt)
	assert.True(t, scenario.Artists[0].FeaturedAt.Equal(time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC)))
	assert.Nil(t, scenario.Artists[1].FeaturedAt)
	require.Len(t, scenario.Steps, 6)
	assert.Equal(t, OpFail, scenario.Steps[1].Op)
	assert.Equal(t, "Save", scenario.Steps[1].Method)
	assert.Equal(t, map[string]string{"artist": "Nina Simone", "source": "store"}, scenario.Steps[0].Expect)
	require.Len(t, scenario.Assertions, 4)
	assert.Equal(t, 3, scenario.Assertions[1].Count)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: has a typo
stepz:
  - op: rotate
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stepz")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: rotate}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps: [{op: rotate}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nsteps: [{op: dance}]\n",
			want: `unknown op "dance"`,
		},
		{
			name: "advance without duration",
			yaml: "name: n\ndescription: d\nsteps: [{op: advance}]\n",
			want: "duration is required",
		},
		{
			name: "negative advance",
			yaml: "name: n\ndescription: d\nsteps: [{op: advance, duration: -1h}]\n",
			want: "non-negative",
		},
		{
			name: "fail unknown method",
			yaml: "name: n\ndescription: d\nsteps: [{op: fail, method: Delete}]\n",
			want: `unknown method "Delete"`,
		},
		{
			name: "artist without name",
			yaml: "name: n\ndescription: d\nartists: [{bio: b}]\nsteps: [{op: rotate}]\n",
			want: "artists[0]: name is required",
		},
		{
			name: "bad timezone",
			yaml: "name: n\ndescription: d\ntimezone: Nowhere/Town\nsteps: [{op: rotate}]\n",
			want: "timezone",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{op: rotate}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "trace_order without artists",
			yaml: "name: n\ndescription: d\nsteps: [{op: rotate}]\nassertions: [{type: trace_order}]\n",
			want: "artists list is required",
		},
		{
			name: "final_state without expect",
			yaml: "name: n\ndescription: d\nsteps: [{op: rotate}]\nassertions: [{type: final_state, artist: A}]\n",
			want: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

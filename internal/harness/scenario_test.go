package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one source, one load
sources:
  - id: a
    pages: [[1, 2]]
steps:
  - action: load
    expect:
      outcome: success
      has_next: false
      items: [1, 2]
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Sources, 1)
	assert.Equal(t, [][]int{{1, 2}}, s.Sources[0].Pages)
	require.Len(t, s.Steps, 1)
	require.NotNil(t, s.Steps[0].Expect)
	require.NotNil(t, s.Steps[0].Expect.HasNext)
	assert.False(t, *s.Steps[0].Expect.HasNext)
	assert.Equal(t, []int{1, 2}, s.Steps[0].Expect.Items)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "extra: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestScenario_Validate(t *testing.T) {
	base := func() Scenario {
		return Scenario{
			Name:        "x",
			Description: "x",
			Sources:     []SourceSpec{{ID: "a"}, {ID: "b"}},
			Steps:       []Step{{Action: ActionLoad}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no sources", func(s *Scenario) { s.Sources = nil }, "sources list is required"},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"empty id", func(s *Scenario) { s.Sources[1].ID = "" }, "sources[1]: id is required"},
		{"duplicate id", func(s *Scenario) { s.Sources[1].ID = "a" }, `duplicate id "a"`},
		{"unknown chain ref", func(s *Scenario) { s.Chain = []string{"a", "z"} }, `chain: unknown source "z"`},
		{"missing action", func(s *Scenario) { s.Steps[0].Action = "" }, "action is required"},
		{"unknown action", func(s *Scenario) { s.Steps[0].Action = "scroll" }, `unknown action "scroll"`},
		{"bad direction", func(s *Scenario) { s.Steps[0].Direction = "left" }, "unknown direction"},
		{"bad behavior", func(s *Scenario) {
			s.Steps[0] = Step{Action: ActionInvalidate, Behavior: "some"}
		}, "unknown invalidate behavior"},
		{"bad diff", func(s *Scenario) {
			s.Steps[0] = Step{Action: ActionSetSources, Sources: []string{"a"}, Diff: "myers"}
		}, `unknown diff "myers"`},
		{"unknown set_sources ref", func(s *Scenario) {
			s.Steps[0] = Step{Action: ActionSetSources, Sources: []string{"q"}}
		}, `steps[0].sources: unknown source "q"`},
		{"unknown edit source", func(s *Scenario) {
			s.Steps[0] = Step{Action: ActionRemoveSource, Source: "q"}
		}, `unknown source "q"`},
		{"bad outcome", func(s *Scenario) {
			s.Steps[0].Expect = &Expect{Outcome: "maybe"}
		}, `unknown outcome "maybe"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)
		assert.Equal(t, filepath.Base(path), s.Name+".yaml", "scenario name must match its file")
	}
}

package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
)

func TestLoad_File(t *testing.T) {
	lab, err := Load(filepath.Join("testdata", "lab.cue"))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), lab.Seed)
	assert.Equal(t, int64(5), lab.TickMs)

	require.Len(t, lab.Lanes, 3)
	assert.Equal(t, []string{"trigger", "poll_fast", "log"},
		[]string{lab.Lanes[0].Name, lab.Lanes[1].Name, lab.Lanes[2].Name},
		"lanes keep declaration order")

	poll, ok := lab.Lane("poll_fast")
	require.True(t, ok)
	assert.Equal(t, capture.KindPolling, poll.Kind)
	assert.Equal(t, capture.Options{
		capture.OptPollInterval:       int64(100),
		capture.OptIncludeSoftDeletes: true,
		capture.OptSoftDeleteColumn:   "archived",
	}, poll.Options)
}

func TestParse_Defaults(t *testing.T) {
	lab, err := Parse([]byte(""), "empty.cue")
	require.NoError(t, err)

	assert.Equal(t, uint64(0), lab.Seed)
	assert.Equal(t, int64(10), lab.TickMs)
	assert.Equal(t, DefaultLanes(), lab.Lanes)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"syntax", "seed: ["},
		{"unknown field", "sede: 1"},
		{"negative seed", "seed: -1"},
		{"zero tick", "tick_ms: 0"},
		{"unknown kind", `lanes: x: {kind: "cdc", options: {}}`},
		{"missing kind", `lanes: x: {options: {}}`},
		{"float option", `lanes: x: {kind: "polling", options: {poll_interval_ms: 1.5}}`},
		{"list option", `lanes: x: {kind: "polling", options: {poll_interval_ms: [1]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "bad.cue")
			require.Error(t, err)

			var cfgErr *Error
			assert.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := &Error{Field: "cue", Message: "conflicting values"}
	assert.Equal(t, "cue: conflicting values", err.Error())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.cue"))
	assert.Error(t, err)
}

func TestNewSession(t *testing.T) {
	lab, err := Load(filepath.Join("testdata", "lab.cue"))
	require.NoError(t, err)

	s, err := lab.NewSession()
	require.NoError(t, err)

	lanes := s.Lanes()
	require.Len(t, lanes, 3)
	assert.Equal(t, "trigger", lanes[0].Name())
	assert.Equal(t, capture.KindTrigger, lanes[0].Engine().Kind())
	assert.Equal(t, int64(56), lanes[0].Engine().Horizon())
}

func TestNewSession_EngineConfigError(t *testing.T) {
	lab, err := Parse([]byte(`lanes: slow: {kind: "polling", options: {}}`), "lab.cue")
	require.NoError(t, err, "option presence is checked by the engine, not the schema")

	_, err = lab.NewSession()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `lane "slow"`)
	assert.Equal(t, ir.ErrCodeMissingOption, ir.ConfigErrorCodeOf(err))
}

func TestNewSession_DuplicateLane(t *testing.T) {
	lab := Default()
	lab.Lanes = append(lab.Lanes, lab.Lanes[0])

	_, err := lab.NewSession()
	assert.ErrorContains(t, err, "duplicate lane name")
}

func TestDefault(t *testing.T) {
	lab := Default()
	s, err := lab.NewSession()
	require.NoError(t, err)

	var kinds []capture.Kind
	for _, l := range s.Lanes() {
		kinds = append(kinds, l.Engine().Kind())
	}
	assert.Equal(t, capture.Kinds, kinds)
	assert.Equal(t, int64(200), s.Horizon())
}

func TestLab_LaneOptions(t *testing.T) {
	opts := Default().LaneOptions()
	require.Len(t, opts, 3)
	assert.Equal(t, capture.Options{capture.OptPollInterval: int64(200)}, opts["polling"])
	assert.Contains(t, opts, "trigger")
	assert.Contains(t, opts, "log")
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusQueued, "queued"},
		{StatusRunning, "running"},
		{StatusFinished, "finished"},
		{StatusFailed, "failed"},
		{StatusStopped, "stopped"},
		{StatusUnknown, "unknown"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusRunning, StatusFinished, StatusFailed, StatusStopped} {
		assert.Equal(t, s, ParseStatus(s.String()))
	}
	assert.Equal(t, StatusUnknown, ParseStatus("bogus"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusQueued.IsActive())
	assert.True(t, StatusRunning.IsActive())
	assert.False(t, StatusFinished.IsActive())

	assert.True(t, StatusFinished.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusStopped.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusUnknown.IsTerminal())
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(StatusRunning)
	require.NoError(t, err)
	assert.Equal(t, `"running"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"stopped"`), &s))
	assert.Equal(t, StatusStopped, s)

	require.Error(t, json.Unmarshal([]byte(`42`), &s))
}

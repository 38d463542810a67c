package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupEnv {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Stage
	}{
		{"empty environment", nil, PreCommit},
		{"explicit push", map[string]string{"HOOK_STAGE": "push"}, PrePush},
		{"explicit pre-push", map[string]string{"PRE_COMMIT_HOOK_STAGE": "pre-push"}, PrePush},
		{"explicit commit beats from ref", map[string]string{"HOOKGATE_STAGE": "commit", "PRE_COMMIT_FROM_REF": "abc"}, PreCommit},
		{"from ref implies push", map[string]string{"PRE_COMMIT_FROM_REF": "abc123"}, PrePush},
		{"source implies push", map[string]string{"PRE_COMMIT_SOURCE": "abc123"}, PrePush},
		{"unknown explicit falls through", map[string]string{"HOOK_STAGE": "merge"}, PreCommit},
		{"unknown explicit then from ref", map[string]string{"HOOK_STAGE": "merge", "HOOKGATE_FROM_REF": "x"}, PrePush},
		{"first explicit wins", map[string]string{"HOOKGATE_STAGE": "pre-commit", "HOOK_STAGE": "push"}, PreCommit},
		{"blank explicit ignored", map[string]string{"HOOKGATE_STAGE": " ", "HOOK_STAGE": "push"}, PrePush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(env(tt.env)))
		})
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("PRE-PUSH")
	require.NoError(t, err)
	assert.Equal(t, PrePush, s)

	_, err = Parse("post-merge")
	assert.Error(t, err)
}

func TestIncludes(t *testing.T) {
	assert.True(t, PrePush.Includes(PreCommit))
	assert.True(t, PrePush.Includes(PrePush))
	assert.True(t, PreCommit.Includes(PreCommit))
	assert.False(t, PreCommit.Includes(PrePush))
}

func TestDiffRange(t *testing.T) {
	from, to, ok := DiffRange(env(map[string]string{"PRE_COMMIT_FROM_REF": "abc", "PRE_COMMIT_TO_REF": "def"}))
	require.True(t, ok)
	assert.Equal(t, "abc", from)
	assert.Equal(t, "def", to)

	_, to, ok = DiffRange(env(map[string]string{"HOOKGATE_FROM_REF": "abc"}))
	require.True(t, ok)
	assert.Equal(t, "HEAD", to)

	_, _, ok = DiffRange(env(map[string]string{"PRE_COMMIT_FROM_REF": "0000000000000000000000000000000000000000"}))
	assert.False(t, ok)

	_, _, ok = DiffRange(env(nil))
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "pre-commit", PreCommit.String())
	assert.Equal(t, "pre-push", PrePush.String())
	b, err := PrePush.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "pre-push", string(b))
}

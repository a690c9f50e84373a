package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"initialized to redirected", SessionInitialized, SessionRedirected, true},
		{"initialized to completed", SessionInitialized, SessionCompleted, true},
		{"initialized to failed", SessionInitialized, SessionFailed, true},
		{"redirected to callback", SessionRedirected, SessionCallbackReceived, true},
		{"callback to completed", SessionCallbackReceived, SessionCompleted, true},
		{"redirected to initialized", SessionRedirected, SessionInitialized, false},
		{"callback to redirected", SessionCallbackReceived, SessionRedirected, false},
		{"completed is immutable", SessionCompleted, SessionFailed, false},
		{"failed is immutable", SessionFailed, SessionCompleted, false},
		{"no self transition", SessionRedirected, SessionRedirected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestSessionStatusIsTerminal(t *testing.T) {
	assert.True(t, SessionCompleted.IsTerminal())
	assert.True(t, SessionFailed.IsTerminal())
	assert.False(t, SessionInitialized.IsTerminal())
	assert.False(t, SessionRedirected.IsTerminal())
	assert.False(t, SessionCallbackReceived.IsTerminal())
}

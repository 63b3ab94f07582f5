package counselbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSurfaceURL(t *testing.T) {
	base := "http://portal.example.com/counsel"

	tests := []struct {
		name       string
		configured string
		want       string
	}{
		{"empty falls back to the default path", "", base + "/voice/agent.html"},
		{"relative path gains the portal origin", "/voice/agent.html", base + "/voice/agent.html"},
		{"missing leading slash is tolerated", "voice/agent.html", base + "/voice/agent.html"},
		{"absolute http URL passes through", "http://other.example.com/call.html", "http://other.example.com/call.html"},
		{"absolute https URL passes through", "https://other.example.com/call.html", "https://other.example.com/call.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSurfaceURL(tt.configured, base))
		})
	}
}

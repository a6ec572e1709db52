package httpx

import (
	"testing"
	"time"
)

func TestExternalHTTPClientDefault(t *testing.T) {
	if ExternalHTTPClient() != externalHTTPClient {
		t.Fatal("ExternalHTTPClient must return the shared client")
	}
	if externalHTTPClient.Timeout != defaultExternalHTTPTimeout {
		t.Fatalf("default timeout = %s, want %s", externalHTTPClient.Timeout, defaultExternalHTTPTimeout)
	}
}

func TestConfigureExternalHTTPClient(t *testing.T) {
	original := externalHTTPClient.Timeout
	t.Cleanup(func() { externalHTTPClient.Timeout = original })

	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{seconds: 0, want: defaultExternalHTTPTimeout},
		{seconds: -3, want: defaultExternalHTTPTimeout},
		{seconds: 30, want: 30 * time.Second},
		{seconds: 120, want: 120 * time.Second},
	}
	for _, tt := range tests {
		got := ConfigureExternalHTTPClient(tt.seconds)
		if got != tt.want {
			t.Fatalf("ConfigureExternalHTTPClient(%d) = %s, want %s", tt.seconds, got, tt.want)
		}
		if externalHTTPClient.Timeout != tt.want {
			t.Fatalf("client timeout after %d = %s, want %s", tt.seconds, externalHTTPClient.Timeout, tt.want)
		}
	}
}

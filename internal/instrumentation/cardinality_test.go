package instrumentation

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "/"},
		{"/auth/start", "/auth/start"},
		{"/api/servers", "/api/servers"},
		{"/api/servers/", "/api/servers/"},
		{"/api/servers/6b0c6c1e-2f0a-4a77-9d51-2a1f6f3f6c11", "/api/servers/{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

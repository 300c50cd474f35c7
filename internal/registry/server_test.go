package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_Validate(t *testing.T) {
	tests := []struct {
		name      string
		in        NewServer
		wantField string
		check     func(t *testing.T, n NewServer)
	}{
		{
			name: "stdio drops url",
			in:   NewServer{Name: " files ", Transport: TransportStdio, Command: "npx", Args: []string{"-y", "server"}, URL: "http://ignored"},
			check: func(t *testing.T, n NewServer) {
				assert.Equal(t, "files", n.Name)
				assert.Empty(t, n.URL)
				assert.Equal(t, []string{"-y", "server"}, n.Args)
			},
		},
		{
			name: "sse drops command",
			in:   NewServer{Name: "remote", Transport: TransportSSE, URL: "https://mcp.example.com/sse", Command: "x", Args: []string{"y"}},
			check: func(t *testing.T, n NewServer) {
				assert.Empty(t, n.Command)
				assert.Nil(t, n.Args)
			},
		},
		{name: "missing name", in: NewServer{Transport: TransportStdio, Command: "x"}, wantField: "name"},
		{name: "unknown transport", in: NewServer{Name: "a", Transport: "grpc"}, wantField: "transport"},
		{name: "stdio without command", in: NewServer{Name: "a", Transport: TransportStdio}, wantField: "command"},
		{name: "sse relative url", in: NewServer{Name: "a", Transport: TransportSSE, URL: "/sse"}, wantField: "url"},
		{name: "sse ftp url", in: NewServer{Name: "a", Transport: TransportSSE, URL: "ftp://host/sse"}, wantField: "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.in
			err := n.Validate()
			if tt.wantField != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}
			require.NoError(t, err)
			tt.check(t, n)
		})
	}
}

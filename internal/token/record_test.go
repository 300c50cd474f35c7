package token

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_RecordShape(t *testing.T) {
	b := &Bundle{
		AccessToken:   "ya29.access",
		RefreshToken:  "1//refresh",
		ExpiresAt:     time.UnixMilli(1718000000123),
		GrantedScopes: NewScopeSet("https://www.googleapis.com/auth/gmail.send", "https://www.googleapis.com/auth/gmail.readonly"),
	}

	data, err := Marshal(b)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ya29.access", raw["access_token"])
	assert.Equal(t, "1//refresh", raw["refresh_token"])
	assert.EqualValues(t, 1718000000123, raw["expiry_date"])
	assert.Equal(t, "https://www.googleapis.com/auth/gmail.readonly https://www.googleapis.com/auth/gmail.send", raw["scope"])
	assert.Equal(t, "Bearer", raw["token_type"])

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, b.AccessToken, back.AccessToken)
	assert.True(t, back.ExpiresAt.Equal(b.ExpiresAt))
	assert.Equal(t, b.GrantedScopes, back.GrantedScopes)
}

func TestMarshal_RejectsEmptyBundle(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
	_, err = Marshal(&Bundle{})
	assert.Error(t, err)
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `gmail_tokens=abc`},
		{"wrong types", `{"access_token": 12}`},
		{"missing access token", `{"expiry_date": 1718000000000}`},
		{"missing expiry", `{"access_token": "a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestUnmarshal_OptionalFields(t *testing.T) {
	b, err := Unmarshal([]byte(`{"access_token":"a","expiry_date":1}`))
	require.NoError(t, err)
	assert.Empty(t, b.RefreshToken)
	assert.Empty(t, b.GrantedScopes)
	assert.Equal(t, TypeBearer, b.TokenType)
}

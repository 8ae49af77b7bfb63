package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	maker := NewJWTMaker("test-secret", time.Minute)

	token, err := maker.GenerateToken("user@example.com", "USER", "550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "USER", claims.Role)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", claims.UserUID)
}

func TestParseToken_Invalid(t *testing.T) {
	maker := NewJWTMaker("test-secret", time.Minute)

	tests := []struct {
		name  string
		token func() string
	}{
		{
			name:  "мусор вместо токена",
			token: func() string { return "not-a-token" },
		},
		{
			name: "токен с другим секретом",
			token: func() string {
				other := NewJWTMaker("other-secret", time.Minute)
				tok, err := other.GenerateToken("user@example.com", "USER", "uid")
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "истёкший токен",
			token: func() string {
				expired := NewJWTMaker("test-secret", -time.Minute)
				tok, err := expired.GenerateToken("user@example.com", "USER", "uid")
				require.NoError(t, err)
				return tok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := maker.ParseToken(tt.token())
			require.Error(t, err)
		})
	}
}

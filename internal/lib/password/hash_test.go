package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	tests := []struct {
		name     string
		password string
		compare  string
		wantErr  bool
	}{
		{
			name:     "успешная проверка пароля",
			password: "strong-password-123",
			compare:  "strong-password-123",
			wantErr:  false,
		},
		{
			name:     "неверный пароль",
			password: "strong-password-123",
			compare:  "wrong-password",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			err = CompareHash(hash, tt.compare)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("  Ada  ", " Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, [16]byte{}, [16]byte(u.ID))
	assert.False(t, u.CreatedAt.IsZero())
}

func TestNewUser_Validation(t *testing.T) {
	tests := []struct {
		name, email string
		wantErr     error
	}{
		{"", "a@b.c", ErrEmptyName},
		{"Ada", "not-an-email", ErrInvalidEmail},
		{"Ada", "Ada <ada@example.com>", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			_, err := NewUser(tt.name, tt.email)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		first string
		last  string
	}{
		{"ada.okonkwo@example.com", "Ada", "Okonkwo"},
		{"ada@example.com", "Ada", "User"},
		{"ada_j_okonkwo@example.com", "Ada", "Okonkwo"},
		{"ada+signup@example.com", "Ada", "Signup"},
		{"@example.com", "User", "User"},
		{"", "User", "User"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			first, last := DeriveNameFromEmail(tt.email)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

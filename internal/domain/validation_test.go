package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecipient(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{"Valid email", "test@example.com", nil},
		{"Valid email with subdomain", "user@mail.example.com", nil},
		{"Valid email with plus", "user+tag@example.com", nil},
		{"Invalid - no @", "testexample.com", ErrInvalidEmail},
		{"Invalid - no domain", "test@", ErrInvalidEmail},
		{"Invalid - no local part", "@example.com", ErrInvalidEmail},
		{"Invalid - empty", "", ErrInvalidEmail},
		{"Invalid - only spaces", "   ", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipient(tt.email)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateStoredFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  error
	}{
		{"Valid generated name", "H1_file-1700000000000-12345.png", nil},
		{"Empty", "", ErrEmptyFilename},
		{"Slash", "a/b.png", ErrUnsafeFilename},
		{"Backslash", `a\b.png`, ErrUnsafeFilename},
		{"Dot", ".", ErrUnsafeFilename},
		{"Dot dot", "..", ErrUnsafeFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStoredFilename(tt.filename)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

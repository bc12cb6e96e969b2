package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("clerk@court.example.org"))
	assert.Error(t, ValidateEmail("clerk@"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("w1"))
	assert.NoError(t, ValidateUserID("jane.doe-2"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("-leading"))
	assert.Error(t, ValidateUserID("has space"))
	assert.Error(t, ValidateUserID(strings.Repeat("a", 65)))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Smith v. Jones"))
	assert.Error(t, ValidateTitle("   "))
	assert.NoError(t, ValidateTitle(strings.Repeat("é", MaxTitleLength)))
	assert.Error(t, ValidateTitle(strings.Repeat("é", MaxTitleLength+1)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line one\nline\ttwo", SanitizeString("line one\n\x00line\ttwo\x7f"))
}

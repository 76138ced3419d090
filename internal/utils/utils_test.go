package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(true, "debug")
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewLogger(false, "loud")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
	assert.Len(t, NewID(), 36)
}

type signup struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(signup{Email: "a@b.io", Password: "secret1"}))

	err := Validate(signup{Email: "nope", Password: "x"})
	require.Error(t, err)
	fields := FormatValidationErrors(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Email must be a valid email address", fields[0].Message)
	assert.Equal(t, "Password must be at least 6 characters long", fields[1].Message)
	assert.Equal(t, "Email must be a valid email address; Password must be at least 6 characters long", JoinValidationErrors(err))
}

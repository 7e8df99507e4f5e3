package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	signed, err := svc.Issue("alice")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	actor, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", actor)
}

func TestIssueRequiresActor(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	_, err := svc.Issue("")
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	_, err := svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour)
	verifier := NewService("secret-b", time.Hour)

	signed, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	signed, err := svc.Issue("alice")
	require.NoError(t, err)

	_, err = svc.Validate(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

package services

import (
	"testing"
	"time"

	"livecast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	svc := NewTokenVerifier("test-secret", time.Hour)

	token, err := svc.GenerateToken("user-1", "alice", domain.RoleStaff)
	require.NoError(t, err)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), identity.UserID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, domain.RoleStaff, identity.Role)
}

func TestVerifyNormalizesUnknownRoles(t *testing.T) {
	svc := NewTokenVerifier("test-secret", time.Hour)

	token, err := svc.GenerateToken("user-1", "alice", domain.Role("superuser"))
	require.NoError(t, err)

	identity, err := svc.Verify(token)
	require.NoError(t, err)

	// Unrecognized roles never grant privilege.
	assert.Equal(t, domain.RoleAuthenticatedViewer, identity.Role)
	assert.False(t, identity.Role.Privileged())
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	svc := NewTokenVerifier("test-secret", time.Hour)

	_, err := svc.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenVerifier("secret-a", time.Hour)
	verifier := NewTokenVerifier("secret-b", time.Hour)

	token, err := issuer.GenerateToken("user-1", "alice", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewTokenVerifier("test-secret", -time.Minute)

	token, err := svc.GenerateToken("user-1", "alice", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewTokenVerifier("test-secret", time.Hour)

	_, err := svc.Verify("definitely.not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/hrms-backend/internal/auth/jwt"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/config"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:        "unit-test-secret-at-least-32-bytes!!",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "hrms-test",
	}
}

func TestIssueAndVerify(t *testing.T) {
	m := jwt.NewManager(testConfig())

	pair, err := m.Issue("alice", []string{"HR", "USER"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.ExpiresAt, 5*time.Second)

	claims, err := m.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"HR", "USER"}, claims.Roles)
	assert.Equal(t, "hrms-test", claims.Issuer)

	refresh, err := m.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", refresh.Username)
}

func TestVerifyExpired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessExpiry = -time.Minute
	m := jwt.NewManager(cfg)

	pair, err := m.Issue("bob", []string{"USER"})
	require.NoError(t, err)

	_, err = m.Verify(pair.AccessToken)
	assert.True(t, apperr.Is(err, apperr.ErrTokenExpired), "got %v", err)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := jwt.NewManager(testConfig())
	pair, err := issuer.Issue("carol", []string{"USER"})
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "a-completely-different-signing-key!!"
	_, err = jwt.NewManager(other).Verify(pair.AccessToken)
	assert.True(t, apperr.Is(err, apperr.ErrTokenInvalid), "got %v", err)
}

func TestVerifyGarbage(t *testing.T) {
	m := jwt.NewManager(testConfig())
	_, err := m.Verify("not.a.token")
	assert.True(t, apperr.Is(err, apperr.ErrTokenInvalid))
}

func TestVerifyRejectsRefreshAsAccess(t *testing.T) {
	m := jwt.NewManager(testConfig())
	pair, err := m.Issue("dave", []string{"USER"})
	require.NoError(t, err)

	// A refresh token carries no roles; it still parses as access claims
	// but yields an empty role set, never an elevated one.
	claims, err := m.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)
}

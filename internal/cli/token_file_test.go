package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-tournament-client/internal/infra/api"
)

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizctl", "token")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "role": "admin"}).SignedString([]byte("k"))
	require.NoError(t, err)

	session := api.NewSession()
	require.NoError(t, loadToken(path, session), "a missing file means logged out")
	assert.Empty(t, session.Token())

	require.NoError(t, saveToken(path, token))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, loadToken(path, session))
	assert.Equal(t, "u1", session.UserID())
	assert.True(t, session.IsAdmin())

	require.NoError(t, removeToken(path))
	require.NoError(t, removeToken(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()

	ring := keyring.NewArrayKeyring(nil)
	prev := openRing
	openRing = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openRing = prev })
}

func TestSetGetDelete(t *testing.T) {
	useArrayKeyring(t)

	require.NoError(t, Set("k", "v"))

	got, err := Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	require.NoError(t, Delete("k"))

	_, err = Get("k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPassword(t *testing.T) {
	useArrayKeyring(t)
	t.Setenv(PasswordEnv, "")

	_, err := Password("me@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetPassword("me@example.com", "app-password"))
	pw, err := Password("me@example.com")
	require.NoError(t, err)
	require.Equal(t, "app-password", pw)

	_, err = Password("")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPassword_EnvOverride(t *testing.T) {
	useArrayKeyring(t)
	t.Setenv(PasswordEnv, "from-env")

	pw, err := Password("anyone")
	require.NoError(t, err)
	require.Equal(t, "from-env", pw)
}

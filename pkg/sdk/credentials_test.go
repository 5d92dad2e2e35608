package sdk

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestNewCredentials_ReadsClaims(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{
		"sub":  "2f1e5d6a-3c1b-4d2e-9f0a-1b2c3d4e5f60",
		"role": "physician",
		"exp":  exp.Unix(),
	})

	creds := NewCredentials(token)
	assert.Equal(t, token, creds.AccessToken)
	assert.Equal(t, "Bearer", creds.TokenType)
	assert.Equal(t, "2f1e5d6a-3c1b-4d2e-9f0a-1b2c3d4e5f60", creds.Subject)
	assert.Equal(t, RolePhysician, creds.Role)
	assert.True(t, creds.ExpiresAt.Equal(exp))
	assert.False(t, creds.IsExpired())
}

func TestNewCredentials_OpaqueToken(t *testing.T) {
	creds := NewCredentials("not-a-jwt")
	assert.Equal(t, "not-a-jwt", creds.AccessToken)
	assert.True(t, creds.ExpiresAt.IsZero())
	assert.Empty(t, creds.Subject)
	assert.False(t, creds.IsExpired(), "unknown expiry is never expired")
}

func TestCredentials_IsExpired(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()})
	assert.True(t, NewCredentials(token).IsExpired())
}

func TestCredentialStore(t *testing.T) {
	store := NewCredentialStore()
	assert.Nil(t, store.Get())
	assert.Empty(t, store.Token())

	store.Set(&Credentials{AccessToken: "abc", TokenType: "Bearer"})
	assert.Equal(t, "abc", store.Token())

	got := store.Get()
	require.NotNil(t, got)
	got.AccessToken = "mutated"
	assert.Equal(t, "abc", store.Token(), "Get returns a copy")

	store.Set(&Credentials{})
	assert.Nil(t, store.Get(), "an empty token clears the store")

	store.Set(&Credentials{AccessToken: "def"})
	store.Clear()
	assert.Nil(t, store.Get())

	store.Set(&Credentials{AccessToken: "ghi"})
	store.Set(nil)
	assert.Empty(t, store.Token())
}

func TestCredentialStore_ConditionalWrites(t *testing.T) {
	store := NewCredentialStore()
	store.Set(&Credentials{AccessToken: "a"})
	creds, gen := store.Snapshot()
	require.NotNil(t, creds)
	assert.Equal(t, "a", creds.AccessToken)

	assert.True(t, store.SetIf(gen, &Credentials{AccessToken: "b"}))
	assert.False(t, store.SetIf(gen, &Credentials{AccessToken: "c"}), "stale generation")
	assert.Equal(t, "b", store.Token())

	assert.False(t, store.ClearIf(gen))
	assert.Equal(t, "b", store.Token())

	_, gen = store.Snapshot()
	assert.True(t, store.ClearIf(gen))
	assert.Nil(t, store.Get())
}

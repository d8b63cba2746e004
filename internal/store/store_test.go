package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutRetrieveRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)

	require.NoError(t, s.Put("greeting", "hello"))

	var got string
	ok, err := s.Retrieve("greeting", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", got)
}

func TestRetrieveMissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)

	var got string
	ok, err := s.Retrieve("nope", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put("k", 42))

	s2, err := Open(path)
	require.NoError(t, err)
	var got int
	ok, err := s2.Retrieve("k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, got)
}

func TestDelete(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)
	require.NoError(t, s.Put("k", "v"))
	require.NoError(t, s.Delete("k"))

	var got string
	ok, _ := s.Retrieve("k", &got)
	require.False(t, ok)
}

func TestInMemoryOnlyWhenPathEmpty(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Put("k", "v"))
	var got string
	ok, _ := s.Retrieve("k", &got)
	require.True(t, ok)
}

func TestAPIKeyEncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	blob, err := EncryptAPIKey(key, "sk-super-secret")
	require.NoError(t, err)
	require.NotContains(t, blob, "sk-super-secret")

	plain, err := DecryptAPIKey(key, blob)
	require.NoError(t, err)
	require.Equal(t, "sk-super-secret", plain)
}

func TestDecryptAPIKeyWrongKeyFails(t *testing.T) {
	var key1, key2 [32]byte
	copy(key1[:], "0123456789abcdef0123456789abcdef")
	copy(key2[:], "ffffffffffffffffffffffffffffffff")

	blob, err := EncryptAPIKey(key1, "secret")
	require.NoError(t, err)

	_, err = DecryptAPIKey(key2, blob)
	require.Error(t, err)
}

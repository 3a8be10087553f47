package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBanStore(dir, nil)
	require.NoError(t, err)
	_, err = s.Add("203.0.113.7", "abuse", "admin")
	require.NoError(t, err)
	assert.True(t, s.IsBanned("203.0.113.7"))

	// A fresh store must see the persisted ban.
	reloaded, err := NewBanStore(dir, nil)
	require.NoError(t, err)
	assert.True(t, reloaded.IsBanned("203.0.113.7"))
	assert.Len(t, reloaded.List(), 1)
}

func TestBanStoreNormalizesMappedAddresses(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBanStore(dir, nil)
	require.NoError(t, err)

	_, err = s.Add("::ffff:203.0.113.7", "", "admin")
	require.NoError(t, err)
	assert.True(t, s.IsBanned("203.0.113.7"))
	assert.True(t, s.IsBanned("::ffff:203.0.113.7"))
}

func TestBanStoreUnbanIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBanStore(dir, nil)
	require.NoError(t, err)

	_, err = s.Add("203.0.113.7", "", "admin")
	require.NoError(t, err)
	require.NoError(t, s.Remove("203.0.113.7"))
	assert.False(t, s.IsBanned("203.0.113.7"))

	// Removing again must not fail.
	assert.NoError(t, s.Remove("203.0.113.7"))
	assert.NoError(t, s.Remove("198.51.100.1"))
}

func TestBanStoreCorruptFileFailsLoudly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bans.json"), []byte("{corrupt"), 0644))

	_, err := NewBanStore(dir, nil)
	assert.Error(t, err)
}

func TestOperatorStoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	s, err := NewOperatorStore(dir, nil)
	require.NoError(t, err)

	op, err := s.Add("alice", "hunter2-but-longer")
	require.NoError(t, err)
	assert.NotEmpty(t, op.ID)
	assert.NotEqual(t, "hunter2-but-longer", op.CredentialHash)

	_, err = s.Add("alice", "other")
	assert.ErrorIs(t, err, ErrOperatorExists)

	got, ok := s.Authenticate("alice", "hunter2-but-longer")
	require.True(t, ok)
	assert.Equal(t, op.ID, got.ID)

	_, ok = s.Authenticate("alice", "wrong")
	assert.False(t, ok)
	_, ok = s.Authenticate("bob", "hunter2-but-longer")
	assert.False(t, ok)
}

func TestOperatorStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewOperatorStore(dir, nil)
	require.NoError(t, err)
	op, err := s.Add("alice", "hunter2-but-longer")
	require.NoError(t, err)

	reloaded, err := NewOperatorStore(dir, nil)
	require.NoError(t, err)
	_, ok := reloaded.Authenticate("alice", "hunter2-but-longer")
	assert.True(t, ok)

	_, err = reloaded.Delete(op.ID)
	require.NoError(t, err)
	_, err = reloaded.Delete(op.ID)
	assert.ErrorIs(t, err, ErrOperatorNotFound)
}

func TestOperatorStoreCredentialUpdate(t *testing.T) {
	dir := t.TempDir()
	s, err := NewOperatorStore(dir, nil)
	require.NoError(t, err)
	op, err := s.Add("alice", "old-credential")
	require.NoError(t, err)

	_, err = s.UpdateCredential(op.ID, "new-credential")
	require.NoError(t, err)

	_, ok := s.Authenticate("alice", "old-credential")
	assert.False(t, ok)
	_, ok = s.Authenticate("alice", "new-credential")
	assert.True(t, ok)
}

func TestAliasStoreFallback(t *testing.T) {
	dir := t.TempDir()
	s, err := NewAliasStore(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "01ARZ3ND", s.AliasFor("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	assert.Equal(t, "short", s.AliasFor("short"))

	require.NoError(t, s.Set("01ARZ3NDEKTSV4RRFFQ69G5FAV", "Apollo"))
	assert.Equal(t, "Apollo", s.AliasFor("01ARZ3NDEKTSV4RRFFQ69G5FAV"))

	// Clearing the alias restores the fallback.
	require.NoError(t, s.Set("01ARZ3NDEKTSV4RRFFQ69G5FAV", ""))
	assert.Equal(t, "01ARZ3ND", s.AliasFor("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
}

func TestAliasStorePersists(t *testing.T) {
	dir := t.TempDir()
	s, err := NewAliasStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("ALPHA-1a2b3c4d", "Apollo"))

	reloaded, err := NewAliasStore(dir, nil)
	require.NoError(t, err)
	alias, ok := reloaded.Get("ALPHA-1a2b3c4d")
	require.True(t, ok)
	assert.Equal(t, "Apollo", alias)
}

func TestSettingsStoreDefaultsAndUpdate(t *testing.T) {
	dir := t.TempDir()
	defaults := Settings{ServiceEnabled: true, ExitURL: "https://www.example.com", DefaultEntry: "verify"}

	s, err := NewSettingsStore(dir, defaults, nil)
	require.NoError(t, err)
	assert.Equal(t, defaults, s.Get())

	updated := Settings{ServiceEnabled: false, ExitURL: "https://exit.example.com", DefaultEntry: "verify"}
	require.NoError(t, s.Update(updated))

	reloaded, err := NewSettingsStore(dir, defaults, nil)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded.Get())
}

func TestAtomicWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBanStore(dir, nil)
	require.NoError(t, err)
	_, err = s.Add("203.0.113.7", "", "admin")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "bans.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "bans.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

// SPDX-License-Identifier: MIT

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends that can be exercised hermetically in a temp dir.
func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	badgerStore, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	sqliteStore, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"badger": badgerStore,
		"sqlite": sqliteStore,
		"memory": NewMemory(),
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { require.NoError(t, s.Close()) }()

			// Absent key returns the fallback.
			v, err := s.GetInt(KeyDeposit, 42)
			require.NoError(t, err)
			assert.Equal(t, int64(42), v)

			require.NoError(t, s.SetInt(KeyDeposit, 100))
			require.NoError(t, s.SetInt(KeyItemsSold, 7))

			v, err = s.GetInt(KeyDeposit, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(100), v)

			// Overwrite.
			require.NoError(t, s.SetInt(KeyDeposit, 0))
			v, err = s.GetInt(KeyDeposit, -1)
			require.NoError(t, err)
			assert.Equal(t, int64(0), v)

			v, err = s.GetInt(KeyItemsSold, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(7), v)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetInt(KeyCashBox, 12345))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(dir)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	v, err := s.GetInt(KeyCashBox, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), v)
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetInt(KeyCashBox, 777))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	v, err := s.GetInt(KeyCashBox, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(777), v)
}

func TestOpenFactory(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("bolt", "")
	require.Error(t, err)
}

package bkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	accounts, err := OpenBucket(store, "accounts", Uint64Encoding{}, MsgPackEncoding[Account]{})
	require.NoError(t, err)

	require.NoError(t, store.Update(func(txn *Txn) error {
		_, _, err := Set(txn, accounts, 7, Account{Balance: 100})
		return err
	}))

	require.NoError(t, store.Read(func(txn *Txn) error {
		v, ok, err := Get(txn, accounts, 7)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, Account{Balance: 100}, v)

		_, ok, err = Get(txn, accounts, 8)
		require.NoError(t, err)
		assert.False(t, ok, "missing key is absent, not an error")
		return nil
	}))
}

func TestReadYourWrites(t *testing.T) {
	store := newMemStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	txn, err := store.WriteTxn()
	require.NoError(t, err)
	defer txn.Close()

	_, _, err = Set(txn, words, "a", "1")
	require.NoError(t, err)

	v, ok, err := Get(txn, words, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v, "a staged write must be visible to its own transaction")

	// Not visible to anyone else before commit.
	require.NoError(t, store.Read(func(other *Txn) error {
		_, ok, err := Get(other, words, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestLastWriteWins(t *testing.T) {
	store := newMemStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	// Delete after set removes the key.
	require.NoError(t, store.Update(func(txn *Txn) error {
		_, _, err := Set(txn, words, "a", "1")
		require.NoError(t, err)
		prev, had, err := Delete(txn, words, "a")
		require.NoError(t, err)
		require.True(t, had)
		assert.Equal(t, "1", prev)
		return nil
	}))
	require.NoError(t, store.Read(func(txn *Txn) error {
		_, ok, err := Get(txn, words, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	// Set after delete restores the key.
	require.NoError(t, store.Update(func(txn *Txn) error {
		_, _, err := Set(txn, words, "b", "old")
		return err
	}))
	require.NoError(t, store.Update(func(txn *Txn) error {
		prev, had, err := Delete(txn, words, "b")
		require.NoError(t, err)
		require.True(t, had)
		assert.Equal(t, "old", prev)

		_, had, err = Set(txn, words, "b", "new")
		require.NoError(t, err)
		assert.False(t, had, "previous value was staged-deleted")
		return nil
	}))
	require.NoError(t, store.Read(func(txn *Txn) error {
		v, ok, err := Get(txn, words, "b")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "new", v)
		return nil
	}))
}

func TestSetReturnsPreviousValue(t *testing.T) {
	store := newMemStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	require.NoError(t, store.Update(func(txn *Txn) error {
		prev, had, err := Set(txn, words, "k", "v1")
		require.NoError(t, err)
		assert.False(t, had)
		assert.Zero(t, prev)

		prev, had, err = Set(txn, words, "k", "v2")
		require.NoError(t, err)
		require.True(t, had)
		assert.Equal(t, "v1", prev, "previous value reflects the staged write")
		return nil
	}))

	require.NoError(t, store.Update(func(txn *Txn) error {
		prev, had, err := Set(txn, words, "k", "v3")
		require.NoError(t, err)
		require.True(t, had)
		assert.Equal(t, "v2", prev, "previous value reflects the committed state")
		return nil
	}))
}

func TestTerminalStates(t *testing.T) {
	store := newMemStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	txn, err := store.WriteTxn()
	require.NoError(t, err)
	require.True(t, txn.Active())
	require.NoError(t, txn.Commit())
	require.False(t, txn.Active())

	_, _, err = Get(txn, words, "a")
	assert.ErrorIs(t, err, ErrTxnClosed)
	_, _, err = Set(txn, words, "a", "1")
	assert.ErrorIs(t, err, ErrTxnClosed)
	_, _, err = Delete(txn, words, "a")
	assert.ErrorIs(t, err, ErrTxnClosed)
	assert.ErrorIs(t, txn.Commit(), ErrTxnClosed)

	cur := Scan(txn, words, RawOO())
	assert.False(t, cur.Next())
	assert.ErrorIs(t, cur.Err(), ErrTxnClosed)

	// Abort is idempotent, including after commit.
	txn.Abort()
	txn.Abort()

	rtxn, err := store.ReadTxn()
	require.NoError(t, err)
	_, _, err = Set(rtxn, words, "a", "1")
	assert.ErrorIs(t, err, ErrTxnReadOnly)
	_, _, err = Delete(rtxn, words, "a")
	assert.ErrorIs(t, err, ErrTxnReadOnly)
	require.NoError(t, rtxn.Commit(), "read-only commit is a snapshot release")
}

func TestAbortPurity(t *testing.T) {
	store := newTestStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	require.NoError(t, store.Update(func(txn *Txn) error {
		_, _, err := Set(txn, words, "keep", "yes")
		return err
	}))

	txn, err := store.WriteTxn()
	require.NoError(t, err)
	_, _, err = Set(txn, words, "keep", "clobbered")
	require.NoError(t, err)
	_, _, err = Set(txn, words, "extra", "1")
	require.NoError(t, err)
	_, _, err = Delete(txn, words, "keep")
	require.NoError(t, err)
	txn.Abort()

	require.NoError(t, store.Read(func(txn *Txn) error {
		v, ok, err := Get(txn, words, "keep")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "yes", v)

		_, ok, err = Get(txn, words, "extra")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestImplicitAbortOnClose(t *testing.T) {
	store := newMemStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	func() {
		txn, err := store.WriteTxn()
		require.NoError(t, err)
		defer txn.Close()
		_, _, err = Set(txn, words, "a", "1")
		require.NoError(t, err)
		// No commit: dropping the handle must abort.
	}()

	require.NoError(t, store.Read(func(txn *Txn) error {
		_, ok, err := Get(txn, words, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestSnapshotIsolation(t *testing.T) {
	store := newTestStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	before, err := store.ReadTxn()
	require.NoError(t, err)
	defer before.Close()

	require.NoError(t, store.Update(func(txn *Txn) error {
		_, _, err := Set(txn, words, "a", "1")
		return err
	}))

	// A snapshot taken before the commit never sees it.
	_, ok, err := Get(before, words, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	// A snapshot taken after always does.
	require.NoError(t, store.Read(func(txn *Txn) error {
		v, ok, err := Get(txn, words, "a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1", v)
		return nil
	}))
}

func TestSetThenDeleteScenario(t *testing.T) {
	store := newTestStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	require.NoError(t, store.Update(func(txn *Txn) error {
		if _, _, err := Set(txn, words, "a", "1"); err != nil {
			return err
		}
		_, _, err := Delete(txn, words, "a")
		return err
	}))

	require.NoError(t, store.Read(func(txn *Txn) error {
		_, ok, err := Get(txn, words, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

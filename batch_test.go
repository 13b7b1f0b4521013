package bkv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchApply(t *testing.T) {
	store := newTestStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)
	ids, err := OpenBucket(store, "ids", Uint64Encoding{}, StringEncoding{})
	require.NoError(t, err)

	require.NoError(t, store.Update(func(txn *Txn) error {
		_, _, err := Set(txn, words, "stale", "x")
		return err
	}))

	// One batch can span buckets and mix sets with deletes.
	var b Batch
	BatchSet(&b, words, "a", "1")
	BatchSet(&b, words, "b", "2")
	BatchDelete(&b, words, "stale")
	BatchSet(&b, ids, 7, "seven")
	require.Equal(t, 4, b.Len())
	require.NoError(t, store.Apply(&b))

	require.NoError(t, store.Read(func(txn *Txn) error {
		keys, _ := collect(t, Scan(txn, words, RawOO()))
		assert.Equal(t, []string{"a", "b"}, keys)

		v, ok, err := Get(txn, ids, 7)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "seven", v)
		return nil
	}))
}

func TestBatchOrderLastWriteWins(t *testing.T) {
	store := newMemStore(t)
	words, err := OpenBucket(store, "words", StringEncoding{}, StringEncoding{})
	require.NoError(t, err)

	var b Batch
	BatchSet(&b, words, "k", "first")
	BatchSet(&b, words, "k", "second")
	BatchDelete(&b, words, "gone")
	BatchSet(&b, words, "gone", "back")
	require.NoError(t, store.Apply(&b))

	require.NoError(t, store.Read(func(txn *Txn) error {
		v, _, err := Get(txn, words, "k")
		require.NoError(t, err)
		assert.Equal(t, "second", v)

		v, ok, err := Get(txn, words, "gone")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "back", v)
		return nil
	}))
}

func TestBatchAtomicOnEncodeFailure(t *testing.T) {
	store := newMemStore(t)
	stuff, err := OpenBucket(store, "stuff", StringEncoding{}, JSONEncoding[any]{})
	require.NoError(t, err)

	var b Batch
	BatchSet[string, any](&b, stuff, "good", "fine")
	BatchSet[string, any](&b, stuff, "bad", math.NaN()) // JSON cannot encode NaN

	err = store.Apply(&b)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)

	// The failing entry aborts the whole batch: nothing became visible.
	require.NoError(t, store.Read(func(txn *Txn) error {
		_, ok, err := Get(txn, stuff, "good")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

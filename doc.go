/*
Package bkv is a typed, transactional layer over an embedded ordered
key-value engine (Bolt by default, with a transient in-memory engine for
tests and caches).

We implement:

1. Buckets, named partitions of the keyspace, each bound at construction to
one key type and one value type via a pair of encodings.

2. Transactions, read-only or read-write, through which all bucket access
happens. Read-write transactions stage operations privately and apply them
atomically on commit, with optimistic conflict detection.

3. Batches, ordered lists of writes applied as a single transaction.

4. Encodings, converting typed keys and values to ordered byte strings.
Integer keys encode as fixed-width big-endian bytes, so scanning in byte
order is scanning in numeric order; string and byte keys are stored as-is.

# Usage

	cfg := bkv.Config{Path: "/var/data/app.db"}
	store, err := bkv.Open(cfg, bkv.Options{})
	if err != nil { ... }
	defer store.Close()

	accounts, err := bkv.OpenBucket(store, "accounts",
		bkv.Uint64Encoding{}, bkv.MsgPackEncoding[Account]{})
	if err != nil { ... }

	err = store.Update(func(txn *bkv.Txn) error {
		_, _, err := bkv.Set(txn, accounts, 1, Account{Balance: 100})
		return err
	})

	err = store.Read(func(txn *bkv.Txn) error {
		cur := bkv.Scan(txn, accounts, bkv.RawOO())
		for cur.Next() {
			fmt.Println(cur.Key(), cur.Value())
		}
		return cur.Err()
	})

# Concurrency

One Store owns one engine connection. Read-only transactions run against
stable snapshots and never block anyone. Read-write transactions race: each
stages against its own snapshot, and the first to commit a given key wins;
a later Commit fails with ErrConflict and has no effect. Retrying is always
the caller's decision; Store.RetryConflicts is the explicit bounded loop for
it:

	err = store.RetryConflicts(5, func(txn *bkv.Txn) error {
		v, _, err := bkv.Get(txn, counters, "hits")
		if err != nil {
			return err
		}
		_, _, err = bkv.Set(txn, counters, "hits", v+1)
		return err
	})

# Errors

A missing key is an absent value, never an error. Decode failures surface as
*EncodingError and abort the enclosing read. Operations on a committed or
aborted transaction fail with ErrTxnClosed. Nothing is retried internally.
*/
package bkv

package bkv

// Batch is an ordered list of write operations built up front and applied as
// a single implicit read-write transaction. It is independent of any open
// transaction until applied. A batch can span multiple buckets.
type Batch struct {
	entries []func(txn *Txn) error
}

// Len returns the number of operations in the batch.
func (b *Batch) Len() int {
	return len(b.entries)
}

// BatchSet appends a set operation. Encoding happens at Apply time, inside
// the implicit transaction, so an entry that fails to encode aborts the whole
// batch with no partial effect.
func BatchSet[K, V any](b *Batch, bucket *Bucket[K, V], key K, value V) {
	b.entries = append(b.entries, func(txn *Txn) error {
		_, _, err := Set(txn, bucket, key, value)
		return err
	})
}

// BatchDelete appends a delete operation.
func BatchDelete[K, V any](b *Batch, bucket *Bucket[K, V], key K) {
	b.entries = append(b.entries, func(txn *Txn) error {
		_, _, err := Delete(txn, bucket, key)
		return err
	})
}

// Apply runs the batch as one transaction: stages entries in list order and
// commits. Any encoding or conflict failure surfaces once for the whole
// batch, and nothing becomes visible to subsequent readers.
func (s *Store) Apply(b *Batch) error {
	return s.Update(func(txn *Txn) error {
		for _, entry := range b.entries {
			if err := entry(txn); err != nil {
				return err
			}
		}
		return nil
	})
}

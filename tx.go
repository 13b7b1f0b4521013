package bkv

// Txn is an atomic, isolated unit of reads and writes against one Store.
// A read-only transaction sees a stable snapshot of the committed state. A
// read-write transaction additionally stages set/delete operations in order,
// invisible to everyone else until Commit applies them as one unit.
//
// A Txn is used by one goroutine at a time; concurrent work needs separate
// transactions on the same store.
type Txn struct {
	store    *Store
	snap     snapshot
	writable bool
	done     bool

	staged map[string]*rawOp // keyed by (partition, encoded key)
	order  []*rawOp
}

// Writable reports whether this transaction accepts Set and Delete.
func (txn *Txn) Writable() bool {
	return txn.writable
}

// Active reports whether the transaction has not yet committed or aborted.
func (txn *Txn) Active() bool {
	return !txn.done
}

// Commit applies every staged operation atomically. It fails with ErrConflict
// when another transaction committed any of the staged keys after this
// transaction's snapshot was taken; nothing takes effect in that case and the
// caller may retry. For a read-only transaction, Commit just releases the
// snapshot.
func (txn *Txn) Commit() error {
	if txn.done {
		return ErrTxnClosed
	}
	txn.done = true
	snapSeq := txn.snap.Seq()
	relErr := txn.snap.Release()
	if !txn.writable || len(txn.order) == 0 {
		return relErr
	}
	ops := make([]rawOp, len(txn.order))
	for i, op := range txn.order {
		ops[i] = *op
	}
	txn.staged = nil
	txn.order = nil
	if _, err := txn.store.eng.Apply(snapSeq, ops); err != nil {
		return err
	}
	return relErr
}

// Abort discards every staged operation and releases the snapshot. Idempotent;
// a transaction that is dropped without Commit is aborted, so partial writes
// can never become visible.
func (txn *Txn) Abort() {
	if txn.done {
		return
	}
	txn.done = true
	txn.snap.Release()
	txn.staged = nil
	txn.order = nil
}

// Close aborts the transaction unless it has already committed or aborted.
// Meant for defer right after opening.
func (txn *Txn) Close() {
	txn.Abort()
}

// Get returns the value for key, or ok=false when absent. In a read-write
// transaction it sees this transaction's own staged writes first, then falls
// back to the snapshot.
func Get[K, V any](txn *Txn, b *Bucket[K, V], key K) (value V, ok bool, err error) {
	var zero V
	if txn.done {
		return zero, false, ErrTxnClosed
	}
	kb, err := b.keyEnc.Append(nil, key)
	if err != nil {
		return zero, false, err
	}
	return getRaw(txn, b, kb)
}

func getRaw[K, V any](txn *Txn, b *Bucket[K, V], kb []byte) (V, bool, error) {
	var zero V
	if txn.writable {
		if op, found := txn.staged[opKey(b.name, kb)]; found {
			if op.delete {
				return zero, false, nil
			}
			v, err := b.decodeValue(op.value)
			if err != nil {
				return zero, false, err
			}
			return v, true, nil
		}
	}
	raw, err := txn.snap.Get(b.name, kb)
	if err != nil {
		return zero, false, err
	}
	if raw == nil {
		return zero, false, nil
	}
	v, err := b.decodeValue(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Set stages a write and returns the previously visible value, if any. Legal
// only in an active read-write transaction. A later Set or Delete of the same
// key in this transaction supersedes it.
func Set[K, V any](txn *Txn, b *Bucket[K, V], key K, value V) (prev V, hadPrev bool, err error) {
	var zero V
	if txn.done {
		return zero, false, ErrTxnClosed
	}
	if !txn.writable {
		return zero, false, ErrTxnReadOnly
	}
	kb, err := b.keyEnc.Append(nil, key)
	if err != nil {
		return zero, false, err
	}
	vb, err := b.valEnc.Append(nil, value)
	if err != nil {
		return zero, false, err
	}
	prev, hadPrev, err = getRaw(txn, b, kb)
	if err != nil {
		return zero, false, err
	}
	txn.stage(rawOp{partition: b.name, key: kb, value: vb})
	return prev, hadPrev, nil
}

// Delete stages a removal and returns the previously visible value, if any.
// Legal only in an active read-write transaction. Deleting an absent key is
// not an error.
func Delete[K, V any](txn *Txn, b *Bucket[K, V], key K) (prev V, hadPrev bool, err error) {
	var zero V
	if txn.done {
		return zero, false, ErrTxnClosed
	}
	if !txn.writable {
		return zero, false, ErrTxnReadOnly
	}
	kb, err := b.keyEnc.Append(nil, key)
	if err != nil {
		return zero, false, err
	}
	prev, hadPrev, err = getRaw(txn, b, kb)
	if err != nil {
		return zero, false, err
	}
	txn.stage(rawOp{partition: b.name, key: kb, delete: true})
	return prev, hadPrev, nil
}

// stage records an operation, reconciling with any earlier staged operation
// on the same key: the latest one wins.
func (txn *Txn) stage(op rawOp) {
	k := opKey(op.partition, op.key)
	if existing, found := txn.staged[k]; found {
		existing.value = op.value
		existing.delete = op.delete
		return
	}
	p := new(rawOp)
	*p = op
	txn.staged[k] = p
	txn.order = append(txn.order, p)
}

package bkv

// rawOp is one pending operation of a write transaction, fully encoded.
type rawOp struct {
	partition string
	key       []byte
	value     []byte
	delete    bool
}

// engine is the ordered byte-store this layer runs on (Bolt, in-memory, ...).
// It must provide stable read snapshots and an atomic ordered apply with
// first-committer-wins conflict detection. The engine's on-disk format,
// compaction and locking are its own business.
type engine interface {
	// Snapshot opens a stable read view of the committed state.
	Snapshot() (snapshot, error)

	// Apply atomically applies ops in order. It fails with ErrConflict when
	// any op's key was committed after the sequence number snapSeq, in which
	// case no op takes effect. Returns the commit sequence on success.
	Apply(snapSeq uint64, ops []rawOp) (uint64, error)

	// CreatePartition ensures the named partition exists.
	CreatePartition(name string) error

	// Flush syncs committed data to stable storage.
	Flush() error

	// Close releases the engine connection.
	Close() error
}

// snapshot is a stable read view. Readers never block writers or each other.
type snapshot interface {
	// Seq returns the commit sequence this snapshot observes.
	Seq() uint64

	// Get retrieves a value by key. Returns nil, nil if not found.
	Get(partition string, key []byte) ([]byte, error)

	// Cursor returns a cursor over the partition, or nil if the partition
	// does not exist in this snapshot.
	Cursor(partition string) rawCursor

	// Release frees the snapshot. Safe to call multiple times.
	Release() error
}

// rawCursor iterates over a sorted partition. Positioning calls return
// nil, nil past either end; Err reports a value read failure, after which the
// cursor is exhausted.
type rawCursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Last moves to the last key-value pair.
	Last() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// SeekLast moves to the last key that starts with the given prefix,
	// or the last key overall for an empty prefix.
	SeekLast(prefix []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Prev moves to the previous key-value pair.
	Prev() (key, value []byte)

	// Err returns the first value read failure encountered, if any.
	Err() error
}

package bkv

import (
	"errors"
	"log/slog"
	"reflect"
	"sync"
)

// Store owns the single live engine connection and the bucket registry. All
// reads and writes go through transactions created by ReadTxn and WriteTxn.
type Store struct {
	eng    engine
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucketInfo
	widths  map[string]int
	closed  bool
}

// Options tweak store behavior beyond the Config.
type Options struct {
	Logger *slog.Logger
}

// bucketInfo pins the type binding of an opened bucket so a second open of
// the same name under different types fails at construction time.
type bucketInfo struct {
	keyType   reflect.Type
	valueType reflect.Type
	keyEnc    reflect.Type
	valueEnc  reflect.Type
}

// Open validates the config, connects to the engine and creates the declared
// partitions. Path problems surface as wrapped I/O errors; a store held by
// another process in an incompatible mode surfaces as *OpenError.
func Open(cfg Config, opt Options) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var eng engine
	var err error
	switch cfg.Engine {
	case "memory":
		eng = newMemEngine()
	default:
		eng, err = openBoltEngine(&cfg)
		if err != nil {
			return nil, err
		}
	}

	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		eng:     eng,
		cfg:     cfg,
		logger:  logger,
		buckets: make(map[string]*bucketInfo),
		widths:  make(map[string]int),
	}
	for i := range cfg.Buckets {
		s.widths[cfg.Buckets[i].Name] = cfg.Buckets[i].KeyWidth
	}

	if !cfg.ReadOnly {
		if err := eng.CreatePartition(DefaultBucketName); err != nil {
			eng.Close()
			return nil, err
		}
		for i := range cfg.Buckets {
			if err := eng.CreatePartition(cfg.Buckets[i].Name); err != nil {
				eng.Close()
				return nil, err
			}
		}
	}

	return s, nil
}

// ReadTxn opens a read-only transaction against a stable snapshot.
func (s *Store) ReadTxn() (*Txn, error) {
	return s.newTxn(false)
}

// WriteTxn opens a read-write transaction. Writes are staged privately and
// applied atomically by Commit.
func (s *Store) WriteTxn() (*Txn, error) {
	if s.cfg.ReadOnly {
		return nil, ErrReadOnly
	}
	return s.newTxn(true)
}

func (s *Store) newTxn(writable bool) (*Txn, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStoreClosed
	}
	snap, err := s.eng.Snapshot()
	if err != nil {
		return nil, err
	}
	txn := &Txn{store: s, snap: snap, writable: writable}
	if writable {
		txn.staged = make(map[string]*rawOp)
	}
	return txn, nil
}

// Read runs f in a read-only transaction.
func (s *Store) Read(f func(txn *Txn) error) error {
	txn, err := s.ReadTxn()
	if err != nil {
		return err
	}
	defer txn.Close()
	return f(txn)
}

// Update runs f in a read-write transaction and commits unless f fails.
// A failure from f or from Commit leaves the store untouched. Update never
// retries; see RetryConflicts.
func (s *Store) Update(f func(txn *Txn) error) error {
	txn, err := s.WriteTxn()
	if err != nil {
		return err
	}
	defer txn.Close()
	if err := f(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// RetryConflicts runs Update up to attempts times, retrying only on
// ErrConflict. This is the explicit bounded retry loop for optimistic
// conflicts; nothing retries implicitly.
func (s *Store) RetryConflicts(attempts int, f func(txn *Txn) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = s.Update(f)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}

// Flush syncs committed data to stable storage.
func (s *Store) Flush() error {
	return s.eng.Flush()
}

// Close releases the engine connection. Idempotent. Transactions still open
// become unusable.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.eng.Close()
}

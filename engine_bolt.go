package bkv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

type boltEngine struct {
	bdb     *bbolt.DB
	commits *commitTable
	codec   valueCodec
	framed  bool
}

func openBoltEngine(cfg *Config) (engine, error) {
	codec, err := codecByName(cfg.Compression)
	if err != nil {
		return nil, err
	}

	if !cfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o777); err != nil {
			return nil, fmt.Errorf("bkv: %w", err)
		}
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.ReadOnly = cfg.ReadOnly
	bopt.NoSync = cfg.NoSync
	if cfg.InitialMmapSize != 0 {
		bopt.InitialMmapSize = cfg.InitialMmapSize
	}

	bdb, err := bbolt.Open(cfg.Path, 0o666, &bopt)
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, &OpenError{Path: cfg.Path, Err: err}
		}
		return nil, fmt.Errorf("bkv: %w", err)
	}

	return &boltEngine{
		bdb:     bdb,
		commits: newCommitTable(),
		codec:   codec,
		framed:  codec != codecRaw,
	}, nil
}

func (e *boltEngine) Snapshot() (snapshot, error) {
	var btx *bbolt.Tx
	seq, err := e.commits.beginSnapshot(func() error {
		var err error
		btx, err = e.bdb.Begin(false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &boltSnapshot{eng: e, btx: btx, seq: seq}, nil
}

func (e *boltEngine) Apply(snapSeq uint64, ops []rawOp) (uint64, error) {
	return e.commits.commit(snapSeq, ops, func() error {
		return e.bdb.Update(func(btx *bbolt.Tx) error {
			for i := range ops {
				op := &ops[i]
				b, err := btx.CreateBucketIfNotExists([]byte(op.partition))
				if err != nil {
					return err
				}
				if op.delete {
					if err := b.Delete(op.key); err != nil {
						return err
					}
				} else {
					v := op.value
					if e.framed {
						v = compressValue(e.codec, v)
					}
					if err := b.Put(op.key, v); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

func (e *boltEngine) CreatePartition(name string) error {
	return e.bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

func (e *boltEngine) Flush() error {
	return e.bdb.Sync()
}

func (e *boltEngine) Close() error {
	return e.bdb.Close()
}

type boltSnapshot struct {
	eng *boltEngine
	btx *bbolt.Tx
	seq uint64
}

func (s *boltSnapshot) Seq() uint64 { return s.seq }

func (s *boltSnapshot) Get(partition string, key []byte) ([]byte, error) {
	b := s.btx.Bucket([]byte(partition))
	if b == nil {
		return nil, nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, nil
	}
	if s.eng.framed {
		return decompressValue(v)
	}
	return v, nil
}

func (s *boltSnapshot) Cursor(partition string) rawCursor {
	b := s.btx.Bucket([]byte(partition))
	if b == nil {
		return nil
	}
	return &boltCursor{c: b.Cursor(), framed: s.eng.framed}
}

func (s *boltSnapshot) Release() error {
	// The only error Rollback returns is ErrTxClosed, which just means the
	// snapshot was already released.
	err := s.btx.Rollback()
	if err != nil && err != bbolt.ErrTxClosed {
		return err
	}
	return nil
}

type boltCursor struct {
	c      *bbolt.Cursor
	framed bool
	err    error
}

func (c *boltCursor) ret(k, v []byte) ([]byte, []byte) {
	if c.err != nil {
		return nil, nil
	}
	if k == nil {
		return nil, nil
	}
	if c.framed {
		var err error
		v, err = decompressValue(v)
		if err != nil {
			c.err = err
			return nil, nil
		}
	}
	return k, v
}

func (c *boltCursor) First() ([]byte, []byte) { return c.ret(c.c.First()) }

func (c *boltCursor) Last() ([]byte, []byte) { return c.ret(c.c.Last()) }

func (c *boltCursor) Seek(seek []byte) ([]byte, []byte) { return c.ret(c.c.Seek(seek)) }

func (c *boltCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.ret(c.c.Last())
	}

	limit := append([]byte(nil), prefix...)
	if inc(limit) {
		k, _ := c.c.Seek(limit)
		if k == nil {
			return c.ret(c.c.Last())
		}
		return c.ret(c.c.Prev())
	}

	// All-0xFF prefix: everything from the seek point onward matches.
	k, _ := c.c.Seek(prefix)
	if k == nil {
		return nil, nil
	}
	return c.ret(c.c.Last())
}

func (c *boltCursor) Next() ([]byte, []byte) { return c.ret(c.c.Next()) }

func (c *boltCursor) Prev() ([]byte, []byte) { return c.ret(c.c.Prev()) }

func (c *boltCursor) Err() error { return c.err }

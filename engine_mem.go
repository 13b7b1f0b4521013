package bkv

import (
	"bytes"
	"slices"
	"sort"
	"sync"
)

// memEngine is a transient in-memory engine, useful for tests and caches.
// Snapshots clone the whole keyspace (simplicity over efficiency); Apply
// mutates the live state under the commit lock.
type memEngine struct {
	mu      sync.Mutex
	parts   map[string]*memPartition
	commits *commitTable
	closed  bool
}

func newMemEngine() engine {
	return &memEngine{
		parts:   make(map[string]*memPartition),
		commits: newCommitTable(),
	}
}

func (e *memEngine) Snapshot() (snapshot, error) {
	var snap map[string]*memPartition
	seq, err := e.commits.beginSnapshot(func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return ErrStoreClosed
		}
		snap = make(map[string]*memPartition, len(e.parts))
		for name, p := range e.parts {
			snap[name] = p.clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &memSnapshot{parts: snap, seq: seq}, nil
}

func (e *memEngine) Apply(snapSeq uint64, ops []rawOp) (uint64, error) {
	return e.commits.commit(snapSeq, ops, func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return ErrStoreClosed
		}
		for i := range ops {
			op := &ops[i]
			p := e.parts[op.partition]
			if p == nil {
				p = &memPartition{}
				e.parts[op.partition] = p
			}
			if op.delete {
				p.remove(op.key)
			} else {
				p.put(op.key, op.value)
			}
		}
		return nil
	})
}

func (e *memEngine) CreatePartition(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStoreClosed
	}
	if e.parts[name] == nil {
		e.parts[name] = &memPartition{}
	}
	return nil
}

func (e *memEngine) Flush() error { return nil }

func (e *memEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.parts = nil
	return nil
}

type memKV struct {
	key   []byte
	value []byte
}

type memPartition struct {
	items []memKV // sorted by key
}

func (p *memPartition) clone() *memPartition {
	out := &memPartition{items: make([]memKV, len(p.items))}
	copy(out.items, p.items)
	return out
}

func (p *memPartition) find(key []byte) (idx int, ok bool) {
	items := p.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

func (p *memPartition) put(key, value []byte) {
	key = slices.Clone(key)
	value = slices.Clone(value)
	i, ok := p.find(key)
	if ok {
		p.items[i] = memKV{key: key, value: value}
		return
	}
	p.items = slices.Insert(p.items, i, memKV{key: key, value: value})
}

func (p *memPartition) remove(key []byte) {
	i, ok := p.find(key)
	if !ok {
		return
	}
	p.items = slices.Delete(p.items, i, i+1)
}

type memSnapshot struct {
	parts map[string]*memPartition
	seq   uint64
}

func (s *memSnapshot) Seq() uint64 { return s.seq }

func (s *memSnapshot) Get(partition string, key []byte) ([]byte, error) {
	p := s.parts[partition]
	if p == nil {
		return nil, nil
	}
	i, ok := p.find(key)
	if !ok {
		return nil, nil
	}
	return p.items[i].value, nil
}

func (s *memSnapshot) Cursor(partition string) rawCursor {
	p := s.parts[partition]
	if p == nil {
		return nil
	}
	return &memCursor{p: p, pos: -1}
}

func (s *memSnapshot) Release() error { return nil }

type memCursor struct {
	p   *memPartition
	pos int
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.current()
}

func (c *memCursor) Last() ([]byte, []byte) {
	c.pos = len(c.p.items) - 1
	return c.current()
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	items := c.p.items
	c.pos = sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, seek) >= 0
	})
	return c.current()
}

func (c *memCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.Last()
	}

	limit := append([]byte(nil), prefix...)
	if inc(limit) {
		items := c.p.items
		i := sort.Search(len(items), func(i int) bool {
			return bytes.Compare(items[i].key, limit) >= 0
		})
		c.pos = i - 1
		return c.current()
	}

	// All-0xFF prefix.
	return c.Last()
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < 0 {
		return c.First()
	}
	c.pos++
	return c.current()
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos < 0 {
		return nil, nil
	}
	c.pos--
	return c.current()
}

func (c *memCursor) current() ([]byte, []byte) {
	if c.pos < 0 || c.pos >= len(c.p.items) {
		return nil, nil
	}
	kv := c.p.items[c.pos]
	return kv.key, kv.value
}

func (c *memCursor) Err() error { return nil }

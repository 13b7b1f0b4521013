package bkv

import "sync"

const partitionSep = "\x00"

// commitTable tracks the commit sequence of every key written during the
// process lifetime, backing optimistic first-committer-wins validation.
// Sound under single-process ownership: all writes flow through this layer.
type commitTable struct {
	mu   sync.Mutex
	seq  uint64
	keys map[string]uint64
}

func newCommitTable() *commitTable {
	return &commitTable{keys: make(map[string]uint64)}
}

func opKey(partition string, key []byte) string {
	return partition + partitionSep + string(key)
}

// beginSnapshot runs open under the table lock and returns the sequence the
// resulting snapshot observes. Pairing the two under one lock keeps the
// sequence consistent with the engine view even when a commit races.
func (t *commitTable) beginSnapshot(open func() error) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := open(); err != nil {
		return 0, err
	}
	return t.seq, nil
}

// commit validates ops against snapSeq, then runs apply and records the new
// commit sequence for every written key. Fails with ErrConflict when any key
// was committed past snapSeq; apply is not called in that case.
func (t *commitTable) commit(snapSeq uint64, ops []rawOp, apply func() error) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range ops {
		if t.keys[opKey(ops[i].partition, ops[i].key)] > snapSeq {
			return 0, ErrConflict
		}
	}
	if err := apply(); err != nil {
		return 0, err
	}
	t.seq++
	for i := range ops {
		t.keys[opKey(ops[i].partition, ops[i].key)] = t.seq
	}
	return t.seq, nil
}

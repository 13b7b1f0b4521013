package bkv

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
)

const debugLogRawScans = false

// RawRange defines a range of encoded keys. The constructors use mnemonics:
// O means open, I means inclusive, E means exclusive; the first letter is for
// the lower bound, the second for the upper bound. Bounds are raw bytes;
// build them with Bucket.EncodeKey.
type RawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func RawOO() RawRange            { return RawRange{} }
func RawIO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: false} }
func RawOI(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: false} }
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawIE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RawEI(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: true}
}
func RawEE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: false}
}
func RawPrefix(p []byte) RawRange                { return RawRange{Prefix: p} }
func (rang RawRange) Prefixed(p []byte) RawRange { rang.Prefix = p; return rang }
func (rang RawRange) Reversed() RawRange         { rang.Reverse = true; return rang }

func (r *RawRange) start(bcur rawCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	var skipInitial bool
	if r.Reverse {
		if upper := r.Upper; upper != nil {
			if r.Prefix != nil && !bytes.HasPrefix(upper, r.Prefix) {
				panic("upper bound does not match prefix")
			}
			limit := append([]byte(nil), upper...)
			if inc(limit) {
				k, v = bcur.Seek(limit)
				if k == nil {
					k, v = bcur.Last()
				} else {
					k, v = bcur.Prev()
				}
			} else {
				// All-0xFF upper bound: only keys extending it sort above.
				k, v = bcur.Last()
			}
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper", hexAttr("upper", upper), hexAttr("key", k))
			}
			// The landing key can still extend the bound; step back to the
			// first key actually within it.
			for k != nil {
				cmp := bytes.Compare(k, upper)
				if cmp < 0 || (cmp == 0 && r.UpperInc) {
					break
				}
				k, v = bcur.Prev()
			}
		} else if r.Prefix != nil {
			k, v = bcur.SeekLast(r.Prefix)
		} else {
			k, v = bcur.Last()
		}
	} else {
		lower := r.Lower
		if lower != nil {
			skipInitial = !r.LowerInc
			if r.Prefix != nil && !bytes.HasPrefix(lower, r.Prefix) {
				panic("lower bound does not match prefix")
			}
		} else if r.Prefix != nil {
			lower = r.Prefix
		}
		if lower != nil {
			k, v = bcur.Seek(lower)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", lower), hexAttr("key", k))
			}
			if skipInitial && !bytes.Equal(k, lower) {
				skipInitial = false
			}
		} else {
			k, v = bcur.First()
		}
	}
	if k != nil && r.match(k) {
		if skipInitial {
			return r.next(bcur, logger)
		} else {
			return k, v
		}
	} else {
		return nil, nil
	}
}

func (r *RawRange) next(bcur rawCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = bcur.Prev()
	} else {
		k, v = bcur.Next()
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "ADVANCE", hexAttr("key", k))
	}
	if k != nil && r.match(k) {
		return k, v
	} else {
		return nil, nil
	}
}

// match checks only the bound the scan direction runs into; the opposite
// bound is enforced by the starting seek.
func (r *RawRange) match(k []byte) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		return false
	}
	if r.Reverse {
		if lower := r.Lower; lower != nil {
			cmp := bytes.Compare(k, lower)
			if cmp == -1 || (cmp == 0 && !r.LowerInc) {
				return false
			}
		}
	} else {
		if upper := r.Upper; upper != nil {
			cmp := bytes.Compare(k, upper)
			if cmp == 1 || (cmp == 0 && !r.UpperInc) {
				return false
			}
		}
	}
	return true
}

// contains checks full membership, both bounds regardless of direction. Used
// to filter staged keys into a scan.
func (r *RawRange) contains(k []byte) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		return false
	}
	if l := r.Lower; l != nil {
		cmp := bytes.Compare(k, l)
		if cmp < 0 || (cmp == 0 && !r.LowerInc) {
			return false
		}
	}
	if u := r.Upper; u != nil {
		cmp := bytes.Compare(k, u)
		if cmp > 0 || (cmp == 0 && !r.UpperInc) {
			return false
		}
	}
	return true
}

// rawScanCursor merges the snapshot scan with the transaction's staged
// operations: a staged set overrides or inserts an entry, a staged delete
// hides one.
type rawScanCursor struct {
	rang   RawRange
	bcur   rawCursor // nil when the partition does not exist in the snapshot
	logger *slog.Logger
	staged []rawOp // sorted in scan direction, filtered to the range

	si      int
	rk, rv  []byte
	rdone   bool
	started bool
	k, v    []byte
}

func (c *rawScanCursor) advanceCommitted() {
	if c.bcur == nil {
		c.rdone = true
		return
	}
	if !c.started {
		c.rk, c.rv = c.rang.start(c.bcur, c.logger)
	} else {
		c.rk, c.rv = c.rang.next(c.bcur, c.logger)
	}
	c.rdone = c.rk == nil
}

func (c *rawScanCursor) Next() bool {
	if !c.started {
		c.advanceCommitted()
		c.started = true
	}
	for {
		if c.rdone && c.si >= len(c.staged) {
			c.k, c.v = nil, nil
			return false
		}
		var takeStaged bool
		switch {
		case c.rdone:
			takeStaged = true
		case c.si >= len(c.staged):
			takeStaged = false
		default:
			cmp := bytes.Compare(c.rk, c.staged[c.si].key)
			if c.rang.Reverse {
				cmp = -cmp
			}
			if cmp == 0 {
				// Staged op supersedes the committed entry under the same key.
				c.advanceCommitted()
				takeStaged = true
			} else {
				takeStaged = cmp > 0
			}
		}
		if takeStaged {
			op := &c.staged[c.si]
			c.si++
			if op.delete {
				continue
			}
			c.k, c.v = op.key, op.value
			return true
		}
		c.k, c.v = c.rk, c.rv
		c.advanceCommitted()
		return true
	}
}

func (c *rawScanCursor) err() error {
	if c.bcur != nil {
		return c.bcur.Err()
	}
	return nil
}

// Cursor lazily yields (key, value) pairs in byte order of encoded keys,
// ascending or descending per the range. Each entry is decoded on Next; an
// undecodable entry stops the cursor with Err set, without invalidating
// anything yielded before it.
type Cursor[K, V any] struct {
	bucket *Bucket[K, V]
	raw    *rawScanCursor
	key    K
	value  V
	err    error
}

// Scan opens a cursor over the bucket within the given range. In a read-write
// transaction the scan reflects this transaction's staged operations. Every
// call produces a fresh cursor positioned before the first entry.
func Scan[K, V any](txn *Txn, b *Bucket[K, V], rang RawRange) *Cursor[K, V] {
	c := &Cursor[K, V]{bucket: b}
	if txn.done {
		c.err = ErrTxnClosed
		return c
	}
	raw := &rawScanCursor{rang: rang, logger: txn.store.logger}
	raw.bcur = txn.snap.Cursor(b.name)
	if txn.writable {
		for _, op := range txn.order {
			if op.partition == b.name && rang.contains(op.key) {
				raw.staged = append(raw.staged, *op)
			}
		}
		sort.Slice(raw.staged, func(i, j int) bool {
			cmp := bytes.Compare(raw.staged[i].key, raw.staged[j].key)
			if rang.Reverse {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	c.raw = raw
	return c
}

// Next advances to the next entry. Returns false at the end of the range or
// on error; check Err to tell the two apart.
func (c *Cursor[K, V]) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.raw.Next() {
		c.err = c.raw.err()
		return false
	}
	k, err := c.bucket.decodeKey(c.raw.k)
	if err != nil {
		c.err = err
		return false
	}
	v, err := c.bucket.decodeValue(c.raw.v)
	if err != nil {
		c.err = err
		return false
	}
	c.key, c.value = k, v
	return true
}

// Key returns the key of the current entry.
func (c *Cursor[K, V]) Key() K { return c.key }

// Value returns the value of the current entry.
func (c *Cursor[K, V]) Value() V { return c.value }

// Err returns the error that stopped the cursor, if any.
func (c *Cursor[K, V]) Err() error { return c.err }

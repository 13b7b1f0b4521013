package bkv

import (
	"reflect"
	"strings"
)

// DefaultBucketName is the reserved partition used when a bucket is opened
// with an empty name.
const DefaultBucketName = "default"

// Bucket is an immutable typed handle on one named partition. It binds a key
// encoding and a value encoding once, at construction; every entry in the
// partition is encoded the same way. A bucket exposes no reads or writes of
// its own: all access goes through a transaction.
//
// A Bucket is only valid while its originating Store is open.
type Bucket[K, V any] struct {
	name   string
	keyEnc Encoding[K]
	valEnc Encoding[V]
}

// OpenBucket looks up or creates the named partition and returns a typed
// handle bound to the given encodings. An empty name selects the reserved
// default partition. Reopening a name under different key/value types or
// different encodings fails with *BucketError, so incompatible handles on one
// partition cannot coexist within a store.
func OpenBucket[K, V any](s *Store, name string, keyEnc Encoding[K], valEnc Encoding[V]) (*Bucket[K, V], error) {
	if name == "" {
		name = DefaultBucketName
	}
	if strings.ContainsRune(name, 0) {
		return nil, bucketErrf(name, nil, "name contains NUL")
	}

	kt, vt := reflect.TypeOf((*K)(nil)).Elem(), reflect.TypeOf((*V)(nil)).Elem()
	ket, vet := reflect.TypeOf(keyEnc), reflect.TypeOf(valEnc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	if info := s.buckets[name]; info != nil {
		if info.keyType != kt || info.valueType != vt {
			return nil, bucketErrf(name, nil, "already open as Bucket[%v, %v], cannot reopen as Bucket[%v, %v]",
				info.keyType, info.valueType, kt, vt)
		}
		if info.keyEnc != ket || info.valueEnc != vet {
			return nil, bucketErrf(name, nil, "already open with encodings (%v, %v), cannot reopen with (%v, %v)",
				info.keyEnc, info.valueEnc, ket, vet)
		}
		return &Bucket[K, V]{name: name, keyEnc: keyEnc, valEnc: valEnc}, nil
	}

	if w := s.widths[name]; w != 0 {
		fw, ok := keyEnc.(FixedWidth)
		if !ok {
			return nil, bucketErrf(name, nil, "declared key width %d, but %v is not fixed-width", w, ket)
		}
		if fw.Width() != w {
			return nil, bucketErrf(name, nil, "declared key width %d, but %v encodes %d bytes", w, ket, fw.Width())
		}
	}

	if !s.cfg.ReadOnly {
		if err := s.eng.CreatePartition(name); err != nil {
			return nil, bucketErrf(name, err, "create partition")
		}
	}

	s.buckets[name] = &bucketInfo{keyType: kt, valueType: vt, keyEnc: ket, valueEnc: vet}
	return &Bucket[K, V]{name: name, keyEnc: keyEnc, valEnc: valEnc}, nil
}

// Name returns the partition name.
func (b *Bucket[K, V]) Name() string {
	return b.name
}

// EncodeKey encodes a key the way this bucket stores it, for building raw
// scan ranges.
func (b *Bucket[K, V]) EncodeKey(key K) ([]byte, error) {
	kb, err := b.keyEnc.Append(nil, key)
	if err != nil {
		return nil, err
	}
	return kb, nil
}

func (b *Bucket[K, V]) decodeKey(data []byte) (K, error) {
	return b.keyEnc.Decode(data)
}

func (b *Bucket[K, V]) decodeValue(data []byte) (V, error) {
	return b.valEnc.Decode(data)
}

package bkv

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding converts values of type T to and from byte strings. Key encodings
// must be order-preserving: the lexicographic order of encoded bytes must
// equal the natural order of the values, because range scans compare raw
// bytes. Value encodings carry no ordering obligation.
//
// A bucket binds one key encoding and one value encoding at construction and
// never varies them per record, so every entry in a partition is mutually
// decodable.
type Encoding[T any] interface {
	// Append encodes v and appends the bytes to buf.
	Append(buf []byte, v T) ([]byte, error)

	// Decode parses an encoded value. Returns an *EncodingError when the
	// bytes do not parse as T.
	Decode(data []byte) (T, error)
}

// FixedWidth is implemented by encodings whose output is always the same
// number of bytes, letting the store validate declared key widths.
type FixedWidth interface {
	Width() int
}

// BinaryEncoding stores byte strings as-is, preserving lexicographic order.
type BinaryEncoding struct{}

func (BinaryEncoding) Append(buf []byte, v []byte) ([]byte, error) {
	return append(buf, v...), nil
}

func (BinaryEncoding) Decode(data []byte) ([]byte, error) {
	return slices.Clone(data), nil
}

// StringEncoding stores strings as their raw bytes, preserving lexicographic
// order.
type StringEncoding struct{}

func (StringEncoding) Append(buf []byte, v string) ([]byte, error) {
	return append(buf, v...), nil
}

func (StringEncoding) Decode(data []byte) (string, error) {
	return string(data), nil
}

// Uint32Encoding stores uint32 as 4 big-endian bytes, so byte order equals
// numeric order.
type Uint32Encoding struct{}

func (Uint32Encoding) Width() int { return 4 }

func (Uint32Encoding) Append(buf []byte, v uint32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(buf, v), nil
}

func (Uint32Encoding) Decode(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, encErrf(data, 0, nil, "uint32 key must be 4 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// Uint64Encoding stores uint64 as 8 big-endian bytes, so byte order equals
// numeric order.
type Uint64Encoding struct{}

func (Uint64Encoding) Width() int { return 8 }

func (Uint64Encoding) Append(buf []byte, v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(buf, v), nil
}

func (Uint64Encoding) Decode(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, encErrf(data, 0, nil, "uint64 key must be 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Int64Encoding stores int64 as 8 big-endian bytes with the sign bit flipped,
// so negative values sort before positive ones in byte order.
type Int64Encoding struct{}

func (Int64Encoding) Width() int { return 8 }

func (Int64Encoding) Append(buf []byte, v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(buf, uint64(v)^(1<<63)), nil
}

func (Int64Encoding) Decode(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, encErrf(data, 0, nil, "int64 key must be 8 bytes, got %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data) ^ (1 << 63)), nil
}

// MsgPackEncoding stores structured values as msgpack with sorted map keys.
// Not order-preserving; meant for values, not keys.
type MsgPackEncoding[T any] struct{}

func (MsgPackEncoding[T]) Append(buf []byte, v T) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, encErrf(nil, 0, err, "failed to encode %T as msgpack", v)
	}
	return bb.Buf, nil
}

func (MsgPackEncoding[T]) Decode(data []byte) (T, error) {
	var v T
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(&v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return v, encErrf(data, 0, err, "failed to decode msgpack into %T", v)
	}
	return v, nil
}

// JSONEncoding stores structured values as JSON. Not order-preserving; meant
// for values, not keys.
type JSONEncoding[T any] struct{}

func (JSONEncoding[T]) Append(buf []byte, v T) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, encErrf(nil, 0, err, "failed to encode %T as JSON", v)
	}
	return append(buf, raw...), nil
}

func (JSONEncoding[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	if err != nil {
		return v, encErrf(data, 0, err, "failed to decode JSON into %T", v)
	}
	return v, nil
}

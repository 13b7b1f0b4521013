package bkv

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Value compression inside the Bolt engine. Each stored value is framed with
// a one-byte codec tag so reads dispatch on what is actually stored, not on
// the configured codec. Values that do not shrink are stored raw. Keys are
// never compressed: their byte order is the scan order.

type valueCodec byte

const (
	codecRaw    valueCodec = 0
	codecSnappy valueCodec = 1
	codecLZ4    valueCodec = 2
	codecZstd   valueCodec = 3
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Errorf("bkv: zstd encoder: %w", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Errorf("bkv: zstd decoder: %w", err))
	}
}

func codecByName(name string) (valueCodec, error) {
	switch name {
	case "", "none":
		return codecRaw, nil
	case "snappy":
		return codecSnappy, nil
	case "lz4":
		return codecLZ4, nil
	case "zstd":
		return codecZstd, nil
	default:
		return 0, fmt.Errorf("bkv: unknown compression codec %q", name)
	}
}

// compressValue frames src per the codec, falling back to a raw frame when
// compression does not help.
func compressValue(codec valueCodec, src []byte) []byte {
	switch codec {
	case codecSnappy:
		buf := snappy.Encode(nil, src)
		if len(buf) < len(src) {
			return append([]byte{byte(codecSnappy)}, buf...)
		}
	case codecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, buf, nil)
		if err == nil && n > 0 && n < len(src) {
			frame := appendUvarint([]byte{byte(codecLZ4)}, uint64(len(src)))
			return append(frame, buf[:n]...)
		}
	case codecZstd:
		buf := zstdEncoder.EncodeAll(src, make([]byte, 0, len(src)))
		if len(buf) < len(src) {
			return append([]byte{byte(codecZstd)}, buf...)
		}
	}
	out := make([]byte, 0, len(src)+1)
	out = append(out, byte(codecRaw))
	return append(out, src...)
}

// decompressValue undoes compressValue, dispatching on the frame tag.
func decompressValue(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, encErrf(data, 0, nil, "compressed value frame is empty")
	}
	payload := data[1:]
	switch valueCodec(data[0]) {
	case codecRaw:
		return payload, nil
	case codecSnappy:
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, encErrf(data, 1, err, "corrupt snappy value")
		}
		return out, nil
	case codecLZ4:
		origLen, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, encErrf(data, 1, nil, "corrupt lz4 value frame")
		}
		out := make([]byte, origLen)
		m, err := lz4.UncompressBlock(payload[n:], out)
		if err != nil || uint64(m) != origLen {
			return nil, encErrf(data, 1+n, err, "corrupt lz4 value")
		}
		return out, nil
	case codecZstd:
		out, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, encErrf(data, 1, err, "corrupt zstd value")
		}
		return out, nil
	default:
		return nil, encErrf(data, 0, nil, "unknown value codec tag %d", data[0])
	}
}

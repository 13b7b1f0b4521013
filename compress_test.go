package bkv

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueCodecsRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		[]byte(strings.Repeat("compressible compressible ", 100)),
		bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 50),
	}
	for _, name := range []string{"none", "snappy", "lz4", "zstd"} {
		codec, err := codecByName(name)
		require.NoError(t, err)
		for _, src := range payloads {
			framed := compressValue(codec, src)
			got, err := decompressValue(framed)
			require.NoError(t, err, "codec %s", name)
			assert.Equal(t, append([]byte{}, src...), append([]byte{}, got...), "codec %s", name)
		}
	}
}

func TestValueCodecShrinksLargePayloads(t *testing.T) {
	src := []byte(strings.Repeat("abcdefgh", 1000))
	for _, name := range []string{"snappy", "lz4", "zstd"} {
		codec, err := codecByName(name)
		require.NoError(t, err)
		framed := compressValue(codec, src)
		assert.Less(t, len(framed), len(src), "codec %s", name)
	}
}

func TestValueCodecCorruption(t *testing.T) {
	var encErr *EncodingError

	_, err := decompressValue(nil)
	require.ErrorAs(t, err, &encErr)

	_, err = decompressValue([]byte{99, 1, 2, 3})
	require.ErrorAs(t, err, &encErr, "unknown tag")

	_, err = decompressValue([]byte{byte(codecSnappy), 0xFF, 0xFF, 0xFF})
	require.ErrorAs(t, err, &encErr, "corrupt snappy payload")

	_, err = decompressValue([]byte{byte(codecZstd), 0xFF, 0xFF, 0xFF})
	require.ErrorAs(t, err, &encErr, "corrupt zstd payload")
}

func TestUnknownCodecName(t *testing.T) {
	_, err := codecByName("brotli")
	require.Error(t, err)

	_, err = Open(Config{Engine: "memory", Compression: "brotli"}, Options{})
	require.Error(t, err)
}

func TestCompressedStoreRoundTrip(t *testing.T) {
	for _, codec := range []string{"snappy", "lz4", "zstd"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.db")
			cfg := Config{Path: path, NoSync: true, Compression: codec}

			big := strings.Repeat("lorem ipsum dolor sit amet ", 200)

			store, err := Open(cfg, Options{})
			require.NoError(t, err)
			docs, err := OpenBucket(store, "docs", StringEncoding{}, StringEncoding{})
			require.NoError(t, err)
			require.NoError(t, store.Update(func(txn *Txn) error {
				if _, _, err := Set(txn, docs, "big", big); err != nil {
					return err
				}
				_, _, err := Set(txn, docs, "tiny", "t") // stored raw, too small to shrink
				return err
			}))
			require.NoError(t, store.Close())

			// Reopen with the same codec and read back both point and scan.
			store, err = Open(cfg, Options{})
			require.NoError(t, err)
			defer store.Close()
			docs, err = OpenBucket(store, "docs", StringEncoding{}, StringEncoding{})
			require.NoError(t, err)

			require.NoError(t, store.Read(func(txn *Txn) error {
				v, ok, err := Get(txn, docs, "big")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, big, v)

				keys, values := collect(t, Scan(txn, docs, RawOO()))
				assert.Equal(t, []string{"big", "tiny"}, keys)
				assert.Equal(t, []string{big, "t"}, values)
				return nil
			}))
		})
	}
}

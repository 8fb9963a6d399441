package storage

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/evochora/evochora-sub000/internal/format"
	"github.com/evochora/evochora-sub000/internal/logging"
	"github.com/evochora/evochora-sub000/internal/tickpb"
)

var (
	bucketActive     = []byte("environment_chunks")
	bucketSuperseded = []byte("environment_chunks_superseded")
	bucketDimensions = []byte("environment_dimensions")
	dimensionsKey    = []byte("dimensions")
)

const keySize = 16 // big-endian first_tick (8) ++ last_tick (8)

func encodeKey(firstTick, lastTick uint64) []byte {
	key := make([]byte, keySize)
	binary.BigEndian.PutUint64(key[:8], firstTick)
	binary.BigEndian.PutUint64(key[8:], lastTick)
	return key
}

func decodeKey(key []byte) (firstTick, lastTick uint64) {
	return binary.BigEndian.Uint64(key[:8]), binary.BigEndian.Uint64(key[8:])
}

const metaPrefixSize = 4 // big-endian tick_count, follows the format header

// zstdDecoder is a package-level decoder, concurrent-safe, always
// available for reads — mirrors the teacher's package-level
// zstd.NewReader(nil) pattern in chunk/file/compress.go.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("storage: init zstd decoder: " + err.Error())
	}
}

// BoltStrategy is a Strategy implementation over go.etcd.io/bbolt.
// Chunks are compressed with zstd (whole-blob, not the teacher's seekable
// variant — see SPEC_FULL.md §2.2 for why) and msgpack-encoded, prefixed
// by the shared format.Header plus a small tick_count field so
// ListChunkMetas never needs to decompress.
type BoltStrategy struct {
	db     *bolt.DB
	logger *slog.Logger

	pending []stagedRow
}

// OpenBoltStrategy opens (creating if absent) a bbolt database at path.
func OpenBoltStrategy(path string, logger *slog.Logger) (*BoltStrategy, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, path, err)
	}
	return &BoltStrategy{db: db, logger: logging.Default(logger).With("component", "storage", "backend", "bolt")}, nil
}

// Close releases the underlying database handle.
func (s *BoltStrategy) Close() error {
	return s.db.Close()
}

func (s *BoltStrategy) CreateTables(dimensions []uint64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketActive); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSuperseded); err != nil {
			return err
		}
		dimsBucket, err := tx.CreateBucketIfNotExists(bucketDimensions)
		if err != nil {
			return err
		}
		buf, err := msgpack.Marshal(dimensions)
		if err != nil {
			return err
		}
		return dimsBucket.Put(dimensionsKey, buf)
	})
	if err != nil {
		return fmt.Errorf("%w: create_tables: %v", ErrStorage, err)
	}
	return nil
}

func (s *BoltStrategy) WriteRawChunk(firstTick, lastTick uint64, tickCount uint32, chunk tickpb.TickDataChunk) error {
	s.pending = append(s.pending, stagedRow{
		meta:  ChunkMeta{FirstTick: firstTick, LastTick: lastTick, TickCount: tickCount},
		chunk: chunk,
	})
	return nil
}

func (s *BoltStrategy) CommitRawChunks() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketActive)
		if bucket == nil {
			return fmt.Errorf("environment_chunks bucket missing; call CreateTables first")
		}
		for _, row := range s.pending {
			value, err := encodeChunkValue(row.meta, row.chunk)
			if err != nil {
				return err
			}
			if err := bucket.Put(encodeKey(row.meta.FirstTick, row.meta.LastTick), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.ResetStreamingState()
		return fmt.Errorf("%w: commit_raw_chunks: %v", ErrStorage, err)
	}
	s.pending = nil
	return nil
}

func (s *BoltStrategy) ResetStreamingState() {
	s.pending = nil
}

func (s *BoltStrategy) ReadChunkContaining(tick uint64) (tickpb.TickDataChunk, error) {
	var best *tickpb.TickDataChunk
	var bestLast uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketActive)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, value []byte) error {
			firstTick, lastTick := decodeKey(key)
			if tick < firstTick || tick > lastTick {
				return nil
			}
			if best != nil && lastTick >= bestLast {
				return nil
			}
			chunk, err := decodeChunkValue(value)
			if err != nil {
				return err
			}
			best = &chunk
			bestLast = lastTick
			return nil
		})
	})
	if err != nil {
		return tickpb.TickDataChunk{}, fmt.Errorf("%w: read_chunk_containing(%d): %v", ErrStorage, tick, err)
	}
	if best == nil {
		return tickpb.TickDataChunk{}, ErrTickNotFound
	}
	return *best, nil
}

func (s *BoltStrategy) ListChunkMetas() ([]ChunkMeta, error) {
	var out []ChunkMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketActive)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, value []byte) error {
			firstTick, lastTick := decodeKey(key)
			tickCount, err := peekTickCount(value)
			if err != nil {
				return err
			}
			out = append(out, ChunkMeta{FirstTick: firstTick, LastTick: lastTick, TickCount: tickCount})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list_chunk_metas: %v", ErrStorage, err)
	}
	return out, nil
}

func (s *BoltStrategy) SupersedeChunk(firstTick, lastTick uint64) error {
	key := encodeKey(firstTick, lastTick)
	err := s.db.Update(func(tx *bolt.Tx) error {
		active := tx.Bucket(bucketActive)
		superseded := tx.Bucket(bucketSuperseded)
		value := active.Get(key)
		if value == nil {
			return ErrTickNotFound
		}
		valueCopy := append([]byte(nil), value...)
		if err := superseded.Put(key, valueCopy); err != nil {
			return err
		}
		return active.Delete(key)
	})
	if err != nil {
		if err == ErrTickNotFound {
			return err
		}
		return fmt.Errorf("%w: supersede_chunk(%d,%d): %v", ErrStorage, firstTick, lastTick, err)
	}
	return nil
}

func encodeChunkValue(meta ChunkMeta, chunk tickpb.TickDataChunk) ([]byte, error) {
	body, err := msgpack.Marshal(&chunk)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(body, nil)

	header := format.Header{Type: format.TypeEnvironmentChunk, Flags: format.FlagCompressed}
	value := make([]byte, 0, format.HeaderSize+metaPrefixSize+len(compressed))
	hdr := header.Encode()
	value = append(value, hdr[:]...)
	var countBuf [metaPrefixSize]byte
	binary.BigEndian.PutUint32(countBuf[:], meta.TickCount)
	value = append(value, countBuf[:]...)
	value = append(value, compressed...)
	return value, nil
}

func decodeChunkValue(value []byte) (tickpb.TickDataChunk, error) {
	if _, err := format.DecodeAndValidate(value, format.TypeEnvironmentChunk, 0); err != nil {
		return tickpb.TickDataChunk{}, fmt.Errorf("decode chunk header: %w", err)
	}
	body := value[format.HeaderSize+metaPrefixSize:]
	decompressed, err := zstdDecoder.DecodeAll(body, nil)
	if err != nil {
		return tickpb.TickDataChunk{}, fmt.Errorf("decompress chunk: %w", err)
	}
	var chunk tickpb.TickDataChunk
	if err := msgpack.Unmarshal(decompressed, &chunk); err != nil {
		return tickpb.TickDataChunk{}, fmt.Errorf("decode chunk body: %w", err)
	}
	return chunk, nil
}

func peekTickCount(value []byte) (uint32, error) {
	if len(value) < format.HeaderSize+metaPrefixSize {
		return 0, fmt.Errorf("value too small for meta prefix")
	}
	return binary.BigEndian.Uint32(value[format.HeaderSize : format.HeaderSize+metaPrefixSize]), nil
}

var _ Strategy = (*BoltStrategy)(nil)

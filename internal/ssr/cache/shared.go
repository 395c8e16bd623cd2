package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/edgecomet/ssr-gateway/internal/common/redis"
)

// payload layout: [algorithm tag][stored-at unix nanos, big endian][body]
const payloadHeaderSize = 1 + 8

// RedisClient is the subset of the redis wrapper used by the shared tier
type RedisClient interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

// Shared stores rendered documents in Redis so several processes can share renders
type Shared struct {
	client      RedisClient
	prefix      string
	compression string
	ttl         time.Duration
}

func NewShared(client RedisClient, prefix, compression string, ttl time.Duration) *Shared {
	return &Shared{
		client:      client,
		prefix:      prefix,
		compression: compression,
		ttl:         ttl,
	}
}

func (s *Shared) key(uri string) string {
	return redis.PageKey(s.prefix, uri)
}

// Get returns the stored entry, or ok=false when the key is absent
func (s *Shared) Get(ctx context.Context, uri string) (entry *Entry, ok bool, err error) {
	raw, err := s.client.GetBytes(ctx, s.key(uri))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	storedAt, body, err := decodePayload(raw)
	if err != nil {
		return nil, false, err
	}
	return &Entry{Key: uri, Value: string(body), StoredAt: storedAt}, true, nil
}

// Set writes the document and returns the stored payload size
func (s *Shared) Set(ctx context.Context, uri, value string, storedAt time.Time) (int, error) {
	payload, err := encodePayload([]byte(value), s.compression, storedAt)
	if err != nil {
		return 0, err
	}
	if err := s.client.Set(ctx, s.key(uri), payload, s.ttl); err != nil {
		return 0, err
	}
	return len(payload), nil
}

func (s *Shared) Delete(ctx context.Context, uri string) error {
	return s.client.Del(ctx, s.key(uri))
}

func (s *Shared) Purge(ctx context.Context) (int, error) {
	return s.client.DeletePrefix(ctx, s.prefix)
}

func (s *Shared) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func encodePayload(content []byte, algorithm string, storedAt time.Time) ([]byte, error) {
	body, applied, err := Compress(content, algorithm)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, payloadHeaderSize, payloadHeaderSize+len(body))
	payload[0] = algorithmTag(applied)
	binary.BigEndian.PutUint64(payload[1:payloadHeaderSize], uint64(storedAt.UnixNano()))
	return append(payload, body...), nil
}

func decodePayload(payload []byte) (time.Time, []byte, error) {
	if len(payload) < payloadHeaderSize {
		return time.Time{}, nil, fmt.Errorf("%w: payload too short (%d bytes)", ErrDecompression, len(payload))
	}

	algorithm, ok := algorithmFromTag(payload[0])
	if !ok {
		return time.Time{}, nil, fmt.Errorf("%w: unknown algorithm tag %q", ErrDecompression, payload[0])
	}

	storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(payload[1:payloadHeaderSize])))
	body, err := Decompress(payload[payloadHeaderSize:], algorithm)
	if err != nil {
		return time.Time{}, nil, err
	}
	return storedAt, body, nil
}

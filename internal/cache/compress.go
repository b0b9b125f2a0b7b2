package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

// Compressed wraps a backend and stores values zstd-encoded.
type Compressed struct {
	inner   weather.Cache
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressed wraps inner.
func NewCompressed(inner weather.Cache) (*Compressed, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return &Compressed{inner: inner, encoder: encoder, decoder: decoder}, nil
}

func (c *Compressed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, found, err := c.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	value, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", key, err)
	}
	return value, true, nil
}

func (c *Compressed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data := c.encoder.EncodeAll(value, make([]byte, 0, len(value)))
	return c.inner.Set(ctx, key, data, ttl)
}

// Close releases the codec resources. It does not close the wrapped backend.
func (c *Compressed) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/edgecomet/ssr-gateway/pkg/types"
)

// ErrDecompression is returned when a shared cache payload cannot be decoded.
// Use errors.Is(err, ErrDecompression) to check for it.
var ErrDecompression = errors.New("decompression failed")

// Compress encodes content with algorithm and returns the algorithm actually applied.
// Documents smaller than types.CompressionMinSize are stored as-is.
func Compress(content []byte, algorithm string) ([]byte, string, error) {
	if len(content) < types.CompressionMinSize {
		return content, types.CompressionNone, nil
	}

	switch algorithm {
	case types.CompressionSnappy:
		return snappy.Encode(nil, content), types.CompressionSnappy, nil

	case types.CompressionLZ4:
		// stream format embeds the original size
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			_ = w.Close()
			return nil, "", fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), types.CompressionLZ4, nil

	default:
		return content, types.CompressionNone, nil
	}
}

// Decompress reverses Compress for the given algorithm
func Decompress(content []byte, algorithm string) ([]byte, error) {
	switch algorithm {
	case types.CompressionSnappy:
		out, err := snappy.Decode(nil, content)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrDecompression, err)
		}
		return out, nil

	case types.CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(content)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrDecompression, err)
		}
		return out, nil

	case types.CompressionNone, "":
		return content, nil

	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrDecompression, algorithm)
	}
}

var algorithmTags = map[string]byte{
	types.CompressionNone:   'n',
	types.CompressionSnappy: 's',
	types.CompressionLZ4:    'l',
}

func algorithmTag(algorithm string) byte {
	if tag, ok := algorithmTags[algorithm]; ok {
		return tag
	}
	return algorithmTags[types.CompressionNone]
}

func algorithmFromTag(tag byte) (string, bool) {
	for name, t := range algorithmTags {
		if t == tag {
			return name, true
		}
	}
	return "", false
}

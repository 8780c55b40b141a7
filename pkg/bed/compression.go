package bed

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdWriter compresses into dst and closes dst after the final frame
type zstdWriter struct {
	*zstd.Encoder
	dst io.WriteCloser
}

func newZstdWriter(dst io.WriteCloser) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		dst.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &zstdWriter{Encoder: enc, dst: dst}, nil
}

func (z *zstdWriter) Close() error {
	if err := z.Encoder.Close(); err != nil {
		z.dst.Close()
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return z.dst.Close()
}

// NewReader returns a reader that transparently decompresses zstd
// when compressed is true
func NewReader(r io.Reader, compressed bool) (io.ReadCloser, error) {
	if !compressed {
		return io.NopCloser(r), nil
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec.IOReadCloser(), nil
}

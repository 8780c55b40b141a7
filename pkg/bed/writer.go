// Package bed writes classified regions as BED intervals and per-locus
// detail as a tab-separated table.
package bed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// Writer emits regions of one classification as 3-column BED records
type Writer struct {
	class camo.Classification
	dst   io.WriteCloser
	buf   *bufio.Writer
	line  []byte
	count int64
	bases int64
}

// NewWriter creates a BED writer that accepts only regions of class
func NewWriter(dst io.WriteCloser, class camo.Classification) *Writer {
	return &Writer{
		class: class,
		dst:   dst,
		buf:   bufio.NewWriterSize(dst, 1<<16),
	}
}

// EmitRegion implements camo.RegionEmitter
func (w *Writer) EmitRegion(r camo.Region) error {
	if r.Class != w.class {
		return &camo.InvariantError{
			Contig: r.Contig,
			Pos:    r.Start,
			Reason: fmt.Sprintf("%s region sent to the %s output", r.Class, w.class),
		}
	}

	w.line = append(w.line[:0], r.Contig...)
	w.line = append(w.line, '\t')
	w.line = strconv.AppendInt(w.line, int64(r.Start), 10)
	w.line = append(w.line, '\t')
	w.line = strconv.AppendInt(w.line, int64(r.End), 10)
	w.line = append(w.line, '\n')
	if _, err := w.buf.Write(w.line); err != nil {
		return err
	}

	w.count++
	w.bases += int64(r.Len())
	return nil
}

// Count returns the number of regions written
func (w *Writer) Count() int64 {
	return w.count
}

// Bases returns the total length of the regions written
func (w *Writer) Bases() int64 {
	return w.bases
}

// Close flushes buffered records and closes the destination
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.dst.Close()
		return fmt.Errorf("failed to flush %s regions: %w", w.class, err)
	}
	return w.dst.Close()
}

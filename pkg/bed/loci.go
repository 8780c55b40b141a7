package bed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// LocusHeader is the first line of a per-locus detail file
const LocusHeader = "#contig\tpos\tref\tclass\tdepth\tdark_reads\tcamo_reads\tdark_pct\tcamo_pct\n"

// LocusWriter writes one line per reported locus
type LocusWriter struct {
	dst         io.WriteCloser
	buf         *bufio.Writer
	line        []byte
	wroteHeader bool
	count       int64
}

// NewLocusWriter creates a per-locus detail writer
func NewLocusWriter(dst io.WriteCloser) *LocusWriter {
	return &LocusWriter{
		dst: dst,
		buf: bufio.NewWriterSize(dst, 1<<20),
	}
}

// EmitLocus implements camo.LocusEmitter
func (w *LocusWriter) EmitLocus(rec camo.LocusRecord) error {
	if !w.wroteHeader {
		if _, err := w.buf.WriteString(LocusHeader); err != nil {
			return err
		}
		w.wroteHeader = true
	}

	l := append(w.line[:0], rec.Contig...)
	l = append(l, '\t')
	l = strconv.AppendInt(l, int64(rec.Pos), 10)
	l = append(l, '\t', rec.Base, '\t')
	l = append(l, rec.Class.String()...)
	l = append(l, '\t')
	l = strconv.AppendInt(l, int64(rec.Stats.Depth), 10)
	l = append(l, '\t')
	l = strconv.AppendInt(l, int64(rec.Stats.DarkReads), 10)
	l = append(l, '\t')
	l = strconv.AppendInt(l, int64(rec.Stats.CamoReads), 10)
	l = append(l, '\t')
	l = strconv.AppendFloat(l, rec.Stats.DarkMassPct(), 'f', 2, 64)
	l = append(l, '\t')
	l = strconv.AppendFloat(l, rec.Stats.CamoMassPct(), 'f', 2, 64)
	l = append(l, '\n')
	w.line = l

	if _, err := w.buf.Write(l); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of loci written
func (w *LocusWriter) Count() int64 {
	return w.count
}

// Close flushes and closes the destination. An empty run still gets a header.
func (w *LocusWriter) Close() error {
	if !w.wroteHeader {
		w.buf.WriteString(LocusHeader)
		w.wroteHeader = true
	}
	if err := w.buf.Flush(); err != nil {
		w.dst.Close()
		return fmt.Errorf("failed to flush locus detail: %w", err)
	}
	return w.dst.Close()
}

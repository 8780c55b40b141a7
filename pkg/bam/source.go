package bam

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/scttfrdmn/camofinder/pkg/camo"
	"github.com/sirupsen/logrus"
)

// DefaultExcludeFlags drops secondary, QC-failed and duplicate alignments
const DefaultExcludeFlags = sam.Secondary | sam.QCFail | sam.Duplicate

// Options configures how alignments are read
type Options struct {
	// Records with any of these flags are skipped. Unmapped records
	// are always skipped.
	ExcludeFlags sam.Flags

	// Stringency applies to header problems; record problems are
	// reported as *camo.MalformedRecordError and handled by the engine
	Stringency camo.Stringency

	// UseIndex enables per-contig iteration through a .bai index
	UseIndex bool

	Log logrus.FieldLogger
}

// recordReader is satisfied by both bam.Reader and sam.Reader
type recordReader interface {
	Read() (*sam.Record, error)
}

// Source streams SAM/BAM records contig by contig.
//
// Without an index the file is read once, front to back, and contigs must
// be requested in header order. With an index each contig gets its own
// file handle, so contigs may be read concurrently.
type Source struct {
	path    string
	opts    Options
	log     logrus.FieldLogger
	header  *sam.Header
	contigs []camo.Contig
	isBAM   bool

	// sequential stream state
	mu      sync.Mutex
	file    io.Closer
	reader  recordReader
	closer  io.Closer
	next    *sam.Record
	nextErr error
	current int

	index    *bam.Index
	filtered atomic.Int64
}

// Open opens a SAM or BAM file, or stdin when path is "-"
func Open(path string, opts Options) (*Source, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Source{
		path:    path,
		opts:    opts,
		log:     log,
		current: -1,
	}

	var in io.Reader
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, &camo.InputError{Kind: "input", Path: path, Err: err}
		}
		s.file = f
		in = f
	}

	// Auto-detect format: BAM is BGZF, which starts with the gzip magic
	br := bufio.NewReaderSize(in, 1<<20)
	magic, err := br.Peek(2)
	if err != nil {
		s.Close()
		return nil, &camo.InputError{Kind: "input", Path: path, Err: fmt.Errorf("failed to read: %w", err)}
	}
	s.isBAM = magic[0] == 0x1f && magic[1] == 0x8b

	if s.isBAM {
		bamReader, err := bam.NewReader(br, 1)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create BAM reader: %w", err)
		}
		bamReader.Omit(bam.AuxTags)
		s.reader = bamReader
		s.closer = bamReader
		s.header = bamReader.Header()
	} else {
		samReader, err := sam.NewReader(br)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create SAM reader: %w", err)
		}
		s.reader = samReader
		s.header = samReader.Header()
	}

	if err := s.checkHeader(); err != nil {
		s.Close()
		return nil, err
	}

	for _, ref := range s.header.Refs() {
		s.contigs = append(s.contigs, camo.Contig{
			Name:   ref.Name(),
			Length: ref.Len(),
			Index:  ref.ID(),
		})
	}

	if opts.UseIndex && s.isBAM && path != "-" {
		if err := s.loadIndex(); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// checkHeader verifies the input declares coordinate order
func (s *Source) checkHeader() error {
	if len(s.header.Refs()) == 0 {
		return &camo.InputError{Kind: "input", Path: s.path, Err: fmt.Errorf("header has no reference sequences")}
	}
	if s.header.SortOrder == sam.Coordinate {
		return nil
	}

	msg := fmt.Sprintf("header sort order is %q, expected coordinate", s.header.SortOrder)
	switch s.opts.Stringency {
	case camo.Strict:
		return &camo.InputError{Kind: "input", Path: s.path, Err: fmt.Errorf("%s", msg)}
	case camo.Lenient:
		s.log.Warnf("%s: %s; out-of-order records will be skipped", s.path, msg)
	}
	return nil
}

// Header returns the SAM header
func (s *Source) Header() *sam.Header {
	return s.header
}

// Contigs implements camo.AlignmentSource
func (s *Source) Contigs() []camo.Contig {
	return s.contigs
}

// Concurrent implements camo.ConcurrentSource
func (s *Source) Concurrent() bool {
	return s.index != nil
}

// Indexed reports whether a .bai index was loaded
func (s *Source) Indexed() bool {
	return s.index != nil
}

// Filtered returns the number of records skipped by flag
func (s *Source) Filtered() int64 {
	return s.filtered.Load()
}

// Reads implements camo.AlignmentSource
func (s *Source) Reads(ctx context.Context, c camo.Contig) (camo.ReadIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index != nil {
		return s.indexedReads(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Index <= s.current {
		return nil, fmt.Errorf("contig %s requested out of header order; unindexed input is read front to back", c.Name)
	}
	floor := s.current
	s.current = c.Index
	return &streamIterator{source: s, contig: c, floor: floor, lastPos: -1}, nil
}

// peek returns the next record without consuming it
func (s *Source) peek() (*sam.Record, error) {
	if s.next == nil && s.nextErr == nil {
		s.next, s.nextErr = s.reader.Read()
	}
	return s.next, s.nextErr
}

// consume drops the peeked record or error
func (s *Source) consume() {
	s.next = nil
	s.nextErr = nil
}

// Close releases the input
func (s *Source) Close() error {
	var err error
	if s.closer != nil {
		err = s.closer.Close()
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// streamIterator yields the records of one contig from the shared stream
type streamIterator struct {
	source  *Source
	contig  camo.Contig
	floor   int // index of the previously walked contig
	lastPos int
	done    bool
}

func (it *streamIterator) Next() (camo.Read, error) {
	if it.done {
		return camo.Read{}, io.EOF
	}
	s := it.source
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		rec, err := s.peek()
		if err == io.EOF {
			it.done = true
			return camo.Read{}, io.EOF
		}
		if err != nil {
			s.consume()
			// A bad SAM line can be skipped; a bad BAM block cannot
			if !s.isBAM {
				return camo.Read{}, &camo.MalformedRecordError{
					Contig: it.contig.Name,
					Pos:    -1,
					Reason: strings.TrimSpace(err.Error()),
				}
			}
			return camo.Read{}, fmt.Errorf("failed to read BAM record: %w", err)
		}

		if rec.Ref == nil {
			s.consume()
			if rec.Flags&sam.Unmapped != 0 {
				s.filtered.Add(1)
				continue
			}
			return camo.Read{}, &camo.MalformedRecordError{
				Contig: it.contig.Name,
				Name:   rec.Name,
				Pos:    rec.Pos,
				Reason: "mapped record without a reference",
			}
		}

		id := rec.Ref.ID()
		if id > it.contig.Index {
			// Belongs to a later contig; leave it for that iterator
			it.done = true
			return camo.Read{}, io.EOF
		}
		s.consume()

		if id < it.contig.Index {
			// Contigs between the last walked one and this one were not selected
			if id > it.floor || rec.Flags&sam.Unmapped != 0 {
				continue
			}
			return camo.Read{}, &camo.MalformedRecordError{
				Contig: rec.Ref.Name(),
				Name:   rec.Name,
				Pos:    rec.Pos,
				Reason: fmt.Sprintf("record follows %s records; input is not coordinate sorted", it.contig.Name),
			}
		}

		read, err := s.convert(rec, it.contig, &it.lastPos)
		if err == errFiltered {
			continue
		}
		return read, err
	}
}

func (it *streamIterator) Close() error {
	return nil
}

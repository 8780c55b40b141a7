package bam

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// indexPaths lists the conventional .bai locations for a BAM path
func indexPaths(path string) []string {
	paths := []string{path + ".bai"}
	if strings.HasSuffix(path, ".bam") {
		paths = append(paths, strings.TrimSuffix(path, ".bam")+".bai")
	}
	return paths
}

// loadIndex reads the first .bai found next to the input. A missing
// index is not an error; the source falls back to streaming.
func (s *Source) loadIndex() error {
	for _, p := range indexPaths(s.path) {
		f, err := os.Open(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return &camo.InputError{Kind: "alignment index", Path: p, Err: err}
		}

		idx, err := bam.ReadIndex(f)
		f.Close()
		if err != nil {
			return &camo.InputError{Kind: "alignment index", Path: p, Err: fmt.Errorf("failed to parse: %w", err)}
		}

		s.index = idx
		s.log.Debugf("using alignment index %s", p)
		return nil
	}

	s.log.Debugf("no index found for %s, streaming", s.path)
	return nil
}

// indexedReads opens an independent reader positioned on one contig
func (s *Source) indexedReads(c camo.Contig) (camo.ReadIterator, error) {
	refs := s.header.Refs()
	if c.Index < 0 || c.Index >= len(refs) {
		return nil, fmt.Errorf("contig %s is not in the alignment header", c.Name)
	}
	ref := refs[c.Index]

	chunks, err := s.index.Chunks(ref, 0, ref.Len())
	if err != nil || len(chunks) == 0 {
		// The index has no bins for contigs without alignments
		s.log.WithField("contig", c.Name).Debugf("no indexed alignments: %v", err)
		return emptyIterator{}, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, &camo.InputError{Kind: "input", Path: s.path, Err: err}
	}

	reader, err := bam.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create BAM reader: %w", err)
	}
	reader.Omit(bam.AuxTags)

	it, err := bam.NewIterator(reader, chunks)
	if err != nil {
		reader.Close()
		f.Close()
		return nil, fmt.Errorf("failed to seek to %s: %w", c.Name, err)
	}

	return &indexedIterator{
		source:  s,
		contig:  c,
		file:    f,
		reader:  reader,
		iter:    it,
		lastPos: -1,
	}, nil
}

// indexedIterator yields the records of one contig through its own reader
type indexedIterator struct {
	source  *Source
	contig  camo.Contig
	file    *os.File
	reader  *bam.Reader
	iter    *bam.Iterator
	lastPos int
}

func (it *indexedIterator) Next() (camo.Read, error) {
	for it.iter.Next() {
		rec := it.iter.Record()
		// Chunks may start in a neighbouring contig's block
		if rec.Ref == nil || rec.Ref.ID() != it.contig.Index {
			if rec.Ref == nil || rec.Flags&sam.Unmapped != 0 {
				continue
			}
			if rec.Ref.ID() > it.contig.Index {
				return camo.Read{}, io.EOF
			}
			continue
		}

		read, err := it.source.convert(rec, it.contig, &it.lastPos)
		if err == errFiltered {
			continue
		}
		return read, err
	}
	if err := it.iter.Error(); err != nil {
		return camo.Read{}, fmt.Errorf("failed to read BAM record: %w", err)
	}
	return camo.Read{}, io.EOF
}

func (it *indexedIterator) Close() error {
	it.iter.Close()
	it.reader.Close()
	return it.file.Close()
}

// emptyIterator is returned for contigs with no alignments
type emptyIterator struct{}

func (emptyIterator) Next() (camo.Read, error) { return camo.Read{}, io.EOF }
func (emptyIterator) Close() error            { return nil }

// Package reference looks up reference bases in a faidx-indexed FASTA file.
package reference

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/biogo/hts/fai"
	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// DefaultBlockSize is the number of bases loaded per cache refill
const DefaultBlockSize = 1 << 20

// block is a cached stretch of one contig
type block struct {
	start int
	seq   []byte
}

// Fasta serves single bases from an indexed FASTA file.
// It keeps one cached block per contig and is safe for concurrent use.
type Fasta struct {
	path      string
	file      *os.File
	fa        *fai.File
	index     fai.Index
	blockSize int

	mu     sync.Mutex
	blocks map[string]*block
}

// Open opens path and its path.fai index. Both must exist.
func Open(path string) (*Fasta, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &camo.InputError{Kind: "reference", Path: path, Err: err}
	}

	idxPath := path + ".fai"
	idxFile, err := os.Open(idxPath)
	if err != nil {
		return nil, &camo.InputError{
			Kind: "reference index",
			Path: idxPath,
			Err:  fmt.Errorf("%w (create it with 'samtools faidx')", err),
		}
	}
	defer idxFile.Close()

	idx, err := fai.ReadFrom(idxFile)
	if err != nil {
		return nil, &camo.InputError{Kind: "reference index", Path: idxPath, Err: fmt.Errorf("failed to parse: %w", err)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &camo.InputError{Kind: "reference", Path: path, Err: err}
	}

	return &Fasta{
		path:      path,
		file:      f,
		fa:        fai.NewFile(f, idx),
		index:     idx,
		blockSize: DefaultBlockSize,
		blocks:    make(map[string]*block),
	}, nil
}

// SetBlockSize changes the cache refill size; mainly for tests
func (f *Fasta) SetBlockSize(n int) {
	if n > 0 {
		f.blockSize = n
	}
}

// Length returns the length of a contig and whether it is indexed
func (f *Fasta) Length(contig string) (int, bool) {
	rec, ok := f.index[contig]
	return rec.Length, ok
}

// Base implements camo.ReferenceOracle
func (f *Fasta) Base(contig string, pos int) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b := f.blocks[contig]
	if b == nil || pos < b.start || pos >= b.start+len(b.seq) {
		var err error
		b, err = f.load(contig, pos)
		if err != nil {
			return 0, err
		}
		f.blocks[contig] = b
	}
	return b.seq[pos-b.start], nil
}

// load reads the block containing pos
func (f *Fasta) load(contig string, pos int) (*block, error) {
	rec, ok := f.index[contig]
	if !ok {
		return nil, fmt.Errorf("contig %s not in reference index", contig)
	}
	if pos < 0 || pos >= rec.Length {
		return nil, fmt.Errorf("position %d outside %s (length %d)", pos, contig, rec.Length)
	}

	start := pos - pos%f.blockSize
	end := start + f.blockSize
	if end > rec.Length {
		end = rec.Length
	}

	r, err := f.fa.SeqRange(contig, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to seek %s:%d-%d: %w", contig, start, end, err)
	}

	seq := make([]byte, end-start)
	if _, err := io.ReadFull(r, seq); err != nil {
		return nil, fmt.Errorf("failed to read %s:%d-%d: %w", contig, start, end, err)
	}
	return &block{start: start, seq: seq}, nil
}

// CheckContigs verifies every contig exists in the reference with the
// same length
func (f *Fasta) CheckContigs(contigs []camo.Contig) error {
	for _, c := range contigs {
		length, ok := f.Length(c.Name)
		if !ok {
			return &camo.InputError{
				Kind: "reference",
				Path: f.path,
				Err:  fmt.Errorf("contig %s from the alignment header is missing", c.Name),
			}
		}
		if length != c.Length {
			return &camo.InputError{
				Kind: "reference",
				Path: f.path,
				Err:  fmt.Errorf("contig %s has length %d, alignment header says %d", c.Name, length, c.Length),
			}
		}
	}
	return nil
}

// Close closes the FASTA file
func (f *Fasta) Close() error {
	return f.file.Close()
}

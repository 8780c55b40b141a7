package camo

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const spillBufferSize = 1 << 20

// SpillFile tracks a temporary file holding one contig's output
type SpillFile struct {
	Path      string
	Regions   int
	Loci      int
	SizeBytes int64
}

// spillRecord is one gob-encoded entry; exactly one field is set
type spillRecord struct {
	Region *Region
	Locus  *LocusRecord
}

// SpillWriter buffers a contig's regions and loci on disk so contigs
// walked in parallel can be replayed in header order
type SpillWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *gob.Encoder
	regions int
	loci    int
}

// NewSpillWriter creates a spill file for the contig at index
func NewSpillWriter(dir string, index int) (*SpillWriter, error) {
	path := filepath.Join(dir, fmt.Sprintf("contig-%06d.spill", index))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create spill file: %w", err)
	}

	writer := bufio.NewWriterSize(file, spillBufferSize)
	return &SpillWriter{
		file:    file,
		writer:  writer,
		encoder: gob.NewEncoder(writer),
	}, nil
}

// EmitRegion implements RegionEmitter
func (sw *SpillWriter) EmitRegion(r Region) error {
	if err := sw.encoder.Encode(spillRecord{Region: &r}); err != nil {
		return fmt.Errorf("failed to spill region: %w", err)
	}
	sw.regions++
	return nil
}

// EmitLocus implements LocusEmitter
func (sw *SpillWriter) EmitLocus(rec LocusRecord) error {
	if err := sw.encoder.Encode(spillRecord{Locus: &rec}); err != nil {
		return fmt.Errorf("failed to spill locus: %w", err)
	}
	sw.loci++
	return nil
}

// Close flushes and closes the spill file
func (sw *SpillWriter) Close() (SpillFile, error) {
	if err := sw.writer.Flush(); err != nil {
		sw.file.Close()
		return SpillFile{}, fmt.Errorf("failed to flush spill file: %w", err)
	}

	path := sw.file.Name()
	if err := sw.file.Close(); err != nil {
		return SpillFile{}, fmt.Errorf("failed to close spill file: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return SpillFile{}, fmt.Errorf("failed to stat spill file: %w", err)
	}

	return SpillFile{
		Path:      path,
		Regions:   sw.regions,
		Loci:      sw.loci,
		SizeBytes: stat.Size(),
	}, nil
}

// ReplaySpill sends every record of a spill file to out, in the order
// it was written
func ReplaySpill(path string, out Outputs) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open spill file: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(bufio.NewReaderSize(file, spillBufferSize))
	for {
		var rec spillRecord
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to decode spill record: %w", err)
		}

		switch {
		case rec.Region != nil:
			if err := out.EmitRegion(*rec.Region); err != nil {
				return err
			}
		case rec.Locus != nil:
			if err := out.EmitLocus(*rec.Locus); err != nil {
				return err
			}
		}
	}
}

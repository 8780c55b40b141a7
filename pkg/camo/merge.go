package camo

import "fmt"

// RegionEmitter receives finalized regions of a single classification
type RegionEmitter interface {
	EmitRegion(Region) error
}

// LocusEmitter receives per-locus detail records
type LocusEmitter interface {
	EmitLocus(LocusRecord) error
}

// Merger turns the per-locus classifications of one contig into regions.
//
// It is either idle or building a region of one class that started at
// start. A change of class, a gap in positions, or Close finalizes the
// open region; regions shorter than MinRegionSize are dropped.
type Merger struct {
	cfg    *Config
	contig string
	out    RegionEmitter

	building bool
	class    Classification
	start    int
	last     int

	tally *Tally
}

// NewMerger creates a merger for one contig
func NewMerger(contig string, cfg *Config, out RegionEmitter) *Merger {
	return &Merger{
		cfg:    cfg,
		contig: contig,
		out:    out,
		last:   -1,
		tally:  NewTally(),
	}
}

// Add records the classification of pos
func (m *Merger) Add(pos int, c Classification) error {
	if pos <= m.last {
		return &InvariantError{
			Contig: m.contig,
			Pos:    pos,
			Reason: fmt.Sprintf("position not after %d", m.last),
		}
	}

	if m.building && (c != m.class || pos != m.last+1) {
		if err := m.finalize(m.last + 1); err != nil {
			return err
		}
	}
	m.last = pos

	if !m.building && c != None {
		m.building = true
		m.class = c
		m.start = pos
	}
	return nil
}

// Close finalizes any open region at the last position seen
func (m *Merger) Close() error {
	if !m.building {
		return nil
	}
	return m.finalize(m.last + 1)
}

// Tally returns the region counts of this contig
func (m *Merger) Tally() *Tally {
	return m.tally
}

func (m *Merger) finalize(end int) error {
	r := Region{Contig: m.contig, Start: m.start, End: end, Class: m.class}
	m.building = false

	if r.Len() < m.cfg.MinRegionSize {
		m.tally.Dropped[r.Class]++
		return nil
	}
	m.tally.Regions[r.Class]++
	m.tally.RegionBases[r.Class] += int64(r.Len())
	if m.out == nil {
		return nil
	}
	if err := m.out.EmitRegion(r); err != nil {
		return fmt.Errorf("failed to emit region %s: %w", r, err)
	}
	return nil
}

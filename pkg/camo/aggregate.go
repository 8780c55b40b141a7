package camo

import (
	"container/heap"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// ReadIterator yields reads of one contig in ascending start order.
// Next returns io.EOF when the contig is exhausted.
type ReadIterator interface {
	Next() (Read, error)
	Close() error
}

// activeHeap holds the reads overlapping the current locus, ordered by end
type activeHeap []Read

func (h activeHeap) Len() int           { return len(h) }
func (h activeHeap) Less(i, j int) bool { return h[i].End < h[j].End }
func (h activeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *activeHeap) Push(x interface{}) {
	*h = append(*h, x.(Read))
}

func (h *activeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// Aggregator reduces the reads overlapping each locus of a contig to a
// LocusStats. It is a sliding window: reads are pulled from the iterator
// as the walk reaches their start and dropped once the walk passes their end.
type Aggregator struct {
	cfg    *Config
	contig Contig
	reads  ReadIterator
	log    logrus.FieldLogger

	pending    Read
	hasPending bool
	exhausted  bool

	active activeHeap
	depth  int
	dark   int
	camo   int

	last    int
	skipped int64
}

// NewAggregator creates an aggregator for one contig
func NewAggregator(contig Contig, reads ReadIterator, cfg *Config, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{
		cfg:    cfg,
		contig: contig,
		reads:  reads,
		log:    log,
		last:   -1,
	}
}

// At returns the statistics for pos. Positions must be requested in
// ascending order.
func (a *Aggregator) At(pos int) (LocusStats, error) {
	if pos <= a.last {
		return LocusStats{}, &InvariantError{
			Contig: a.contig.Name,
			Pos:    pos,
			Reason: fmt.Sprintf("locus requested after %d", a.last),
		}
	}
	a.last = pos

	// Admit reads starting at or before pos
	for {
		if !a.hasPending {
			if a.exhausted {
				break
			}
			if err := a.advance(); err != nil {
				return LocusStats{}, err
			}
			if !a.hasPending {
				break
			}
		}
		if a.pending.Start > pos {
			break
		}
		a.admit(a.pending)
		a.hasPending = false
	}

	// Evict reads that ended before pos
	for len(a.active) > 0 && a.active[0].End <= pos {
		a.evict(heap.Pop(&a.active).(Read))
	}

	stats := LocusStats{Depth: a.depth, DarkReads: a.dark, CamoReads: a.camo}
	if err := stats.Validate(); err != nil {
		var inv *InvariantError
		if errors.As(err, &inv) {
			inv.Contig = a.contig.Name
			inv.Pos = pos
		}
		return LocusStats{}, err
	}
	return stats, nil
}

// advance pulls the next usable read into pending, applying the
// validation stringency to malformed records
func (a *Aggregator) advance() error {
	for {
		read, err := a.reads.Next()
		if err == io.EOF {
			a.exhausted = true
			return nil
		}
		if err != nil {
			var malformed *MalformedRecordError
			if !errors.As(err, &malformed) {
				return fmt.Errorf("failed to read alignments for %s: %w", a.contig.Name, err)
			}
			switch a.cfg.Stringency {
			case Strict:
				return err
			case Lenient:
				a.log.WithFields(logrus.Fields{
					"contig": malformed.Contig,
					"read":   malformed.Name,
					"pos":    malformed.Pos,
				}).Warnf("skipping malformed record: %s", malformed.Reason)
			}
			a.skipped++
			continue
		}
		if read.End < read.Start {
			return &InvariantError{
				Contig: a.contig.Name,
				Pos:    read.Start,
				Reason: fmt.Sprintf("read %q ends before it starts", read.Name),
			}
		}
		a.pending = read
		a.hasPending = true
		return nil
	}
}

func (a *Aggregator) admit(r Read) {
	heap.Push(&a.active, r)
	a.depth++
	if r.MapQ < DarkMapQCutoff {
		a.dark++
	}
	if r.MapQ <= a.cfg.CamoMapQThreshold {
		a.camo++
	}
}

func (a *Aggregator) evict(r Read) {
	a.depth--
	if r.MapQ < DarkMapQCutoff {
		a.dark--
	}
	if r.MapQ <= a.cfg.CamoMapQThreshold {
		a.camo--
	}
}

// Drain consumes the reads left after the last locus so malformed
// records past the contig end are still reported
func (a *Aggregator) Drain() error {
	for {
		a.hasPending = false
		if a.exhausted {
			return nil
		}
		if err := a.advance(); err != nil {
			return err
		}
	}
}

// Skipped returns the number of malformed records dropped so far
func (a *Aggregator) Skipped() int64 {
	return a.skipped
}

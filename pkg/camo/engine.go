package camo

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// AlignmentSource supplies the contigs to walk and, per contig, the reads
// aligned to it in ascending start order
type AlignmentSource interface {
	Contigs() []Contig
	Reads(ctx context.Context, c Contig) (ReadIterator, error)
}

// ConcurrentSource is implemented by sources whose Reads may be called
// for different contigs from several goroutines at once
type ConcurrentSource interface {
	Concurrent() bool
}

// ReferenceOracle returns the reference base at a 0-based position.
// Implementations used with Workers > 1 must be safe for concurrent use.
type ReferenceOracle interface {
	Base(contig string, pos int) (byte, error)
}

// ProgressFunc is called with the number of loci walked since the last call
type ProgressFunc func(loci int64)

// Options controls how the engine schedules work
type Options struct {
	Workers  int      // contigs processed in parallel (<= 1 is sequential)
	Contigs  []string // restrict the walk to these contigs (all if empty)
	TempDir  string   // spill directory for parallel runs
	Log      logrus.FieldLogger
	Progress ProgressFunc
}

// checkEvery is the number of loci between context and progress checks
const checkEvery = 1 << 16

// Engine walks every locus of every contig and emits classified regions
type Engine struct {
	cfg  *Config
	opts Options
	log  logrus.FieldLogger
}

// NewEngine validates cfg and creates an engine
func NewEngine(cfg *Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{cfg: cfg, opts: opts, log: log}, nil
}

// Run classifies every locus of the source and sends finalized regions to out
func (e *Engine) Run(ctx context.Context, src AlignmentSource, ref ReferenceOracle, out Outputs) (*Summary, error) {
	contigs, err := e.selectContigs(src.Contigs())
	if err != nil {
		return nil, err
	}

	workers := e.opts.Workers
	if cs, ok := src.(ConcurrentSource); !ok || !cs.Concurrent() {
		if workers > 1 {
			e.log.Debugf("alignment source is not indexed, walking %d contigs sequentially", len(contigs))
		}
		workers = 1
	}
	if workers > len(contigs) {
		workers = len(contigs)
	}
	if workers < 1 {
		workers = 1
	}

	summary := newSummary(workers)

	if workers == 1 {
		for _, c := range contigs {
			res, err := e.walkContig(ctx, src, ref, c, out)
			if err != nil {
				return nil, err
			}
			summary.addContig(res)
		}
	} else {
		if err := e.runParallel(ctx, src, ref, contigs, out, summary, workers); err != nil {
			return nil, err
		}
	}

	summary.finish()
	return summary, nil
}

// selectContigs applies the contig restriction, keeping header order
func (e *Engine) selectContigs(all []Contig) ([]Contig, error) {
	if len(e.opts.Contigs) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(e.opts.Contigs))
	for _, name := range e.opts.Contigs {
		wanted[name] = true
	}

	var selected []Contig
	for _, c := range all {
		if wanted[c.Name] {
			selected = append(selected, c)
			delete(wanted, c.Name)
		}
	}
	for name := range wanted {
		return nil, &ConfigError{Option: "contig", Value: name, Reason: "not present in the alignment header"}
	}
	return selected, nil
}

// contigResult carries the outcome of walking one contig
type contigResult struct {
	index   int
	loci    int64
	skipped int64
	tally   Tally
	spill   SpillFile
	err     error
}

// walkContig runs the aggregate-classify-merge pipeline over one contig
func (e *Engine) walkContig(ctx context.Context, src AlignmentSource, ref ReferenceOracle, c Contig, out Outputs) (contigResult, error) {
	res := contigResult{index: c.Index}
	log := e.log.WithField("contig", c.Name)
	log.Debugf("walking %d loci", c.Length)

	reads, err := src.Reads(ctx, c)
	if err != nil {
		return res, fmt.Errorf("failed to open reads for %s: %w", c.Name, err)
	}
	defer reads.Close()

	agg := NewAggregator(c, reads, e.cfg, log)
	merger := NewMerger(c.Name, e.cfg, out)
	tally := merger.Tally()
	wantLoci := out.wantsLoci()

	var sinceReport int64
	for pos := 0; pos < c.Length; pos++ {
		if pos%checkEvery == 0 && pos > 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			e.report(sinceReport)
			sinceReport = 0
		}

		stats, err := agg.At(pos)
		if err != nil {
			return res, err
		}
		base, err := ref.Base(c.Name, pos)
		if err != nil {
			return res, fmt.Errorf("failed to read reference base %s:%d: %w", c.Name, pos, err)
		}

		class := Classify(stats, base, e.cfg)
		tally.Loci[class]++
		sinceReport++

		if wantLoci && class != None {
			rec := LocusRecord{Contig: c.Name, Pos: pos, Base: base, Stats: stats, Class: class}
			if err := out.EmitLocus(rec); err != nil {
				return res, fmt.Errorf("failed to emit locus %s:%d: %w", c.Name, pos, err)
			}
		}

		if err := merger.Add(pos, class); err != nil {
			return res, err
		}
	}

	if err := merger.Close(); err != nil {
		return res, err
	}
	if err := agg.Drain(); err != nil {
		return res, err
	}
	e.report(sinceReport)

	res.loci = int64(c.Length)
	res.skipped = agg.Skipped()
	res.tally = *tally
	return res, nil
}

func (e *Engine) report(loci int64) {
	if e.opts.Progress != nil && loci > 0 {
		e.opts.Progress(loci)
	}
}

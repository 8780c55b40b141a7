package camo

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// contigJob is one contig handed to a worker
type contigJob struct {
	contig Contig
	order  int // position in the walk, used to replay output in order
}

// runParallel walks contigs with a worker pool. Each worker spills its
// contig's output to disk and the collector replays finished spills in
// walk order, so the emitters see exactly what a sequential run produces.
func (e *Engine) runParallel(ctx context.Context, src AlignmentSource, ref ReferenceOracle, contigs []Contig, out Outputs, summary *Summary, workers int) error {
	spillDir, err := os.MkdirTemp(e.opts.TempDir, "camofinder-spill-*")
	if err != nil {
		return fmt.Errorf("failed to create spill directory: %w", err)
	}
	defer os.RemoveAll(spillDir)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan contigJob)
	results := make(chan contigResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range jobs {
				res := e.spillContig(ctx, src, ref, job, spillDir, out.wantsLoci())
				if res.err != nil {
					res.err = fmt.Errorf("worker %d failed on %s: %w", id, job.contig.Name, res.err)
				}
				results <- res
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for i, c := range contigs {
			select {
			case jobs <- contigJob{contig: c, order: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	finished := make(map[int]contigResult)
	next := 0
	var firstErr error

	for res := range results {
		if firstErr != nil {
			os.Remove(res.spill.Path)
			continue
		}
		if res.err != nil {
			firstErr = res.err
			cancel()
			continue
		}

		finished[res.index] = res
		for {
			r, ok := finished[next]
			if !ok {
				break
			}
			delete(finished, next)

			if err := ReplaySpill(r.spill.Path, out); err != nil {
				firstErr = fmt.Errorf("failed to replay %s: %w", contigs[next].Name, err)
				cancel()
				break
			}
			os.Remove(r.spill.Path)
			summary.addContig(r)
			next++
		}
	}

	return firstErr
}

// spillContig walks one contig into its own spill file. The result's
// index is the walk order, not the header index.
func (e *Engine) spillContig(ctx context.Context, src AlignmentSource, ref ReferenceOracle, job contigJob, dir string, wantLoci bool) contigResult {
	sw, err := NewSpillWriter(dir, job.order)
	if err != nil {
		return contigResult{index: job.order, err: err}
	}

	spillOut := Outputs{Camouflaged: sw, Dark: sw, Incomplete: sw}
	if wantLoci {
		spillOut.Loci = sw
	}

	res, walkErr := e.walkContig(ctx, src, ref, job.contig, spillOut)
	spill, closeErr := sw.Close()
	res.index = job.order
	res.spill = spill
	if spill.Path == "" {
		res.spill.Path = sw.file.Name()
	}

	switch {
	case walkErr != nil:
		res.err = walkErr
	case closeErr != nil:
		res.err = closeErr
	}
	return res
}

package camo

import (
	"fmt"
	"time"
)

const numClasses = int(Camouflaged) + 1

// Tally counts loci and regions per classification
type Tally struct {
	Loci        [numClasses]int64
	Regions     [numClasses]int64
	RegionBases [numClasses]int64
	Dropped     [numClasses]int64 // regions below MinRegionSize
}

// NewTally creates an empty tally
func NewTally() *Tally {
	return &Tally{}
}

// Add merges other into t
func (t *Tally) Add(other *Tally) {
	for i := 0; i < numClasses; i++ {
		t.Loci[i] += other.Loci[i]
		t.Regions[i] += other.Regions[i]
		t.RegionBases[i] += other.RegionBases[i]
		t.Dropped[i] += other.Dropped[i]
	}
}

// ClassSummary is the JSON form of one classification's counts
type ClassSummary struct {
	Loci        int64 `json:"loci"`
	Regions     int64 `json:"regions"`
	RegionBases int64 `json:"region_bases"`
	Dropped     int64 `json:"dropped_regions"`
}

// Summary describes a completed run
type Summary struct {
	Contigs        int                     `json:"contigs"`
	Loci           int64                   `json:"loci"`
	MalformedReads int64                   `json:"malformed_reads"`
	FilteredReads  int64                   `json:"filtered_reads"`
	Classes        map[string]ClassSummary `json:"classes"`
	Workers        int                     `json:"workers"`
	StartTime      time.Time               `json:"start_time"`
	Elapsed        string                  `json:"elapsed"`

	tally   Tally
	elapsed time.Duration
}

func newSummary(workers int) *Summary {
	return &Summary{
		Workers:   workers,
		StartTime: time.Now(),
	}
}

// addContig folds a finished contig into the summary
func (s *Summary) addContig(res contigResult) {
	s.Contigs++
	s.Loci += res.loci
	s.MalformedReads += res.skipped
	s.tally.Add(&res.tally)
}

func (s *Summary) finish() {
	s.elapsed = time.Since(s.StartTime)
	s.Elapsed = formatDuration(s.elapsed)
	s.Classes = make(map[string]ClassSummary, len(Classes))
	for _, c := range Classes {
		s.Classes[c.String()] = s.Class(c)
	}
}

// Class returns the counts for one classification
func (s *Summary) Class(c Classification) ClassSummary {
	return ClassSummary{
		Loci:        s.tally.Loci[c],
		Regions:     s.tally.Regions[c],
		RegionBases: s.tally.RegionBases[c],
		Dropped:     s.tally.Dropped[c],
	}
}

// Duration returns the wall time of the run
func (s *Summary) Duration() time.Duration {
	return s.elapsed
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

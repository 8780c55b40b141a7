package camo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// regionRecorder collects emitted regions
type regionRecorder struct {
	regions []Region
	loci    []LocusRecord
	err     error
}

func (r *regionRecorder) EmitRegion(reg Region) error {
	if r.err != nil {
		return r.err
	}
	r.regions = append(r.regions, reg)
	return nil
}

func (r *regionRecorder) EmitLocus(rec LocusRecord) error {
	r.loci = append(r.loci, rec)
	return nil
}

// labels maps a compact string to classifications: . none, I, D, C
func labels(s string) []Classification {
	out := make([]Classification, len(s))
	for i, ch := range s {
		switch ch {
		case 'I':
			out[i] = Incomplete
		case 'D':
			out[i] = Dark
		case 'C':
			out[i] = Camouflaged
		default:
			out[i] = None
		}
	}
	return out
}

func mergeAll(t *testing.T, contig string, cfg *Config, classes []Classification) ([]Region, *Tally) {
	t.Helper()
	rec := &regionRecorder{}
	m := NewMerger(contig, cfg, rec)
	for pos, c := range classes {
		require.NoError(t, m.Add(pos, c))
	}
	require.NoError(t, m.Close())
	return rec.regions, m.Tally()
}

func TestMergerRuns(t *testing.T) {
	regions, tally := mergeAll(t, "chr1", NewConfig(), labels("..DDDCC.IID"))

	assert.Equal(t, []Region{
		{Contig: "chr1", Start: 2, End: 5, Class: Dark},
		{Contig: "chr1", Start: 5, End: 7, Class: Camouflaged},
		{Contig: "chr1", Start: 8, End: 10, Class: Incomplete},
		{Contig: "chr1", Start: 10, End: 11, Class: Dark},
	}, regions)
	assert.Equal(t, int64(2), tally.Regions[Dark])
	assert.Equal(t, int64(4), tally.RegionBases[Dark])
	assert.Equal(t, int64(2), tally.RegionBases[Camouflaged])
}

func TestMergerEmptyAndIdle(t *testing.T) {
	regions, _ := mergeAll(t, "chr1", NewConfig(), labels("....."))
	assert.Empty(t, regions)

	regions, _ = mergeAll(t, "chr1", NewConfig(), nil)
	assert.Empty(t, regions)
}

func TestMergerSizeFilter(t *testing.T) {
	cfg := NewConfig()
	cfg.MinRegionSize = 2

	regions, tally := mergeAll(t, "chr1", cfg, labels("C.DD.I"))

	// The single camo locus is dropped, not relabelled
	assert.Equal(t, []Region{{Contig: "chr1", Start: 2, End: 4, Class: Dark}}, regions)
	assert.Equal(t, int64(1), tally.Dropped[Camouflaged])
	assert.Equal(t, int64(1), tally.Dropped[Incomplete])
	assert.Zero(t, tally.Regions[Camouflaged])
}

func TestMergerChunkedRunIsIdempotent(t *testing.T) {
	whole, _ := mergeAll(t, "chr1", NewConfig(), labels("DDDDDDDD"))

	rec := &regionRecorder{}
	m := NewMerger("chr1", NewConfig(), rec)
	for pos := 0; pos < 8; pos++ {
		// One locus at a time, as separate calls
		require.NoError(t, m.Add(pos, Dark))
	}
	require.NoError(t, m.Close())

	assert.Equal(t, whole, rec.regions)
	assert.Equal(t, []Region{{Contig: "chr1", Start: 0, End: 8, Class: Dark}}, rec.regions)
}

func TestMergerContigIsolation(t *testing.T) {
	rec := &regionRecorder{}

	a := NewMerger("chrA", NewConfig(), rec)
	for pos := 0; pos < 3; pos++ {
		require.NoError(t, a.Add(pos, Camouflaged))
	}
	require.NoError(t, a.Close())

	b := NewMerger("chrB", NewConfig(), rec)
	for pos := 0; pos < 2; pos++ {
		require.NoError(t, b.Add(pos, Camouflaged))
	}
	require.NoError(t, b.Close())

	assert.Equal(t, []Region{
		{Contig: "chrA", Start: 0, End: 3, Class: Camouflaged},
		{Contig: "chrB", Start: 0, End: 2, Class: Camouflaged},
	}, rec.regions)
}

func TestMergerGapFinalizes(t *testing.T) {
	rec := &regionRecorder{}
	m := NewMerger("chr1", NewConfig(), rec)
	require.NoError(t, m.Add(3, Dark))
	require.NoError(t, m.Add(4, Dark))
	require.NoError(t, m.Add(7, Dark))
	require.NoError(t, m.Close())

	assert.Equal(t, []Region{
		{Contig: "chr1", Start: 3, End: 5, Class: Dark},
		{Contig: "chr1", Start: 7, End: 8, Class: Dark},
	}, rec.regions)
}

func TestMergerRejectsOutOfOrder(t *testing.T) {
	m := NewMerger("chr1", NewConfig(), nil)
	require.NoError(t, m.Add(5, Dark))

	err := m.Add(5, Dark)
	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, 5, inv.Pos)

	assert.Error(t, m.Add(1, Dark))
}

func TestMergerEmitError(t *testing.T) {
	boom := errors.New("write failed")
	m := NewMerger("chr1", NewConfig(), &regionRecorder{err: boom})
	require.NoError(t, m.Add(0, Dark))

	err := m.Add(1, None)
	assert.ErrorIs(t, err, boom)
}

// TestMergerRoundTrip rebuilds the labelling from emitted regions
func TestMergerRoundTrip(t *testing.T) {
	input := labels("DDD..CCCCI.ID.DDDDCC..III")

	for _, minSize := range []int{1, 2, 3} {
		cfg := NewConfig()
		cfg.MinRegionSize = minSize
		regions, _ := mergeAll(t, "chr1", cfg, input)

		rebuilt := make([]Classification, len(input))
		for _, r := range regions {
			for p := r.Start; p < r.End; p++ {
				assert.Equal(t, None, rebuilt[p], "overlapping regions at %d", p)
				rebuilt[p] = r.Class
			}
		}

		// Expected: input with runs shorter than minSize blanked out
		want := make([]Classification, len(input))
		for start := 0; start < len(input); {
			end := start + 1
			for end < len(input) && input[end] == input[start] {
				end++
			}
			if input[start] != None && end-start >= minSize {
				copy(want[start:end], input[start:end])
			}
			start = end
		}
		assert.Equal(t, want, rebuilt, "min region size %d", minSize)
	}
}

func TestOutputsRouting(t *testing.T) {
	camo, dark := &regionRecorder{}, &regionRecorder{}
	out := Outputs{Camouflaged: camo, Dark: dark}

	require.NoError(t, out.EmitRegion(Region{Contig: "c", Start: 0, End: 1, Class: Camouflaged}))
	require.NoError(t, out.EmitRegion(Region{Contig: "c", Start: 1, End: 2, Class: Dark}))
	// Incomplete has no emitter and is discarded
	require.NoError(t, out.EmitRegion(Region{Contig: "c", Start: 2, End: 3, Class: Incomplete}))

	assert.Len(t, camo.regions, 1)
	assert.Len(t, dark.regions, 1)
	assert.Equal(t, Camouflaged, camo.regions[0].Class)
	assert.Equal(t, Dark, dark.regions[0].Class)

	var inv *InvariantError
	assert.True(t, errors.As(out.EmitRegion(Region{Class: None}), &inv))
	assert.NoError(t, out.EmitLocus(LocusRecord{}))
}

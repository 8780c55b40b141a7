package camo

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// item is a read or an error yielded by sliceIterator
type item struct {
	read Read
	err  error
}

// sliceIterator replays a fixed list of reads and errors
type sliceIterator struct {
	items  []item
	closed bool
}

func readsOf(reads ...Read) *sliceIterator {
	it := &sliceIterator{}
	for _, r := range reads {
		it.items = append(it.items, item{read: r})
	}
	return it
}

func (it *sliceIterator) Next() (Read, error) {
	if len(it.items) == 0 {
		return Read{}, io.EOF
	}
	next := it.items[0]
	it.items = it.items[1:]
	return next.read, next.err
}

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func collectStats(t *testing.T, agg *Aggregator, length int) []LocusStats {
	t.Helper()
	out := make([]LocusStats, length)
	for pos := 0; pos < length; pos++ {
		s, err := agg.At(pos)
		require.NoError(t, err, "pos %d", pos)
		out[pos] = s
	}
	return out
}

func TestAggregatorSpan(t *testing.T) {
	cfg := NewConfig()
	contig := Contig{Name: "chr1", Length: 10}

	reads := readsOf(
		Read{Name: "a", Start: 1, End: 4, MapQ: 60}, // covers 1,2,3
		Read{Name: "b", Start: 2, End: 6, MapQ: 0},  // covers 2..5
		Read{Name: "c", Start: 2, End: 3, MapQ: 5},  // covers 2
		Read{Name: "d", Start: 8, End: 10, MapQ: 9}, // covers 8,9
	)
	agg := NewAggregator(contig, reads, cfg, quietLogger())
	stats := collectStats(t, agg, contig.Length)

	assert.Equal(t, []LocusStats{
		{},
		{Depth: 1},
		{Depth: 3, DarkReads: 2, CamoReads: 1},
		{Depth: 2, DarkReads: 1, CamoReads: 1},
		{Depth: 1, DarkReads: 1, CamoReads: 1},
		{Depth: 1, DarkReads: 1, CamoReads: 1},
		{},
		{},
		{Depth: 1, DarkReads: 1},
		{Depth: 1, DarkReads: 1},
	}, stats)
	assert.NoError(t, agg.Drain())
}

func TestAggregatorCamoThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.CamoMapQThreshold = 3

	reads := readsOf(
		Read{Start: 0, End: 1, MapQ: 0},
		Read{Start: 0, End: 1, MapQ: 3},
		Read{Start: 0, End: 1, MapQ: 4},
		Read{Start: 0, End: 1, MapQ: 10},
		Read{Start: 0, End: 1, MapQ: 255},
	)
	agg := NewAggregator(Contig{Name: "chr1", Length: 1}, reads, cfg, quietLogger())

	s, err := agg.At(0)
	require.NoError(t, err)
	assert.Equal(t, LocusStats{Depth: 5, DarkReads: 3, CamoReads: 2}, s)
}

func TestAggregatorRejectsRepeatedPosition(t *testing.T) {
	agg := NewAggregator(Contig{Name: "chr1", Length: 5}, readsOf(), NewConfig(), quietLogger())

	_, err := agg.At(2)
	require.NoError(t, err)

	_, err = agg.At(2)
	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "chr1", inv.Contig)
	assert.Equal(t, 2, inv.Pos)
}

func TestAggregatorRejectsInvertedRead(t *testing.T) {
	reads := readsOf(Read{Name: "bad", Start: 5, End: 2})
	agg := NewAggregator(Contig{Name: "chr1", Length: 10}, reads, NewConfig(), quietLogger())

	_, err := agg.At(0)
	var inv *InvariantError
	assert.True(t, errors.As(err, &inv))
}

func malformedReads() *sliceIterator {
	return &sliceIterator{items: []item{
		{read: Read{Name: "ok1", Start: 0, End: 3, MapQ: 60}},
		{err: &MalformedRecordError{Contig: "chr1", Name: "broken", Pos: 1, Reason: "bad CIGAR"}},
		{read: Read{Name: "ok2", Start: 2, End: 4, MapQ: 0}},
	}}
}

func TestAggregatorStringency(t *testing.T) {
	contig := Contig{Name: "chr1", Length: 5}

	t.Run("strict aborts", func(t *testing.T) {
		agg := NewAggregator(contig, malformedReads(), NewConfig(), quietLogger())

		var err error
		for pos := 0; pos < contig.Length && err == nil; pos++ {
			_, err = agg.At(pos)
		}
		var malformed *MalformedRecordError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, "broken", malformed.Name)
	})

	t.Run("lenient warns and skips", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Stringency = Lenient

		var buf bytes.Buffer
		log := logrus.New()
		log.SetOutput(&buf)

		agg := NewAggregator(contig, malformedReads(), cfg, log)
		stats := collectStats(t, agg, contig.Length)

		assert.Equal(t, LocusStats{Depth: 2, DarkReads: 1, CamoReads: 1}, stats[2])
		assert.Equal(t, int64(1), agg.Skipped())
		assert.Contains(t, buf.String(), "skipping malformed record")
		assert.Contains(t, buf.String(), "broken")
	})

	t.Run("silent skips quietly", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Stringency = Silent

		var buf bytes.Buffer
		log := logrus.New()
		log.SetOutput(&buf)

		agg := NewAggregator(contig, malformedReads(), cfg, log)
		stats := collectStats(t, agg, contig.Length)

		assert.Equal(t, LocusStats{Depth: 2, DarkReads: 1, CamoReads: 1}, stats[2])
		assert.Equal(t, int64(1), agg.Skipped())
		assert.Empty(t, buf.String())
	})
}

func TestAggregatorWrapsSourceErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	reads := &sliceIterator{items: []item{{err: boom}}}
	cfg := NewConfig()
	cfg.Stringency = Silent

	agg := NewAggregator(Contig{Name: "chr7", Length: 3}, reads, cfg, quietLogger())
	_, err := agg.At(0)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "chr7")
}

func TestAggregatorDrain(t *testing.T) {
	cfg := NewConfig()
	cfg.Stringency = Lenient

	reads := &sliceIterator{items: []item{
		{read: Read{Start: 0, End: 1}},
		{read: Read{Start: 1, End: 2}},
		{err: &MalformedRecordError{Contig: "chr1", Name: "late", Pos: 9, Reason: "past end"}},
	}}
	agg := NewAggregator(Contig{Name: "chr1", Length: 1}, reads, cfg, quietLogger())

	_, err := agg.At(0)
	require.NoError(t, err)
	require.NoError(t, agg.Drain())
	assert.Equal(t, int64(1), agg.Skipped())
	assert.Empty(t, reads.items)
}

package bed

import (
	"context"
	"fmt"
	"io"

	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// Paths names the output destinations. An empty path disables that output.
type Paths struct {
	Camouflaged string
	Dark        string
	Incomplete  string
	Loci        string
}

// Set owns the open writers for one run
type Set struct {
	Outputs camo.Outputs
	Writers map[camo.Classification]*Writer
	Loci    *LocusWriter

	closers []io.Closer
}

// OpenSet opens every configured destination
func OpenSet(ctx context.Context, paths Paths) (*Set, error) {
	s := &Set{Writers: make(map[camo.Classification]*Writer)}

	for _, target := range []struct {
		class camo.Classification
		path  string
		slot  *camo.RegionEmitter
	}{
		{camo.Camouflaged, paths.Camouflaged, &s.Outputs.Camouflaged},
		{camo.Dark, paths.Dark, &s.Outputs.Dark},
		{camo.Incomplete, paths.Incomplete, &s.Outputs.Incomplete},
	} {
		if target.path == "" {
			continue
		}
		dst, err := Create(ctx, target.path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open %s output %s: %w", target.class, target.path, err)
		}
		w := NewWriter(dst, target.class)
		s.Writers[target.class] = w
		*target.slot = w
		s.closers = append(s.closers, w)
	}

	if paths.Loci != "" {
		dst, err := Create(ctx, paths.Loci)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open locus output %s: %w", paths.Loci, err)
		}
		s.Loci = NewLocusWriter(dst)
		s.Outputs.Loci = s.Loci
		s.closers = append(s.closers, s.Loci)
	}

	return s, nil
}

// Close flushes and closes every writer, returning the first error
func (s *Set) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

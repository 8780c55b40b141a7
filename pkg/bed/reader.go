package bed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scttfrdmn/camofinder/pkg/camo"
)

// ReadRegions parses 3-column BED records, labelling them with class.
// Comment, track and browser lines are skipped.
func ReadRegions(r io.Reader, class camo.Classification) ([]camo.Region, error) {
	var regions []camo.Region

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 fields, got %d", lineNum, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid start: %w", lineNum, err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid end: %w", lineNum, err)
		}
		if end < start {
			return nil, fmt.Errorf("line %d: end %d before start %d", lineNum, end, start)
		}

		regions = append(regions, camo.Region{Contig: fields[0], Start: start, End: end, Class: class})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// ReadFile reads a BED file from any location Open accepts
func ReadFile(ctx context.Context, path string, class camo.Classification) ([]camo.Region, error) {
	r, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ReadRegions(r, class)
}

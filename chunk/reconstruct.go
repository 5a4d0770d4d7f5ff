package chunk

import (
	"iter"
	"strconv"
	"time"

	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/record"
	"github.com/ftdc-go/ftdc/scalar"
)

// Sample is one fully reconstructed document: the reference record's tree
// shape with every metric's value restored to its original scalar type for
// one particular sample index.
type Sample struct {
	ChunkID time.Time

	tree map[string]any
}

// Map returns the reconstructed document as a generic tree, the same shape
// record.DecodeDocument would have produced from the original record.
func (s Sample) Map() map[string]any { return s.tree }

// Sample reconstructs the document at the given index (0 is the reference
// sample itself). Every call decodes a fresh tree from Reference so callers
// may freely mutate the result of one call without affecting another.
func (c *Chunk) Sample(index int) (Sample, error) {
	if index < 0 || index >= c.NPoints {
		return Sample{}, errs.NewDecodeError(errs.ErrRangeError, index, "sample index out of bounds")
	}

	tree, err := record.DecodeDocument(c.Reference)
	if err != nil {
		return Sample{}, err
	}

	if err := applyMetrics(tree, c.Metrics, index); err != nil {
		return Sample{}, err
	}

	return Sample{ChunkID: c.ChunkID, tree: tree}, nil
}

// Samples streams every sample in the chunk in order. Following the
// teacher's decoder-iteration idiom, it stops early and silently on the
// first reconstruction error rather than returning one, since iter.Seq has
// no channel for it; callers that need the error should call Sample directly.
func (c *Chunk) Samples() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for i := 0; i < c.NPoints; i++ {
			s, err := c.Sample(i)
			if err != nil {
				return
			}

			if !yield(s) {
				return
			}
		}
	}
}

// applyMetrics overwrites tree in place with every metric's restored value
// at sample index, merging a TimestampSec/TimestampInc pair back into a
// single record.Timestamp at the field's original key.
func applyMetrics(tree map[string]any, metrics []Metric, index int) error {
	for i := 0; i < len(metrics); i++ {
		m := metrics[i]
		if m.Type == record.TimestampInc {
			continue // consumed alongside the preceding TimestampSec entry
		}

		value := m.Values[index]

		var restored any

		switch m.Type {
		case record.F64:
			restored = scalar.RestoreFloat(value)
		case record.I32:
			restored = int32(value) //nolint:gosec
		case record.I64:
			restored = value
		case record.Bool:
			restored = value != 0
		case record.DatetimeMS:
			restored = scalar.TimeFromEpochMS(value)
		case record.TimestampSec:
			var increment int64
			if i+1 < len(metrics) && metrics[i+1].Type == record.TimestampInc && metrics[i+1].KeyName == m.KeyName+".inc" {
				increment = metrics[i+1].Values[index]
			}

			restored = record.Timestamp{Seconds: uint32(value), Increment: uint32(increment)} //nolint:gosec
		default:
			restored = value
		}

		if err := setValue(tree, m.ParentPath, m.KeyName, restored); err != nil {
			return err
		}
	}

	return nil
}

func setValue(root map[string]any, parentPath []string, key string, value any) error {
	container, err := navigate(root, parentPath)
	if err != nil {
		return err
	}

	switch c := container.(type) {
	case map[string]any:
		c[key] = value
	case []any:
		idx, convErr := strconv.Atoi(key)
		if convErr != nil {
			return errs.NewDecodeError(errs.ErrCorrupt, 0, "array key is not numeric: "+key)
		}

		if idx < 0 || idx >= len(c) {
			return errs.NewDecodeError(errs.ErrRangeError, idx, "array index out of bounds")
		}

		c[idx] = value
	default:
		return errs.NewDecodeError(errs.ErrCorrupt, 0, "path does not resolve to a container")
	}

	return nil
}

func navigate(root map[string]any, path []string) (any, error) {
	var cur any = root

	for _, seg := range path {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, errs.NewDecodeError(errs.ErrCorrupt, 0, "missing path segment: "+seg)
			}

			cur = next

		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, errs.NewDecodeError(errs.ErrCorrupt, 0, "array path segment is not numeric: "+seg)
			}

			if idx < 0 || idx >= len(c) {
				return nil, errs.NewDecodeError(errs.ErrRangeError, idx, "array index out of bounds")
			}

			cur = c[idx]

		default:
			return nil, errs.NewDecodeError(errs.ErrCorrupt, 0, "path segment is not a container")
		}
	}

	return cur, nil
}

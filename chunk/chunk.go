// Package chunk decodes a single FTDC metric-chunk payload: the zlib
// envelope, the reference-sample header, and the varint+RLE delta matrix
// that reconstructs every metric's full time series. It plays the role
// the teacher's blob package plays for mebo blobs — owning the compressed
// payload's whole lifecycle from raw bytes to queryable series.
package chunk

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/record"
)

// metricCountTolerance is the relative margin (§4.D.6) within which a
// disagreement between the chunk header's metrics_count and the scanner's
// walk count is tolerated as a schema-drift warning rather than an error.
const metricCountTolerance = 0.02

// Metric is one fully reconstructed time series: the reference sample's
// metric identity plus the dense, undelta'd sequence of values for every
// sample in the chunk. len(Values) == Chunk.NPoints always holds.
type Metric struct {
	ParentPath []string
	KeyName    string
	Values     []int64
	Type       record.Type
}

// Path returns the dotted key for this metric, matching record.Metric.Path.
func (m Metric) Path() string {
	path := m.KeyName
	for i := len(m.ParentPath) - 1; i >= 0; i-- {
		path = m.ParentPath[i] + "." + path
	}

	return path
}

// First returns the reference (sample 0) value.
func (m Metric) First() int64 { return m.Values[0] }

// Last returns the final sample's value.
func (m Metric) Last() int64 { return m.Values[len(m.Values)-1] }

// Warning carries a non-fatal metrics-count discrepancy (§4.D.6, §7's soft
// Schema class): the header's declared metrics_count disagreed with the
// count the record scanner actually walked. When a Warning is kept on a
// decoded Chunk, decoding proceeded using the walk count; Warning only
// records that it happened.
type Warning struct {
	HeaderMetricsCount int
	ActualMetricsCount int
}

// Error lets a Warning be logged or wrapped like any other error, even
// though it is never returned as the failure of Decode.
func (w Warning) Error() string {
	return fmt.Sprintf("metrics_count header=%d actual=%d", w.HeaderMetricsCount, w.ActualMetricsCount)
}

// Metadata is the most recently observed metadata document at the time a
// chunk was decoded (§3 Chunk.metadata). It is shared, never copied, with
// every chunk decoded afterward in the same stream until a newer metadata
// record replaces it.
type Metadata struct {
	Raw []byte
	Doc map[string]any
}

// Chunk is a fully decoded metric-chunk payload.
type Chunk struct {
	// Reference holds the raw bytes of the reference record, self-delimited
	// by its own leading size prefix.
	Reference []byte

	// Metrics is the ordered list of time series discovered by the record
	// scanner's left-to-right, depth-first walk of Reference.
	Metrics []Metric

	// NPoints is the total number of samples: 1 reference + deltas_count.
	NPoints int

	// ChunkID is the timestamp of the framed record that carried this chunk.
	ChunkID time.Time

	// Metadata is the most recently seen metadata document, or nil if none
	// preceded this chunk in the stream.
	Metadata *Metadata

	// Warnings collects any non-fatal Schema discrepancies found while
	// decoding (always at most one: the metrics-count reconciliation).
	Warnings []Warning
}

// Decode decompresses and parses a chunk payload (the raw bytes of a
// METRIC_CHUNK framed record's `data` field) into a Chunk.
//
// chunkID is the enclosing framed record's timestamp; metadata is the
// most recently seen metadata document in the stream, attached as-is.
// When strict is true, any metrics_count/deltas_count disagreement (§4.D.6)
// is returned as errs.ErrSchema rather than tolerated within the usual
// margin and recorded as a Warning.
func Decode(payload []byte, chunkID time.Time, metadata *Metadata, strict bool) (*Chunk, error) {
	if len(payload) < 4 {
		return nil, errs.NewDecodeError(errs.ErrTruncated, 0, "chunk payload shorter than 4 bytes")
	}

	uncompressedSize := binary.LittleEndian.Uint32(payload[0:4])

	zr, err := zlib.NewReader(bytes.NewReader(payload[4:]))
	if err != nil {
		return nil, errs.NewDecodeError(errs.ErrCorrupt, 4, "zlib: "+err.Error())
	}
	defer zr.Close() //nolint:errcheck

	inflated, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.NewDecodeError(errs.ErrCorrupt, 4, "zlib inflate: "+err.Error())
	}

	if uint32(len(inflated)) != uncompressedSize { //nolint:gosec
		return nil, errs.NewDecodeError(errs.ErrCorrupt, 4,
			fmt.Sprintf("inflated size %d does not match declared size %d", len(inflated), uncompressedSize))
	}

	refMetrics, refLen, err := record.Scan(inflated)
	if err != nil {
		return nil, err
	}

	if refLen+8 > len(inflated) {
		return nil, errs.NewDecodeError(errs.ErrTruncated, refLen, "missing metrics_count/deltas_count")
	}

	headerMetricsCount := int(binary.LittleEndian.Uint32(inflated[refLen : refLen+4]))
	deltasCount := int(binary.LittleEndian.Uint32(inflated[refLen+4 : refLen+8]))
	actual := len(refMetrics)

	var warnings []Warning
	if actual != headerMetricsCount {
		if strict {
			return nil, errs.NewDecodeError(errs.ErrSchema, refLen,
				fmt.Sprintf("metrics_count header=%d actual=%d (strict mode)", headerMetricsCount, actual))
		}

		warnings = append(warnings, Warning{HeaderMetricsCount: headerMetricsCount, ActualMetricsCount: actual})

		if deltasCount > 0 && headerMetricsCount > 0 {
			diff := actual - headerMetricsCount
			if diff < 0 {
				diff = -diff
			}

			if float64(diff)/float64(headerMetricsCount) > metricCountTolerance {
				return nil, errs.NewDecodeError(errs.ErrSchema, refLen,
					fmt.Sprintf("metrics_count header=%d actual=%d exceeds %.0f%% tolerance",
						headerMetricsCount, actual, metricCountTolerance*100))
			}
		}
	}

	metrics := make([]Metric, actual)
	for i, rm := range refMetrics {
		values := make([]int64, 1, deltasCount+1)
		values[0] = rm.Value
		metrics[i] = Metric{ParentPath: rm.ParentPath, KeyName: rm.KeyName, Type: rm.Type, Values: values}
	}

	if deltasCount > 0 {
		deltas, release, err := decodeDeltaMatrix(inflated[refLen+8:], actual, deltasCount)
		if err != nil {
			return nil, err
		}

		for i := range metrics {
			acc := metrics[i].Values[0]
			for _, d := range deltas[i] {
				acc += d // 64-bit two's-complement wraparound is intentional, per §4.D.8.
				metrics[i].Values = append(metrics[i].Values, acc)
			}
		}

		release()
	}

	return &Chunk{
		Reference: inflated[:refLen],
		Metrics:   metrics,
		NPoints:   deltasCount + 1,
		ChunkID:   chunkID,
		Metadata:  metadata,
		Warnings:  warnings,
	}, nil
}

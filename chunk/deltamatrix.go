package chunk

import (
	"github.com/ftdc-go/ftdc/internal/pool"
	"github.com/ftdc-go/ftdc/scalar"
	"github.com/ftdc-go/ftdc/varint"
)

// decodeDeltaMatrix reads the varint+RLE delta matrix that follows a chunk's
// metrics_count/deltas_count header (§4.E). The matrix is metric-major: all
// deltasCount deltas for metric 0, then all of metric 1, and so on.
//
// Runs of zero deltas are run-length encoded as a literal 0 varint followed
// by a count-minus-one varint. Critically, a run started near the end of one
// metric's row can spill into the next metric's row — zerosRemaining is a
// single counter that persists across the metric-row boundary, never reset
// per metric.
//
// The returned matrix's backing storage comes from a pooled flat buffer;
// the caller must invoke the returned cleanup once it has finished reading
// the matrix (Decode's accumulate loop only reads each row once, so the
// matrix never needs to outlive the call that produced it).
func decodeDeltaMatrix(data []byte, metricsCount, deltasCount int) (matrix [][]int64, cleanup func(), err error) {
	flat, release := pool.GetInt64Slice(metricsCount * deltasCount)

	matrix = make([][]int64, metricsCount)
	for i := range matrix {
		matrix[i] = flat[i*deltasCount : (i+1)*deltasCount : (i+1)*deltasCount]
	}

	offset := 0
	zerosRemaining := 0

	for i := 0; i < metricsCount; i++ {
		for j := 0; j < deltasCount; j++ {
			if zerosRemaining > 0 {
				zerosRemaining--
				matrix[i][j] = 0 // pooled backing storage may carry stale values

				continue
			}

			v, n, err := varint.Decode(data[offset:])
			if err != nil {
				release()
				return nil, nil, err
			}
			offset += n

			if v != 0 {
				matrix[i][j] = scalar.VarintToSigned(v)
				continue
			}

			run, n2, err := varint.Decode(data[offset:])
			if err != nil {
				release()
				return nil, nil, err
			}
			offset += n2

			matrix[i][j] = 0 // pooled backing storage may carry stale values
			zerosRemaining = int(run) //nolint:gosec
		}
	}

	return matrix, release, nil
}

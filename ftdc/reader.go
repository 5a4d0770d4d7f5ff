package ftdc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"time"

	"github.com/ftdc-go/ftdc/chunk"
	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/internal/hash"
	"github.com/ftdc-go/ftdc/internal/options"
	"github.com/ftdc-go/ftdc/internal/pool"
)

// fmtDoc renders a decoded document deterministically for content hashing.
// fmt sorts map keys when formatting with %v, so this is stable across runs
// for a given document regardless of Go's randomized map iteration order.
func fmtDoc(doc map[string]any) string {
	return fmt.Sprintf("%v", doc)
}

// Reader decodes an FTDC file. Every Iter*/Metadata/TimeRange call performs
// its own complete, independent pass over the source starting from byte 0 —
// Reader itself carries no cursor between calls, only configuration and the
// handle to reread from.
type Reader struct {
	src    io.ReadSeeker
	closer io.Closer
	cfg    *readerConfig
}

// Open opens the FTDC file at path.
func Open(path string, opts ...OpenOption) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NewDecodeError(errs.ErrNotFound, 0, err.Error())
		}

		return nil, err
	}

	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, err
	}

	r.closer = f

	return r, nil
}

// NewReader wraps an already-open source. The source must support Seek
// since every Iter*/Metadata/TimeRange call rewinds to the start.
func NewReader(src io.ReadSeeker, opts ...OpenOption) (*Reader, error) {
	cfg := newReaderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Reader{src: src, cfg: cfg}, nil
}

// Close releases the underlying file, if Reader owns one (i.e. it was
// opened via Open rather than NewReader).
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

func (r *Reader) open() (*bufio.Reader, error) {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return bufio.NewReader(r.src), nil
}

// IterFramed streams every envelope document in the file in order.
func (r *Reader) IterFramed() iter.Seq2[FramedRecord, error] {
	return func(yield func(FramedRecord, error) bool) {
		br, err := r.open()
		if err != nil {
			yield(FramedRecord{}, err)
			return
		}

		scratch := pool.GetBlobBuffer()
		defer pool.PutBlobBuffer(scratch)

		for {
			fr, _, err := readEnvelope(br, r.cfg.sanityCap, scratch)
			if errors.Is(err, io.EOF) {
				return
			}

			if !yield(fr, err) {
				return
			}

			if err != nil {
				return
			}
		}
	}
}

// IterChunks streams every decoded metric chunk in the file, each with
// Chunk.Metadata set to the most recently seen metadata document.
func (r *Reader) IterChunks() iter.Seq2[*chunk.Chunk, error] {
	return func(yield func(*chunk.Chunk, error) bool) {
		br, err := r.open()
		if err != nil {
			yield(nil, err)
			return
		}

		var lastMetadata *chunk.Metadata

		var lastHash uint64

		haveHash := false

		scratch := pool.GetBlobBuffer()
		defer pool.PutBlobBuffer(scratch)

		for {
			fr, buf, err := readEnvelope(br, r.cfg.sanityCap, scratch)
			if errors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(nil, err)
				return
			}

			switch fr.Type {
			case DocMetadata:
				doc, ok := fr.Data.(map[string]any)
				if !ok {
					if !yield(nil, errs.NewDecodeError(errs.ErrSchema, 0, "metadata doc field is not a document")) {
						return
					}

					continue
				}

				if !r.cfg.metadataCache {
					continue
				}

				// buf aliases scratch and will be overwritten on the next
				// iteration; hash it now, but copy it before retaining it on
				// lastMetadata beyond this loop turn.
				id := hash.ID(string(buf))
				if !haveHash || id != lastHash {
					lastMetadata = &chunk.Metadata{Raw: append([]byte(nil), buf...), Doc: doc}
					lastHash = id
					haveHash = true
				}

			case DocPeriodicMetadata:
				// Yielded opaquely via IterFramed; it never updates
				// lastMetadata, matching the original reader's get_metadata/
				// iter_chunks, which only ever track type-0 METADATA.
				continue

			case DocMetricChunk:
				payload, ok := fr.Data.([]byte)
				if !ok {
					if !yield(nil, errs.NewDecodeError(errs.ErrSchema, 0, "metric chunk data field is not binary")) {
						return
					}

					continue
				}

				c, derr := chunk.Decode(payload, fr.ID, lastMetadata, r.cfg.strict)
				if !yield(c, derr) {
					return
				}

				if derr != nil {
					return
				}

			default:
				if !yield(nil, errs.NewDecodeError(errs.ErrCorrupt, 0, "invalid framed record type "+fr.Type.String())) {
					return
				}
			}
		}
	}
}

// IterSamples streams every reconstructed sample across all chunks whose
// ChunkID falls within [start, end] (either bound may be nil for
// unbounded). Chunks are assumed to appear in non-decreasing ChunkID order,
// so the scan stops as soon as a chunk's ChunkID exceeds end.
func (r *Reader) IterSamples(start, end *time.Time) iter.Seq2[chunk.Sample, error] {
	return func(yield func(chunk.Sample, error) bool) {
		for c, err := range r.IterChunks() {
			if err != nil {
				yield(chunk.Sample{}, err)
				return
			}

			if start != nil && c.ChunkID.Before(*start) {
				continue
			}

			if end != nil && c.ChunkID.After(*end) {
				return
			}

			for s := range c.Samples() {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

// Metadata returns every distinct METADATA (type 0) document seen in the
// file, in encounter order, deduplicated by exact content. PERIODIC_METADATA
// records are deltas against the prior metadata document, not full
// documents in their own right, and are not included here — read them via
// IterFramed if needed.
func (r *Reader) Metadata() ([]*chunk.Metadata, error) {
	var out []*chunk.Metadata

	seen := make(map[uint64]struct{})

	for fr, err := range r.IterFramed() {
		if err != nil {
			return out, err
		}

		if fr.Type != DocMetadata {
			continue
		}

		doc, ok := fr.Data.(map[string]any)
		if !ok {
			continue
		}

		id := hash.ID(fmtDoc(doc))
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, &chunk.Metadata{Doc: doc})
	}

	return out, nil
}

// TimeRange returns the ChunkID of the first and last METRIC_CHUNK
// envelope documents in the file. ok is false for a file with no chunks.
func (r *Reader) TimeRange() (first, last time.Time, ok bool, err error) {
	for fr, ferr := range r.IterFramed() {
		if ferr != nil {
			return time.Time{}, time.Time{}, false, ferr
		}

		if fr.Type != DocMetricChunk {
			continue
		}

		if !ok {
			first = fr.ID
			ok = true
		}

		last = fr.ID
	}

	return first, last, ok, nil
}

package ftdc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/internal/pool"
	"github.com/ftdc-go/ftdc/record"
)

// DocType identifies the kind of envelope document a framed record carries
// (§4.G).
type DocType int32

const (
	DocMetadata         DocType = 0
	DocMetricChunk      DocType = 1
	DocPeriodicMetadata DocType = 2
)

// String renders a DocType for diagnostics.
func (t DocType) String() string {
	switch t {
	case DocMetadata:
		return "METADATA"
	case DocMetricChunk:
		return "METRIC_CHUNK"
	case DocPeriodicMetadata:
		return "PERIODIC_METADATA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(t))
	}
}

// FramedRecord is one top-level document read from an FTDC file: an
// envelope carrying an identifying timestamp, a type tag, and a payload
// field whose name and shape depend on Type — DocMetadata and
// DocPeriodicMetadata carry their payload under `doc` (a document;
// DocPeriodicMetadata's is a delta against the prior metadata document,
// alongside a `count` field this reader does not need), while
// DocMetricChunk carries its payload under `data` (the raw compressed
// chunk bytes).
type FramedRecord struct {
	ID   time.Time
	Type DocType

	// Data holds the decoded payload: map[string]any for DocMetadata and
	// DocPeriodicMetadata, []byte for DocMetricChunk.
	Data any
}

// readEnvelope reads exactly one framed record from br: a 4-byte
// little-endian size, validated against sanityCap, followed by that many
// bytes total (the size field itself counts toward the total). It returns
// io.EOF, unwrapped, when br is exhausted cleanly at a record boundary.
//
// scratch is reused across calls within one pass to avoid a fresh heap
// allocation per framed record; the returned byte slice aliases it, so it is
// only valid until the next readEnvelope call against the same scratch.
// record.DecodeDocument never aliases its input (every value it produces —
// strings, copied binary, nested maps — is its own allocation), so reusing
// scratch once decoding finishes is safe.
func readEnvelope(br *bufio.Reader, sanityCap int, scratch *pool.ByteBuffer) (FramedRecord, []byte, error) {
	var sizeBuf [4]byte

	if _, err := io.ReadFull(br, sizeBuf[:]); err != nil {
		if err == io.EOF { //nolint:errorlint
			return FramedRecord{}, nil, io.EOF
		}

		return FramedRecord{}, nil, errs.NewDecodeError(errs.ErrTruncated, 0, "short read on framed record size")
	}

	size := int(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < 5 || size > sanityCap {
		return FramedRecord{}, nil, errs.NewDecodeError(errs.ErrCorrupt, 0,
			fmt.Sprintf("framed record size %d out of bounds (cap %d)", size, sanityCap))
	}

	scratch.Reset()
	scratch.ExtendOrGrow(size)
	buf := scratch.Bytes()
	copy(buf, sizeBuf[:])

	if _, err := io.ReadFull(br, buf[4:]); err != nil {
		return FramedRecord{}, nil, errs.NewDecodeError(errs.ErrTruncated, 4, "short read on framed record body")
	}

	doc, err := record.DecodeDocument(buf)
	if err != nil {
		return FramedRecord{}, nil, err
	}

	fr, err := framedFromDoc(doc)
	if err != nil {
		return FramedRecord{}, nil, err
	}

	return fr, buf, nil
}

func framedFromDoc(doc map[string]any) (FramedRecord, error) {
	idVal, ok := doc["_id"]
	if !ok {
		return FramedRecord{}, errs.NewDecodeError(errs.ErrSchema, 0, "framed record missing _id")
	}

	id, ok := idVal.(time.Time)
	if !ok {
		return FramedRecord{}, errs.NewDecodeError(errs.ErrSchema, 0, "_id is not a datetime")
	}

	typVal, ok := doc["type"]
	if !ok {
		return FramedRecord{}, errs.NewDecodeError(errs.ErrSchema, 0, "framed record missing type")
	}

	typ32, ok := typVal.(int32)
	if !ok {
		return FramedRecord{}, errs.NewDecodeError(errs.ErrSchema, 0, "type is not an int32")
	}

	typ := DocType(typ32)

	// DocMetadata/DocPeriodicMetadata carry their payload under `doc`;
	// only DocMetricChunk uses `data`.
	field := "doc"
	if typ == DocMetricChunk {
		field = "data"
	}

	data, ok := doc[field]
	if !ok {
		return FramedRecord{}, errs.NewDecodeError(errs.ErrSchema, 0, "framed record missing "+field)
	}

	return FramedRecord{ID: id, Type: typ, Data: data}, nil
}

package record_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/record"
	"github.com/stretchr/testify/require"
)

// docBuilder assembles a minimal BSON-shaped document by hand, the way a
// real FTDC producer would lay one out on the wire.
type docBuilder struct {
	body []byte
}

func newDoc() *docBuilder { return &docBuilder{} }

func (d *docBuilder) cstring(s string) {
	d.body = append(d.body, []byte(s)...)
	d.body = append(d.body, 0x00)
}

func (d *docBuilder) int32(tag byte, name string, v int32) *docBuilder {
	d.body = append(d.body, tag)
	d.cstring(name)
	d.body = binary.LittleEndian.AppendUint32(d.body, uint32(v)) //nolint:gosec

	return d
}

func (d *docBuilder) int64(tag byte, name string, v int64) *docBuilder {
	d.body = append(d.body, tag)
	d.cstring(name)
	d.body = binary.LittleEndian.AppendUint64(d.body, uint64(v)) //nolint:gosec

	return d
}

func (d *docBuilder) double(name string, v float64) *docBuilder {
	d.body = append(d.body, 0x01)
	d.cstring(name)
	d.body = binary.LittleEndian.AppendUint64(d.body, math.Float64bits(v))

	return d
}

func (d *docBuilder) boolean(name string, v bool) *docBuilder {
	d.body = append(d.body, 0x08)
	d.cstring(name)
	if v {
		d.body = append(d.body, 1)
	} else {
		d.body = append(d.body, 0)
	}

	return d
}

func (d *docBuilder) timestamp(name string, seconds, increment uint32) *docBuilder {
	d.body = append(d.body, 0x11)
	d.cstring(name)
	d.body = binary.LittleEndian.AppendUint32(d.body, increment)
	d.body = binary.LittleEndian.AppendUint32(d.body, seconds)

	return d
}

func (d *docBuilder) objectID(name string) *docBuilder {
	d.body = append(d.body, 0x07)
	d.cstring(name)
	d.body = append(d.body, make([]byte, 12)...)

	return d
}

func (d *docBuilder) str(name, value string) *docBuilder {
	d.body = append(d.body, 0x02)
	d.cstring(name)
	d.body = binary.LittleEndian.AppendUint32(d.body, uint32(len(value)+1)) //nolint:gosec
	d.body = append(d.body, []byte(value)...)
	d.body = append(d.body, 0x00)

	return d
}

func (d *docBuilder) sub(name string, tag byte, child *docBuilder) *docBuilder {
	d.body = append(d.body, tag)
	d.cstring(name)
	d.body = append(d.body, child.bytes()...)

	return d
}

func (d *docBuilder) raw(tag byte, name string) *docBuilder {
	d.body = append(d.body, tag)
	d.cstring(name)

	return d
}

func (d *docBuilder) bytes() []byte {
	total := 4 + len(d.body) + 1
	out := make([]byte, 0, total)
	out = binary.LittleEndian.AppendUint32(out, uint32(total)) //nolint:gosec
	out = append(out, d.body...)
	out = append(out, 0x00)

	return out
}

func TestScan_SingleScalar(t *testing.T) {
	data := newDoc().int32(0x10, "count", 100).bytes()

	metrics, consumed, err := record.Scan(data)
	require.NoError(t, err)
	require.Equal(t, len(data), consumed)
	require.Len(t, metrics, 1)
	require.Equal(t, "count", metrics[0].Path())
	require.Equal(t, int64(100), metrics[0].Value)
	require.Equal(t, record.I32, metrics[0].Type)
}

func TestScan_Float(t *testing.T) {
	data := newDoc().double("x", 1.5).bytes()

	metrics, _, err := record.Scan(data)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, int64(0x3FF8000000000000), metrics[0].Value)
	require.Equal(t, record.F64, metrics[0].Type)
}

func TestScan_TimestampExpansion(t *testing.T) {
	data := newDoc().timestamp("t", 1000, 7).bytes()

	metrics, _, err := record.Scan(data)
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	require.Equal(t, "t", metrics[0].Path())
	require.Equal(t, record.TimestampSec, metrics[0].Type)
	require.Equal(t, int64(1000), metrics[0].Value)

	require.Equal(t, "t.inc", metrics[1].Path())
	require.Equal(t, record.TimestampInc, metrics[1].Type)
	require.Equal(t, int64(7), metrics[1].Value)
}

func TestScan_ObjectIDSkippedWithoutShiftingIndex(t *testing.T) {
	data := newDoc().
		objectID("_id").
		int32(0x10, "count", 42).
		bytes()

	metrics, _, err := record.Scan(data)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, "count", metrics[0].Path())
	require.Equal(t, int64(42), metrics[0].Value)
}

func TestScan_NestedAndArray(t *testing.T) {
	hist := newDoc().
		int32(0x10, "0", 1).
		int32(0x10, "1", 2).
		int32(0x10, "2", 3)

	srv := newDoc().
		int32(0x10, "conns", 10).
		sub("hist", 0x04, hist)

	data := newDoc().sub("srv", 0x03, srv).bytes()

	metrics, _, err := record.Scan(data)
	require.NoError(t, err)
	require.Len(t, metrics, 4)

	paths := make([]string, len(metrics))
	for i, m := range metrics {
		paths[i] = m.Path()
	}

	require.Equal(t, []string{"srv.conns", "srv.hist.0", "srv.hist.1", "srv.hist.2"}, paths)
}

func TestScan_DuplicateKeysPreserved(t *testing.T) {
	data := newDoc().
		int32(0x10, "dup", 1).
		int32(0x10, "dup", 2).
		bytes()

	metrics, _, err := record.Scan(data)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	require.Equal(t, int64(1), metrics[0].Value)
	require.Equal(t, int64(2), metrics[1].Value)
	require.Equal(t, metrics[0].Path(), metrics[1].Path())
}

func TestScan_SkipsStringAndSizeValidated(t *testing.T) {
	data := newDoc().
		str("name", "mongod").
		int32(0x10, "count", 7).
		bytes()

	metrics, consumed, err := record.Scan(data)
	require.NoError(t, err)
	require.Equal(t, len(data), consumed)
	require.Len(t, metrics, 1)
	require.Equal(t, "count", metrics[0].Path())
}

func TestScan_SizeMismatchIsCorrupt(t *testing.T) {
	data := newDoc().int32(0x10, "count", 1).bytes()
	// Corrupt the length prefix so it disagrees with the actual body.
	binary.LittleEndian.PutUint32(data, uint32(len(data)+5))

	_, _, err := record.Scan(data)
	require.Error(t, err)
}

func TestScan_UnsupportedType(t *testing.T) {
	data := newDoc().raw(0xC0, "weird").bytes()

	_, _, err := record.Scan(data)
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
}

func TestDecodeDocument_Basics(t *testing.T) {
	data := newDoc().
		str("name", "mongod").
		boolean("ok", true).
		double("x", 2.5).
		bytes()

	doc, err := record.DecodeDocument(data)
	require.NoError(t, err)
	require.Equal(t, "mongod", doc["name"])
	require.Equal(t, true, doc["ok"])
	require.InDelta(t, 2.5, doc["x"], 0)
}

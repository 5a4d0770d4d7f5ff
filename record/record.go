// Package record parses the embedded, self-delimiting tagged-record grammar
// FTDC uses for a chunk's reference sample (and, via DecodeDocument, for
// metadata documents).
//
// The wire grammar is a BSON-shaped document: a 4-byte little-endian total
// size, then a stream of (type byte, null-terminated name, value) tuples
// terminated by a 0x00 byte. A generic BSON library is not acceptable for
// the reference sample: such libraries build a map keyed by field name and
// silently collapse repeated keys, while FTDC's metric extraction depends
// on the exact encounter order of every occurrence, duplicates included.
// Scan walks the bytes directly and never builds a dictionary.
package record

import (
	"fmt"

	"github.com/ftdc-go/ftdc/errs"
)

// Wire type tags, as laid out by the embedded-record grammar (a subset of
// BSON's element types — only the tags FTDC reference samples are known to
// use are given names; anything else is ErrUnsupportedType).
const (
	tagDouble    byte = 0x01
	tagString    byte = 0x02
	tagDocument  byte = 0x03
	tagArray     byte = 0x04
	tagBinary    byte = 0x05
	tagUndefined byte = 0x06
	tagObjectID  byte = 0x07
	tagBool      byte = 0x08
	tagDatetime  byte = 0x09
	tagNull      byte = 0x0A
	tagRegex     byte = 0x0B
	tagCode      byte = 0x0D
	tagInt32     byte = 0x10
	tagTimestamp byte = 0x11
	tagInt64     byte = 0x12
	tagDecimal   byte = 0x13
	tagMaxKey    byte = 0x7F
	tagMinKey    byte = 0xFF
)

// Type identifies the original scalar type a Metric's raw int64 value must
// be restored to when reconstructing a sample.
type Type uint8

// The restorable scalar types a Metric can carry, per spec §3.
const (
	F64 Type = iota
	I32
	I64
	Bool
	DatetimeMS
	TimestampSec
	TimestampInc
)

// String renders a Type for diagnostics and test failure messages.
func (t Type) String() string {
	switch t {
	case F64:
		return "F64"
	case I32:
		return "I32"
	case I64:
		return "I64"
	case Bool:
		return "BOOL"
	case DatetimeMS:
		return "DATETIME_MS"
	case TimestampSec:
		return "TIMESTAMP_SEC"
	case TimestampInc:
		return "TIMESTAMP_INC"
	default:
		return "UNKNOWN"
	}
}

// Metric is one numeric leaf discovered by a left-to-right, depth-first
// walk of a reference record. Value is the raw extracted reference value;
// for F64 it is the IEEE-754 bit pattern reinterpreted as signed int64 (see
// package scalar).
type Metric struct {
	ParentPath []string
	KeyName    string
	Value      int64
	Type       Type
}

// Path returns the dotted key for this metric (parent path segments joined
// with "." followed by the leaf key name). Array indices appear as plain
// numeric segments, matching spec §4.C.
func (m Metric) Path() string {
	path := m.KeyName
	for i := len(m.ParentPath) - 1; i >= 0; i-- {
		path = m.ParentPath[i] + "." + path
	}

	return path
}

// Scan walks the reference record in data and returns its numeric leaves in
// encounter order, duplicates included. data must start with one top-level
// document; bytes beyond the document's own length prefix are ignored, and
// the second return value reports how many bytes the document occupied,
// which the chunk decoder uses to find the header that follows it.
//
// Scan never builds a map: two leaves with the same field name produce two
// distinct Metric entries, in the order they were written.
func Scan(data []byte) ([]Metric, int, error) {
	var metrics []Metric

	consumed, err := walkDocument(data, nil, func(m Metric) {
		metrics = append(metrics, m)
	})
	if err != nil {
		return nil, 0, err
	}

	return metrics, consumed, nil
}

// walkDocument parses one document (or array, same wire shape) starting at
// data[0], invoking emit for every numeric leaf encountered. It returns the
// number of bytes the document occupies, including its own 4-byte length
// prefix and the trailing terminator.
func walkDocument(data []byte, parentPath []string, emit func(Metric)) (int, error) {
	if len(data) < 5 {
		return 0, errs.NewDecodeError(errs.ErrTruncated, 0, "document shorter than minimum 5 bytes")
	}

	size := int(le32(data))
	if size < 5 || size > len(data) {
		return 0, errs.NewDecodeError(errs.ErrCorrupt, 0, fmt.Sprintf("document size %d out of bounds for %d available bytes", size, len(data)))
	}

	body := data[4:size]
	offset := 0

	for {
		if offset >= len(body) {
			return 0, errs.NewDecodeError(errs.ErrTruncated, size, "document missing terminator")
		}

		tag := body[offset]
		if tag == 0x00 {
			offset++
			break
		}
		offset++

		name, n, err := readCString(body[offset:])
		if err != nil {
			return 0, err
		}
		offset += n

		valueLen, leaf, nested, err := readValue(tag, body[offset:], parentPath, name)
		if err != nil {
			return 0, err
		}
		offset += valueLen

		switch {
		case nested != nil:
			for _, m := range nested {
				emit(m)
			}
		case leaf != nil:
			emit(*leaf)
		}
	}

	if offset != size-4 {
		return 0, errs.NewDecodeError(errs.ErrCorrupt, size,
			fmt.Sprintf("document declared size %d but consumed %d bytes", size, offset+4))
	}

	return size, nil
}

// readValue decodes the value following a type tag and field name.
//
// Exactly one of (leaf, nested) is non-nil on success for a value that
// produces metrics; both are nil for a non-numeric leaf that was skipped.
// valueLen is always the number of bytes the value occupies on the wire.
func readValue(tag byte, data []byte, parentPath []string, name string) (valueLen int, leaf *Metric, nested []Metric, err error) {
	switch tag {
	case tagDouble:
		if len(data) < 8 {
			return 0, nil, nil, errTruncatedValue("double")
		}

		bits := le64(data)
		return 8, &Metric{ParentPath: parentPath, KeyName: name, Value: int64(bits), Type: F64}, nil, nil //nolint:gosec

	case tagInt32:
		if len(data) < 4 {
			return 0, nil, nil, errTruncatedValue("int32")
		}

		v := int32(le32(data)) //nolint:gosec
		return 4, &Metric{ParentPath: parentPath, KeyName: name, Value: int64(v), Type: I32}, nil, nil

	case tagInt64:
		if len(data) < 8 {
			return 0, nil, nil, errTruncatedValue("int64")
		}

		v := int64(le64(data)) //nolint:gosec
		return 8, &Metric{ParentPath: parentPath, KeyName: name, Value: v, Type: I64}, nil, nil

	case tagBool:
		if len(data) < 1 {
			return 0, nil, nil, errTruncatedValue("bool")
		}

		v := int64(0)
		if data[0] != 0 {
			v = 1
		}
		return 1, &Metric{ParentPath: parentPath, KeyName: name, Value: v, Type: Bool}, nil, nil

	case tagDatetime:
		if len(data) < 8 {
			return 0, nil, nil, errTruncatedValue("datetime")
		}

		v := int64(le64(data)) //nolint:gosec
		return 8, &Metric{ParentPath: parentPath, KeyName: name, Value: v, Type: DatetimeMS}, nil, nil

	case tagTimestamp:
		// Wire layout: u32 increment, then u32 seconds (increment first).
		if len(data) < 8 {
			return 0, nil, nil, errTruncatedValue("timestamp")
		}

		increment := int64(le32(data[0:4]))
		seconds := int64(le32(data[4:8]))

		return 8, nil, []Metric{
			{ParentPath: parentPath, KeyName: name, Value: seconds, Type: TimestampSec},
			{ParentPath: parentPath, KeyName: name + ".inc", Value: increment, Type: TimestampInc},
		}, nil

	case tagDocument:
		childPath := append(append([]string{}, parentPath...), name)
		n, err := walkDocument(data, childPath, func(m Metric) { nested = append(nested, m) })
		if err != nil {
			return 0, nil, nil, err
		}

		return n, nil, nested, nil

	case tagArray:
		childPath := append(append([]string{}, parentPath...), name)
		n, err := walkDocument(data, childPath, func(m Metric) { nested = append(nested, m) })
		if err != nil {
			return 0, nil, nil, err
		}

		return n, nil, nested, nil

	case tagString, tagCode:
		if len(data) < 4 {
			return 0, nil, nil, errTruncatedValue("string")
		}

		strLen := int(le32(data))
		total := 4 + strLen
		if strLen < 1 || total > len(data) {
			return 0, nil, nil, errTruncatedValue("string")
		}

		return total, nil, nil, nil

	case tagBinary:
		if len(data) < 5 {
			return 0, nil, nil, errTruncatedValue("binary")
		}

		binLen := int(le32(data))
		total := 5 + binLen
		if binLen < 0 || total > len(data) {
			return 0, nil, nil, errTruncatedValue("binary")
		}

		return total, nil, nil, nil

	case tagObjectID:
		if len(data) < 12 {
			return 0, nil, nil, errTruncatedValue("object id")
		}

		return 12, nil, nil, nil

	case tagNull, tagUndefined, tagMinKey, tagMaxKey:
		return 0, nil, nil, nil

	case tagRegex:
		pattern, n1, err := readCString(data)
		if err != nil {
			return 0, nil, nil, err
		}

		_, n2, err := readCString(data[n1:])
		if err != nil {
			return 0, nil, nil, err
		}

		_ = pattern

		return n1 + n2, nil, nil, nil

	case tagDecimal:
		if len(data) < 16 {
			return 0, nil, nil, errTruncatedValue("decimal128")
		}

		return 16, nil, nil, nil

	default:
		return 0, nil, nil, errs.NewDecodeError(errs.ErrUnsupportedType, 0, fmt.Sprintf("type tag 0x%02x", tag))
	}
}

func errTruncatedValue(kind string) error {
	return errs.NewDecodeError(errs.ErrTruncated, 0, "truncated "+kind+" value")
}

// readCString reads a null-terminated byte string and returns it without
// the terminator, plus the total number of bytes consumed including it.
func readCString(data []byte) (string, int, error) {
	for i, b := range data {
		if b == 0x00 {
			return string(data[:i]), i + 1, nil
		}
	}

	return "", 0, errs.NewDecodeError(errs.ErrTruncated, 0, "cstring missing terminator")
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

package record

import (
	"fmt"
	"time"

	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/scalar"
)

// Timestamp mirrors the two-field MongoDB Timestamp type (§4.C) for callers
// of DecodeDocument that want it as a single value instead of the two
// Metric entries Scan produces for a Timestamp leaf.
type Timestamp struct {
	Seconds   uint32
	Increment uint32
}

// Regex mirrors a BSON regular expression value.
type Regex struct {
	Pattern string
	Options string
}

// MinKey and MaxKey are sentinel values DecodeDocument uses for the
// corresponding BSON types; both carry no data.
type (
	MinKey struct{}
	MaxKey struct{}
)

// DecodeDocument is a generic, map-building decoder for embedded records
// that are NOT a chunk's reference sample — metadata and periodic-metadata
// documents, where duplicate keys are not a concern and a map is the
// natural representation. Unlike Scan, a repeated field name here simply
// overwrites the earlier value, which is the behavior any off-the-shelf
// BSON-like decoder would give you; that's acceptable here precisely
// because this path is never used for the reference sample (§4.C, §9).
func DecodeDocument(data []byte) (map[string]any, error) {
	doc, _, err := decodeDoc(data)
	return doc, err
}

func decodeDoc(data []byte) (map[string]any, int, error) {
	if len(data) < 5 {
		return nil, 0, errs.NewDecodeError(errs.ErrTruncated, 0, "document shorter than minimum 5 bytes")
	}

	size := int(le32(data))
	if size < 5 || size > len(data) {
		return nil, 0, errs.NewDecodeError(errs.ErrCorrupt, 0, fmt.Sprintf("document size %d out of bounds", size))
	}

	body := data[4:size]
	offset := 0
	out := make(map[string]any)

	for {
		if offset >= len(body) {
			return nil, 0, errs.NewDecodeError(errs.ErrTruncated, size, "document missing terminator")
		}

		tag := body[offset]
		if tag == 0x00 {
			offset++
			break
		}
		offset++

		name, n, err := readCString(body[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n

		val, valLen, err := decodeValue(tag, body[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += valLen

		out[name] = val
	}

	if offset != size-4 {
		return nil, 0, errs.NewDecodeError(errs.ErrCorrupt, size, "document size mismatch")
	}

	return out, size, nil
}

func decodeArray(data []byte) ([]any, int, error) {
	doc, n, err := decodeDoc(data)
	if err != nil {
		return nil, 0, err
	}

	out := make([]any, len(doc))
	for k, v := range doc {
		idx, convErr := indexOf(k)
		if convErr != nil {
			return nil, 0, convErr
		}

		if idx >= len(out) {
			grown := make([]any, idx+1)
			copy(grown, out)
			out = grown
		}
		out[idx] = v
	}

	return out, n, nil
}

func indexOf(key string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(key, "%d", &idx); err != nil {
		return 0, errs.NewDecodeError(errs.ErrCorrupt, 0, "array key is not numeric: "+key)
	}

	return idx, nil
}

//nolint:cyclop
func decodeValue(tag byte, data []byte) (any, int, error) {
	switch tag {
	case tagDouble:
		if len(data) < 8 {
			return nil, 0, errTruncatedValue("double")
		}

		return float64FromBits(le64(data)), 8, nil

	case tagString, tagCode:
		if len(data) < 4 {
			return nil, 0, errTruncatedValue("string")
		}

		strLen := int(le32(data))
		total := 4 + strLen
		if strLen < 1 || total > len(data) {
			return nil, 0, errTruncatedValue("string")
		}

		return string(data[4 : total-1]), total, nil

	case tagDocument:
		doc, n, err := decodeDoc(data)
		return doc, n, err

	case tagArray:
		arr, n, err := decodeArray(data)
		return arr, n, err

	case tagBinary:
		if len(data) < 5 {
			return nil, 0, errTruncatedValue("binary")
		}

		binLen := int(le32(data))
		total := 5 + binLen
		if total > len(data) {
			return nil, 0, errTruncatedValue("binary")
		}

		buf := make([]byte, binLen)
		copy(buf, data[5:total])

		return buf, total, nil

	case tagObjectID:
		if len(data) < 12 {
			return nil, 0, errTruncatedValue("object id")
		}

		var id [12]byte
		copy(id[:], data[:12])

		return id, 12, nil

	case tagBool:
		if len(data) < 1 {
			return nil, 0, errTruncatedValue("bool")
		}

		return data[0] != 0, 1, nil

	case tagDatetime:
		if len(data) < 8 {
			return nil, 0, errTruncatedValue("datetime")
		}

		ms := int64(le64(data)) //nolint:gosec

		return time.UnixMilli(ms).UTC(), 8, nil

	case tagNull:
		return nil, 0, nil

	case tagUndefined:
		return nil, 0, nil

	case tagRegex:
		pattern, n1, err := readCString(data)
		if err != nil {
			return nil, 0, err
		}

		options, n2, err := readCString(data[n1:])
		if err != nil {
			return nil, 0, err
		}

		return Regex{Pattern: pattern, Options: options}, n1 + n2, nil

	case tagInt32:
		if len(data) < 4 {
			return nil, 0, errTruncatedValue("int32")
		}

		return int32(le32(data)), 4, nil //nolint:gosec

	case tagTimestamp:
		if len(data) < 8 {
			return nil, 0, errTruncatedValue("timestamp")
		}

		return Timestamp{Increment: le32(data[0:4]), Seconds: le32(data[4:8])}, 8, nil

	case tagInt64:
		if len(data) < 8 {
			return nil, 0, errTruncatedValue("int64")
		}

		return int64(le64(data)), 8, nil //nolint:gosec

	case tagDecimal:
		if len(data) < 16 {
			return nil, 0, errTruncatedValue("decimal128")
		}

		buf := make([]byte, 16)
		copy(buf, data[:16])

		return buf, 16, nil

	case tagMinKey:
		return MinKey{}, 0, nil

	case tagMaxKey:
		return MaxKey{}, 0, nil

	default:
		return nil, 0, errs.NewDecodeError(errs.ErrUnsupportedType, 0, fmt.Sprintf("type tag 0x%02x", tag))
	}
}

func float64FromBits(bits uint64) float64 {
	return scalar.RestoreFloat(int64(bits)) //nolint:gosec
}

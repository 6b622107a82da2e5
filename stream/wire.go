package stream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// OpType distinguishes an inserted row from a deleted one.
type OpType int64

const (
	OpDelete OpType = 0
	OpInsert OpType = 1
)

// metaColumnCount is the fixed number of metadata columns prefixed to
// every row: txn_id, timestamp, seq_no, partition_id, site_id, op_type.
const metaColumnCount = 6

// RowMeta carries the fixed metadata columns of a single row, encoded
// ahead of the user columns in every row record.
type RowMeta struct {
	TxnID       int64
	Timestamp   int64
	SeqNo       int64
	PartitionID int64
	SiteID      int64
	OpType      OpType
}

// ColumnType identifies how a column's bytes are to be decoded. A decoder
// walking a schema of ColumnTypes can recover exact column boundaries
// without any other help, since every encoding is self-delimiting.
type ColumnType int

const (
	ColumnInt64 ColumnType = iota
	ColumnFloat64
	ColumnString
	ColumnBytes
)

// ColumnCodec is one user column value of a row about to be serialized.
// Concrete implementations are self-delimiting: a variable-length column
// (string, bytes) encodes its own length prefix so that a decoder walking
// a schema of ColumnTypes can recover exact column boundaries without
// external help. Callers implement ColumnCodec per SQL type they need to
// carry; the four concrete types in columns.go cover the common cases.
type ColumnCodec interface {
	// Type reports how this column's bytes must be decoded.
	Type() ColumnType
	// IsNull reports whether the column value is SQL NULL. Encode is
	// never called for a null column, and it contributes zero bytes to
	// the row.
	IsNull() bool
	// EncodedLen returns the exact number of bytes Encode will write for
	// a non-null column value.
	EncodedLen() int
	// Encode serializes the column's value into dst, which is at least
	// EncodedLen() bytes.
	Encode(dst []byte)
}

// Tuple is the ordered list of user columns comprising one row's payload,
// following the fixed metadata columns.
type Tuple []ColumnCodec

// MaxRowLen returns an upper bound on the number of bytes EncodeRow will
// write for the given tuple: the row-length prefix, the null bitmap, the
// fixed metadata columns, and every user column's encoded length (null or
// not, since IsNull is only known to the caller's data, not this bound).
func MaxRowLen(tuple Tuple) int64 {
	var n = 4 /* row_length */ + bitmapLen(len(tuple)) + metaColumnCount*8
	for _, c := range tuple {
		n += int64(c.EncodedLen())
	}
	return n
}

func bitmapLen(userCols int) int64 {
	var bits = metaColumnCount + userCols
	return int64((bits + 7) / 8)
}

// EncodeRow serializes one row into dst and returns the number of bytes
// written. dst must be at least MaxRowLen(tuple) bytes. Metadata columns
// are never null; only user columns may set a null bit.
func EncodeRow(dst []byte, meta RowMeta, tuple Tuple) int64 {
	var bmLen = bitmapLen(len(tuple))
	var headerLen = 4 + bmLen

	// Zero the null bitmap; non-null is the default.
	for i := int64(0); i < bmLen; i++ {
		dst[4+i] = 0
	}

	var off = headerLen
	off += encodeInt64(dst[off:], meta.TxnID)
	off += encodeInt64(dst[off:], meta.Timestamp)
	off += encodeInt64(dst[off:], meta.SeqNo)
	off += encodeInt64(dst[off:], meta.PartitionID)
	off += encodeInt64(dst[off:], meta.SiteID)
	off += encodeInt64(dst[off:], int64(meta.OpType))

	for i, c := range tuple {
		if c.IsNull() {
			setBit(dst[4:4+bmLen], metaColumnCount+i)
			continue
		}
		var n = c.EncodedLen()
		c.Encode(dst[off : off+int64(n)])
		off += int64(n)
	}

	var rowLen = off - 4
	binary.BigEndian.PutUint32(dst[0:4], uint32(rowLen))
	return off
}

func encodeInt64(dst []byte, v int64) int64 {
	binary.BigEndian.PutUint64(dst, uint64(v))
	return 8
}

// setBit sets bit index i (MSB-first within its byte) in bitmap.
func setBit(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << uint(7-i%8)
}

// isBitSet reports whether bit index i (MSB-first within its byte) is set.
func isBitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<uint(7-i%8)) != 0
}

// DecodedRow is the result of decoding a single serialized row, used by
// tests verifying round-trip fidelity.
type DecodedRow struct {
	Meta    RowMeta
	Columns []DecodedColumn
}

// DecodedColumn is one decoded user column value.
type DecodedColumn struct {
	Type   ColumnType
	Null   bool
	Int64  int64
	Float64 float64
	String string
	Bytes  []byte
}

// DecodeRow parses one row from the front of data, which must begin
// exactly at a row boundary, per the schema of user column types it was
// encoded with. It returns the decoded row and the number of bytes
// consumed from data.
func DecodeRow(data []byte, schema []ColumnType) (DecodedRow, int64, error) {
	if len(data) < 4 {
		return DecodedRow{}, 0, fmt.Errorf("stream: truncated row header (%d bytes)", len(data))
	}
	var rowLen = int64(binary.BigEndian.Uint32(data[0:4]))
	if int64(len(data)) < 4+rowLen {
		return DecodedRow{}, 0, fmt.Errorf("stream: truncated row body (want %d, have %d)", rowLen, len(data)-4)
	}
	var body = data[4 : 4+rowLen]

	var bmLen = bitmapLen(len(schema))
	if int64(len(body)) < bmLen+metaColumnCount*8 {
		return DecodedRow{}, 0, fmt.Errorf("stream: row body too short for bitmap+metadata")
	}
	var bitmap = body[:bmLen]
	var off = bmLen

	var row DecodedRow
	row.Meta.TxnID = decodeInt64(body[off:])
	off += 8
	row.Meta.Timestamp = decodeInt64(body[off:])
	off += 8
	row.Meta.SeqNo = decodeInt64(body[off:])
	off += 8
	row.Meta.PartitionID = decodeInt64(body[off:])
	off += 8
	row.Meta.SiteID = decodeInt64(body[off:])
	off += 8
	row.Meta.OpType = OpType(decodeInt64(body[off:]))
	off += 8

	row.Columns = make([]DecodedColumn, len(schema))
	for i, t := range schema {
		var dc = DecodedColumn{Type: t}
		if isBitSet(bitmap, metaColumnCount+i) {
			dc.Null = true
			row.Columns[i] = dc
			continue
		}
		var n int64
		var err error
		if n, err = decodeColumn(body[off:], t, &dc); err != nil {
			return DecodedRow{}, 0, err
		}
		off += n
		row.Columns[i] = dc
	}

	return row, 4 + rowLen, nil
}

func decodeInt64(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func decodeColumn(b []byte, t ColumnType, dc *DecodedColumn) (int64, error) {
	switch t {
	case ColumnInt64:
		if len(b) < 8 {
			return 0, fmt.Errorf("stream: truncated int64 column")
		}
		dc.Int64 = decodeInt64(b)
		return 8, nil
	case ColumnFloat64:
		if len(b) < 8 {
			return 0, fmt.Errorf("stream: truncated float64 column")
		}
		dc.Float64 = decodeFloat64(b)
		return 8, nil
	case ColumnString:
		if len(b) < 4 {
			return 0, fmt.Errorf("stream: truncated string column length")
		}
		var n = int64(binary.BigEndian.Uint32(b[0:4]))
		if int64(len(b)) < 4+n {
			return 0, fmt.Errorf("stream: truncated string column body")
		}
		dc.String = string(b[4 : 4+n])
		return 4 + n, nil
	case ColumnBytes:
		if len(b) < 4 {
			return 0, fmt.Errorf("stream: truncated bytes column length")
		}
		var n = int64(binary.BigEndian.Uint32(b[0:4]))
		if int64(len(b)) < 4+n {
			return 0, fmt.Errorf("stream: truncated bytes column body")
		}
		dc.Bytes = append([]byte(nil), b[4:4+n]...)
		return 4 + n, nil
	default:
		return 0, fmt.Errorf("stream: unknown column type %d", t)
	}
}

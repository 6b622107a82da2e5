package stream

import (
	"encoding/binary"
	"math"
)

// Int64Column is a non-null or null 64-bit integer user column.
type Int64Column struct {
	Value int64
	Null  bool
}

func (c Int64Column) Type() ColumnType  { return ColumnInt64 }
func (c Int64Column) IsNull() bool      { return c.Null }
func (c Int64Column) EncodedLen() int   { return 8 }
func (c Int64Column) Encode(dst []byte) { binary.BigEndian.PutUint64(dst, uint64(c.Value)) }

// Float64Column is a non-null or null double-precision float user column.
type Float64Column struct {
	Value float64
	Null  bool
}

func (c Float64Column) Type() ColumnType { return ColumnFloat64 }
func (c Float64Column) IsNull() bool     { return c.Null }
func (c Float64Column) EncodedLen() int  { return 8 }
func (c Float64Column) Encode(dst []byte) {
	binary.BigEndian.PutUint64(dst, math.Float64bits(c.Value))
}

// StringColumn is a variable-length UTF-8 string user column, encoded as
// a big-endian int32 byte length followed by the raw bytes.
type StringColumn struct {
	Value string
	Null  bool
}

func (c StringColumn) Type() ColumnType { return ColumnString }
func (c StringColumn) IsNull() bool     { return c.Null }
func (c StringColumn) EncodedLen() int  { return 4 + len(c.Value) }
func (c StringColumn) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(len(c.Value)))
	copy(dst[4:], c.Value)
}

// BytesColumn is a variable-length opaque byte-string user column, encoded
// identically to StringColumn but carrying raw bytes.
type BytesColumn struct {
	Value []byte
	Null  bool
}

func (c BytesColumn) Type() ColumnType { return ColumnBytes }
func (c BytesColumn) IsNull() bool     { return c.Null }
func (c BytesColumn) EncodedLen() int  { return 4 + len(c.Value) }
func (c BytesColumn) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(len(c.Value)))
	copy(dst[4:], c.Value)
}

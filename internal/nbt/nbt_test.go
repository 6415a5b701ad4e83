package nbt

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wire builds raw NBT documents for tests.
type wire struct {
	bytes.Buffer
}

func (w *wire) tag(t Tag)     { w.WriteByte(byte(t)) }
func (w *wire) u16(v uint16)  { _ = binary.Write(w, binary.BigEndian, v) }
func (w *wire) u32(v uint32)  { _ = binary.Write(w, binary.BigEndian, v) }
func (w *wire) i32(v int32)   { _ = binary.Write(w, binary.BigEndian, v) }
func (w *wire) i64(v int64)   { _ = binary.Write(w, binary.BigEndian, v) }
func (w *wire) name(s string) { w.u16(uint16(len(s))); w.WriteString(s) }

// named writes a tag byte and a name, leaving the payload to the caller.
func (w *wire) named(t Tag, s string) { w.tag(t); w.name(s) }

// root opens an unnamed root compound.
func (w *wire) root() { w.tag(TagCompound); w.u16(0) }

func (w *wire) end() { w.tag(TagEnd) }

func TestDecodeScalars(t *testing.T) {
	var w wire
	w.root()
	w.named(TagByte, "b")
	w.WriteByte(0xff)
	w.named(TagShort, "s")
	w.u16(0x0102)
	w.named(TagInt, "i")
	w.i32(-5)
	w.named(TagLong, "l")
	w.i64(1 << 40)
	w.named(TagFloat, "f")
	w.u32(0x3f800000) // 1.0
	w.named(TagDouble, "d")
	w.i64(0x4000000000000000) // 2.0
	w.named(TagString, "str")
	w.name("hello")
	w.end()

	c, err := Decode(&w)
	require.NoError(t, err)

	assert.Equal(t, Byte(-1), c["b"])
	assert.Equal(t, Short(0x0102), c["s"])
	assert.Equal(t, Int(-5), c["i"])
	assert.Equal(t, Long(1<<40), c["l"])
	assert.Equal(t, Float(1.0), c["f"])
	assert.Equal(t, Double(2.0), c["d"])
	assert.Equal(t, String("hello"), c["str"])
}

func TestDecodeArrays(t *testing.T) {
	var w wire
	w.root()
	w.named(TagByteArray, "bytes")
	w.u32(3)
	w.Write([]byte{1, 2, 3})
	w.named(TagIntArray, "ints")
	w.u32(2)
	w.i32(7)
	w.i32(-7)
	w.named(TagLongArray, "longs")
	w.u32(1)
	w.i64(42)
	w.end()

	c, err := Decode(&w)
	require.NoError(t, err)

	// Byte array content is consumed but only the length survives.
	assert.Equal(t, ByteArray(3), c["bytes"])
	assert.Equal(t, IntArray{7, -7}, c["ints"])
	assert.Equal(t, LongArray{42}, c["longs"])
}

func TestDecodeList(t *testing.T) {
	var w wire
	w.root()
	w.named(TagList, "xs")
	w.tag(TagInt)
	w.u32(3)
	w.i32(1)
	w.i32(2)
	w.i32(3)
	w.end()

	c, err := Decode(&w)
	require.NoError(t, err)
	assert.Equal(t, List{Int(1), Int(2), Int(3)}, c["xs"])
}

func TestDecodeEmptyListEndTag(t *testing.T) {
	var w wire
	w.root()
	w.named(TagList, "empty")
	w.tag(TagEnd)
	w.u32(0)
	w.end()

	c, err := Decode(&w)
	require.NoError(t, err)
	assert.Equal(t, List{}, c["empty"])
}

func TestDecodeNestedCompound(t *testing.T) {
	var w wire
	w.root()
	w.named(TagCompound, "inner")
	w.named(TagInt, "x")
	w.i32(9)
	w.end()
	w.end()

	c, err := Decode(&w)
	require.NoError(t, err)

	inner, ok := c.GetCompound("inner")
	require.True(t, ok)
	x, ok := inner.GetInt("x")
	require.True(t, ok)
	assert.Equal(t, int32(9), x)
}

func TestDecodeDuplicateNameLastWins(t *testing.T) {
	var w wire
	w.root()
	w.named(TagInt, "x")
	w.i32(1)
	w.named(TagInt, "x")
	w.i32(2)
	w.end()

	c, err := Decode(&w)
	require.NoError(t, err)
	assert.Equal(t, Int(2), c["x"])
}

// nested builds a document of n compounds nested inside each other,
// the root included.
func nested(n int) []byte {
	var w wire
	w.root()
	for i := 1; i < n; i++ {
		w.named(TagCompound, "c")
	}
	for i := 0; i < n; i++ {
		w.end()
	}
	return w.Bytes()
}

func TestDepthLimit(t *testing.T) {
	_, err := Decode(bytes.NewReader(nested(MaxDepth)))
	assert.NoError(t, err)

	_, err = Decode(bytes.NewReader(nested(MaxDepth + 1)))
	assert.ErrorIs(t, err, ErrRecursionLimit)
}

func TestDepthLimitViaLists(t *testing.T) {
	var w wire
	w.root()
	w.named(TagList, "l")
	for i := 0; i < MaxDepth+1; i++ {
		w.tag(TagList)
		w.u32(1)
	}

	_, err := Decode(&w)
	assert.ErrorIs(t, err, ErrRecursionLimit)
}

func TestDecodeErrors(t *testing.T) {
	badRoot := func() []byte {
		var w wire
		w.tag(TagInt)
		w.u16(0)
		w.i32(1)
		return w.Bytes()
	}
	badTag := func() []byte {
		var w wire
		w.root()
		w.named(Tag(13), "x")
		return w.Bytes()
	}
	badName := func() []byte {
		var w wire
		w.root()
		w.tag(TagInt)
		w.u16(2)
		w.Write([]byte{0xff, 0xfe}) // not UTF-8
		w.i32(1)
		w.end()
		return w.Bytes()
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty input", nil, io.EOF},
		{"root not compound", badRoot(), ErrRootTag},
		{"unknown tag", badTag(), ErrInvalidTag},
		{"invalid name", badName(), ErrInvalidName},
		{"truncated compound", nested(3)[:4], io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsFormatError(t *testing.T) {
	assert.True(t, IsFormatError(ErrInvalidTag))
	assert.True(t, IsFormatError(ErrRecursionLimit))
	assert.False(t, IsFormatError(io.ErrUnexpectedEOF))
	assert.False(t, IsFormatError(nil))
}

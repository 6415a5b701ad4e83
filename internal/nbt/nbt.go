// Package nbt decodes the named binary tag format used for chunk payloads.
//
// The format is a self-describing tree: every value carries a one-byte tag
// identifying its kind, compound values map names to child values, and lists
// hold a homogeneous sequence declared by a single element tag. All
// multi-byte fields are big-endian.
//
// The decoder is written against adversarial input: nesting depth is capped,
// unknown tags and malformed names fail the decode, and truncated input
// surfaces as a read error rather than a panic.
package nbt

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// MaxDepth is the maximum compound/list nesting depth the decoder accepts.
const MaxDepth = 100

// Tag identifies the kind of a value.
type Tag uint8

// Tag ids as they appear on the wire.
const (
	TagEnd Tag = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// Sentinel errors.
var (
	// ErrRootTag is returned when a document does not start with a compound tag.
	ErrRootTag = errors.New("nbt: root tag is not a compound")

	// ErrInvalidTag is returned when an unknown tag id is encountered.
	ErrInvalidTag = errors.New("nbt: invalid tag")

	// ErrInvalidName is returned when a name or string is not valid UTF-8.
	ErrInvalidName = errors.New("nbt: invalid tag name")

	// ErrRecursionLimit is returned when nesting exceeds MaxDepth.
	ErrRecursionLimit = errors.New("nbt: recursion limit reached")
)

// Value is one decoded tree value. Exactly one concrete type implements it
// per tag kind.
type Value interface {
	Tag() Tag
}

type (
	// End is the placeholder value of an empty list's element tag.
	End struct{}

	Byte   int8
	Short  int16
	Int    int32
	Long   int64
	Float  float32
	Double float64

	// ByteArray records the declared length of a byte array. The content is
	// consumed from the stream but not retained; callers only ever need the
	// structural presence of the array.
	ByteArray uint32

	String string

	List []Value

	// Compound maps names to child values. Duplicate names overwrite, last
	// one wins.
	Compound map[string]Value

	IntArray  []int32
	LongArray []int64
)

func (End) Tag() Tag       { return TagEnd }
func (Byte) Tag() Tag      { return TagByte }
func (Short) Tag() Tag     { return TagShort }
func (Int) Tag() Tag       { return TagInt }
func (Long) Tag() Tag      { return TagLong }
func (Float) Tag() Tag     { return TagFloat }
func (Double) Tag() Tag    { return TagDouble }
func (ByteArray) Tag() Tag { return TagByteArray }
func (String) Tag() Tag    { return TagString }
func (List) Tag() Tag      { return TagList }
func (Compound) Tag() Tag  { return TagCompound }
func (IntArray) Tag() Tag  { return TagIntArray }
func (LongArray) Tag() Tag { return TagLongArray }

// GetInt returns the named child of c as an int32 if it exists and is
// int-typed.
func (c Compound) GetInt(name string) (int32, bool) {
	v, ok := c[name].(Int)
	return int32(v), ok
}

// GetCompound returns the named child of c if it exists and is a compound.
func (c Compound) GetCompound(name string) (Compound, bool) {
	v, ok := c[name].(Compound)
	return v, ok
}

// Decode reads one document from r. The root must be a compound tag; its
// name length prefix is consumed and the name ignored.
func Decode(r io.Reader) (Compound, error) {
	d := &decoder{r: bufio.NewReader(r)}

	tag, err := d.readTag()
	if err != nil {
		return nil, err
	}
	if tag != TagCompound {
		return nil, ErrRootTag
	}
	if _, err := d.readUint16(); err != nil {
		return nil, err
	}
	return d.compound(1)
}

type decoder struct {
	r   *bufio.Reader
	buf [8]byte
}

func (d *decoder) read(n int) ([]byte, error) {
	b := d.buf[:n]
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *decoder) readTag() (Tag, error) {
	b, err := d.r.ReadByte()
	return Tag(b), err
}

func (d *decoder) readUint16() (uint16, error) {
	b, err := d.read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) readUint32() (uint32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) readUint64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// compound decodes (tag, name, value) triples until a TagEnd terminator.
// depth is the nesting level of this compound, counted from 1 at the root.
func (d *decoder) compound(depth int) (Compound, error) {
	if depth > MaxDepth {
		return nil, ErrRecursionLimit
	}
	c := Compound{}
	for {
		tag, err := d.readTag()
		if err != nil {
			return nil, err
		}
		if tag == TagEnd {
			return c, nil
		}
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		v, err := d.value(tag, depth)
		if err != nil {
			return nil, err
		}
		c[name] = v
	}
}

// value decodes the payload of a single tagged value. TagEnd is only legal
// as a list element tag; compound decoding handles it before dispatching
// here.
func (d *decoder) value(tag Tag, depth int) (Value, error) {
	switch tag {
	case TagEnd:
		return End{}, nil
	case TagByte:
		b, err := d.r.ReadByte()
		return Byte(b), err
	case TagShort:
		v, err := d.readUint16()
		return Short(v), err
	case TagInt:
		v, err := d.readUint32()
		return Int(v), err
	case TagLong:
		v, err := d.readUint64()
		return Long(v), err
	case TagFloat:
		v, err := d.readUint32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.readUint64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		return d.byteArray()
	case TagString:
		s, err := d.str()
		return String(s), err
	case TagList:
		return d.list(depth)
	case TagCompound:
		return d.compound(depth + 1)
	case TagIntArray:
		return d.intArray()
	case TagLongArray:
		return d.longArray()
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidTag, uint8(tag))
	}
}

// str decodes a u16 length-prefixed UTF-8 string. A zero length yields the
// empty string without a further read.
func (d *decoder) str() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidName
	}
	return string(b), nil
}

// byteArray consumes a u32 length-prefixed byte sequence without retaining
// its content.
func (d *decoder) byteArray() (Value, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(io.Discard, d.r, int64(n)); err != nil {
		return nil, err
	}
	return ByteArray(n), nil
}

// list decodes one element tag, a u32 count, then that many homogeneous
// values. An End element tag marks an empty-typed list; its elements carry
// no payload.
func (d *decoder) list(depth int) (Value, error) {
	if depth+1 > MaxDepth {
		return nil, ErrRecursionLimit
	}
	elem, err := d.readTag()
	if err != nil {
		return nil, err
	}
	if elem > TagLongArray {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidTag, uint8(elem))
	}
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	var items List
	for i := uint32(0); i < n; i++ {
		v, err := d.value(elem, depth+1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if items == nil {
		items = List{}
	}
	return items, nil
}

func (d *decoder) intArray() (Value, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	var items IntArray
	for i := uint32(0); i < n; i++ {
		v, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		items = append(items, int32(v))
	}
	if items == nil {
		items = IntArray{}
	}
	return items, nil
}

func (d *decoder) longArray() (Value, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	var items LongArray
	for i := uint32(0); i < n; i++ {
		v, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		items = append(items, int64(v))
	}
	if items == nil {
		items = LongArray{}
	}
	return items, nil
}

// IsFormatError reports whether err is one of the decoder's own format
// errors, as opposed to a propagated read failure.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrRootTag) ||
		errors.Is(err, ErrInvalidTag) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrRecursionLimit)
}

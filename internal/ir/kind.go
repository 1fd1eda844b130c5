package ir

import "fmt"

// Kind is a closed enumeration of value types.
type Kind uint8

const (
	KindIllegal Kind = iota
	KindVoid
	KindBool
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindHalf
	KindFloat
	KindDouble
	KindObject

	KindByte2
	KindByte3
	KindByte4
	KindShort2
	KindShort3
	KindInt2
	KindInt3
	KindInt4
	KindInt8
	KindInt16
	KindFloat2
	KindFloat3
	KindFloat4
	KindFloat8
	KindFloat16
	KindDouble2
	KindDouble3
	KindDouble4
	KindDouble8

	numKinds
)

type kindFlags uint8

const (
	flagSigned kindFlags = 1 << iota
	flagFloat
	flagVector
	flagInteger
)

type kindInfo struct {
	name  string
	size  int
	elem  Kind
	lanes int
	flags kindFlags
}

var kindTable = [numKinds]kindInfo{
	KindIllegal: {name: "illegal"},
	KindVoid:    {name: "void"},
	KindBool:    {name: "bool", size: 1},
	KindByte:    {name: "byte", size: 1, flags: flagSigned | flagInteger},
	KindChar:    {name: "char", size: 2, flags: flagInteger},
	KindShort:   {name: "short", size: 2, flags: flagSigned | flagInteger},
	KindInt:     {name: "int", size: 4, flags: flagSigned | flagInteger},
	KindLong:    {name: "long", size: 8, flags: flagSigned | flagInteger},
	KindHalf:    {name: "half", size: 2, flags: flagSigned | flagFloat},
	KindFloat:   {name: "float", size: 4, flags: flagSigned | flagFloat},
	KindDouble:  {name: "double", size: 8, flags: flagSigned | flagFloat},
	KindObject:  {name: "object", size: 8},

	KindByte2:   vector("byte2", KindByte, 2),
	KindByte3:   vector("byte3", KindByte, 3),
	KindByte4:   vector("byte4", KindByte, 4),
	KindShort2:  vector("short2", KindShort, 2),
	KindShort3:  vector("short3", KindShort, 3),
	KindInt2:    vector("int2", KindInt, 2),
	KindInt3:    vector("int3", KindInt, 3),
	KindInt4:    vector("int4", KindInt, 4),
	KindInt8:    vector("int8", KindInt, 8),
	KindInt16:   vector("int16", KindInt, 16),
	KindFloat2:  vector("float2", KindFloat, 2),
	KindFloat3:  vector("float3", KindFloat, 3),
	KindFloat4:  vector("float4", KindFloat, 4),
	KindFloat8:  vector("float8", KindFloat, 8),
	KindFloat16: vector("float16", KindFloat, 16),
	KindDouble2: vector("double2", KindDouble, 2),
	KindDouble3: vector("double3", KindDouble, 3),
	KindDouble4: vector("double4", KindDouble, 4),
	KindDouble8: vector("double8", KindDouble, 8),
}

// vector builds a descriptor whose size is always elem.size * lanes.
func vector(name string, elem Kind, lanes int) kindInfo {
	e := scalarInfo(elem)
	return kindInfo{
		name:  name,
		size:  e.size * lanes,
		elem:  elem,
		lanes: lanes,
		flags: (e.flags &^ flagInteger) | flagVector,
	}
}

// scalarInfo is used while kindTable is being initialized, so it cannot
// index kindTable itself.
func scalarInfo(k Kind) kindInfo {
	switch k {
	case KindByte:
		return kindInfo{size: 1, flags: flagSigned | flagInteger}
	case KindShort:
		return kindInfo{size: 2, flags: flagSigned | flagInteger}
	case KindInt:
		return kindInfo{size: 4, flags: flagSigned | flagInteger}
	case KindFloat:
		return kindInfo{size: 4, flags: flagSigned | flagFloat}
	case KindDouble:
		return kindInfo{size: 8, flags: flagSigned | flagFloat}
	}
	panic(fmt.Sprintf("ir: no vector element descriptor for kind %d", k))
}

func (k Kind) info() kindInfo {
	if k >= numKinds {
		return kindTable[KindIllegal]
	}
	return kindTable[k]
}

// String returns the lower-case kind name ("int", "float4").
func (k Kind) String() string { return k.info().name }

// Size returns the size in bytes. For vectors it is Elem().Size() * Lanes().
func (k Kind) Size() int { return k.info().size }

// Elem returns the element kind of a vector, or k itself for scalars.
func (k Kind) Elem() Kind {
	if k.IsVector() {
		return k.info().elem
	}
	return k
}

// Lanes returns the vector length, 1 for scalars.
func (k Kind) Lanes() int {
	if k.IsVector() {
		return k.info().lanes
	}
	return 1
}

func (k Kind) IsVector() bool  { return k.info().flags&flagVector != 0 }
func (k Kind) IsFloat() bool   { return k.Elem().info().flags&flagFloat != 0 }
func (k Kind) IsSigned() bool  { return k.Elem().info().flags&flagSigned != 0 }
func (k Kind) IsInteger() bool { return k.info().flags&flagInteger != 0 }

// IsNumeric reports whether k is an integer or floating-point scalar.
func (k Kind) IsNumeric() bool { return k.IsInteger() || (k.IsFloat() && !k.IsVector()) }

// IntRange returns the smallest and largest value of an integer kind.
func (k Kind) IntRange() (lo, hi int64) {
	bits := 8 * k.Size()
	if !k.IsSigned() {
		return 0, 1<<bits - 1
	}
	return -1 << (bits - 1), 1<<(bits-1) - 1
}

// VectorOf returns the vector kind with the given element and lane count.
func VectorOf(elem Kind, lanes int) (Kind, bool) {
	for k := KindByte2; k < numKinds; k++ {
		if kindTable[k].elem == elem && kindTable[k].lanes == lanes {
			return k, true
		}
	}
	return KindIllegal, false
}

// KindByName resolves a kind from its name. Declared type names such as
// "Float4" or "VectorFloat4" are accepted for vector kinds.
func KindByName(name string) (Kind, bool) {
	for k := Kind(1); k < numKinds; k++ {
		if kindTable[k].name == name {
			return k, true
		}
	}
	return vectorByTypeName(name)
}

func vectorByTypeName(name string) (Kind, bool) {
	lower := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower = append(lower, c)
	}
	s := string(lower)
	if len(s) > 6 && s[:6] == "vector" {
		s = s[6:]
	}
	for k := KindByte2; k < numKinds; k++ {
		if kindTable[k].name == s {
			return k, true
		}
	}
	return KindIllegal, false
}

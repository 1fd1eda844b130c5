package ir

// Argument describes one concrete invocation argument. The boundary layer
// that knows the host types supplies these; passes never inspect host
// values directly.
type Argument interface {
	argument()
}

// Scalar is a boxed primitive argument.
type Scalar struct {
	Value Value
}

// Array is an array argument. Data may be nil when only the length is
// known (specialization needs just Len).
type Array struct {
	Elem Kind
	Len  int
	Data []Value
}

// Object is an object argument described by its fields.
type Object struct {
	Type   string
	Fields []Field
	// Lanes holds the element values of vector-typed objects.
	Lanes []Value
}

// Field describes one object field. Primitive fields carry Value; reference
// fields carry Ref.
type Field struct {
	Name  string
	Kind  Kind
	Final bool
	Value Value
	Ref   Argument
}

// Null is a null reference argument.
type Null struct{}

// Atomic is an atomic integer argument.
type Atomic struct {
	Value int64
}

func (Scalar) argument()  {}
func (*Array) argument()  {}
func (*Object) argument() {}
func (Null) argument()    {}
func (*Atomic) argument() {}

// FieldByName returns the named field.
func (o *Object) FieldByName(name string) (Field, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IntArray builds an int array argument.
func IntArray(vals ...int64) *Array {
	a := &Array{Elem: KindInt, Len: len(vals), Data: make([]Value, len(vals))}
	for i, v := range vals {
		a.Data[i] = IntValue(KindInt, v)
	}
	return a
}

// FloatArray builds a float array argument.
func FloatArray(vals ...float64) *Array {
	a := &Array{Elem: KindFloat, Len: len(vals), Data: make([]Value, len(vals))}
	for i, v := range vals {
		a.Data[i] = FloatValue(KindFloat, v)
	}
	return a
}

// ZeroArray builds an array of n zero elements.
func ZeroArray(elem Kind, n int) *Array {
	a := &Array{Elem: elem, Len: n, Data: make([]Value, n)}
	zero := IntValue(elem, 0)
	if elem.IsFloat() {
		zero = FloatValue(elem, 0)
	}
	for i := range a.Data {
		a.Data[i] = zero
	}
	return a
}

// Ints returns the integer payloads of an array argument.
func (a *Array) Ints() []int64 {
	out := make([]int64, len(a.Data))
	for i, v := range a.Data {
		out[i] = v.Int()
	}
	return out
}

// Floats returns the floating payloads of an array argument.
func (a *Array) Floats() []float64 {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = v.Float()
	}
	return out
}

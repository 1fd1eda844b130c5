package ir

import "fmt"

// Op is the closed set of node variants.
type Op uint8

const (
	OpInvalid Op = iota

	// Control.
	OpStart
	OpReturn
	OpBegin
	OpEnd
	OpMerge
	OpIf
	OpLoopBegin
	OpLoopEnd
	OpLoopExit

	// Fixed statements and values.
	OpLoad
	OpStore
	OpLoadField
	OpBarrier
	OpCall
	OpLocalID
	OpGlobalID
	OpGroupSize
	OpGlobalSize
	OpAtomicInteger
	OpAtomicAdd
	OpVectorStore
	OpAnchor
	OpThreadConfig
	OpPragmaUnroll
	OpGuard

	// Floating.
	OpParam
	OpConst
	OpPhi
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLess
	OpLessEq
	OpEquals
	OpNot
	OpConditional
	OpMath
	OpConvert
	OpArrayLength
	OpIsNull
	OpPi
	OpAtomicCounter
	OpVectorValue
	OpVectorElem
	OpVectorElemProxy
	OpNewArray

	numOps
)

type opClass uint8

const (
	classFloating opClass = iota
	classControl
	classFixed
)

type opInfo struct {
	name  string
	class opClass
}

var opTable = [numOps]opInfo{
	OpInvalid: {"invalid", classFloating},

	OpStart:     {"start", classControl},
	OpReturn:    {"return", classControl},
	OpBegin:     {"begin", classControl},
	OpEnd:       {"end", classControl},
	OpMerge:     {"merge", classControl},
	OpIf:        {"if", classControl},
	OpLoopBegin: {"loop_begin", classControl},
	OpLoopEnd:   {"loop_end", classControl},
	OpLoopExit:  {"loop_exit", classControl},

	OpLoad:          {"load", classFixed},
	OpStore:         {"store", classFixed},
	OpLoadField:     {"load_field", classFixed},
	OpBarrier:       {"barrier", classFixed},
	OpCall:          {"call", classFixed},
	OpLocalID:       {"local_id", classFixed},
	OpGlobalID:      {"global_id", classFixed},
	OpGroupSize:     {"group_size", classFixed},
	OpGlobalSize:    {"global_size", classFixed},
	OpAtomicInteger: {"atomic_integer", classFixed},
	OpAtomicAdd:     {"atomic_add", classFixed},
	OpVectorStore:   {"vector_store", classFixed},
	OpAnchor:        {"anchor", classFixed},
	OpThreadConfig:  {"thread_config", classFixed},
	OpPragmaUnroll:  {"pragma_unroll", classFixed},
	OpGuard:         {"guard", classFixed},

	OpParam:           {"param", classFloating},
	OpConst:           {"const", classFloating},
	OpPhi:             {"phi", classFloating},
	OpAdd:             {"add", classFloating},
	OpSub:             {"sub", classFloating},
	OpMul:             {"mul", classFloating},
	OpDiv:             {"div", classFloating},
	OpRem:             {"rem", classFloating},
	OpAnd:             {"and", classFloating},
	OpOr:              {"or", classFloating},
	OpXor:             {"xor", classFloating},
	OpShl:             {"shl", classFloating},
	OpShr:             {"shr", classFloating},
	OpLess:            {"less", classFloating},
	OpLessEq:          {"less_eq", classFloating},
	OpEquals:          {"equals", classFloating},
	OpNot:             {"not", classFloating},
	OpConditional:     {"conditional", classFloating},
	OpMath:            {"math", classFloating},
	OpConvert:         {"convert", classFloating},
	OpArrayLength:     {"array_length", classFloating},
	OpIsNull:          {"is_null", classFloating},
	OpPi:              {"pi", classFloating},
	OpAtomicCounter:   {"atomic_counter", classFloating},
	OpVectorValue:     {"vector_value", classFloating},
	OpVectorElem:      {"vector_elem", classFloating},
	OpVectorElemProxy: {"vector_elem_proxy", classFloating},
	OpNewArray:        {"new_array", classFloating},
}

func (op Op) String() string {
	if op < numOps {
		return opTable[op].name
	}
	return fmt.Sprintf("op(%d)", op)
}

// OpByName resolves the lower_snake name used in graph documents.
func OpByName(name string) (Op, bool) {
	for op := OpStart; op < numOps; op++ {
		if opTable[op].name == name {
			return op, true
		}
	}
	return OpInvalid, false
}

// IsFixed reports whether nodes of this op live on the control-flow chain.
func (op Op) IsFixed() bool { return op < numOps && opTable[op].class != classFloating }

// IsControl reports whether op is a control-structure node.
func (op Op) IsControl() bool { return op < numOps && opTable[op].class == classControl }

// IsBinary reports whether op is a two-operand arithmetic or comparison op.
func (op Op) IsBinary() bool { return op >= OpAdd && op <= OpEquals }

// IsCompare reports whether op produces a bool from two operands.
func (op Op) IsCompare() bool { return op == OpLess || op == OpLessEq || op == OpEquals }

// IsThreadIdentity reports whether op reads the work-item coordinates.
func (op Op) IsThreadIdentity() bool {
	return op == OpLocalID || op == OpGlobalID || op == OpGroupSize || op == OpGlobalSize
}

// hasNext reports whether a fixed node of this op has a single control
// successor slot.
func (op Op) hasNext() bool {
	switch op {
	case OpReturn, OpEnd, OpLoopEnd, OpIf:
		return false
	}
	return op.IsFixed()
}

// HasSideEffect reports whether a fixed node must be kept even when its
// value is unused.
func (op Op) HasSideEffect() bool {
	switch op {
	case OpStore, OpBarrier, OpCall, OpAtomicInteger, OpAtomicAdd, OpVectorStore,
		OpAnchor, OpThreadConfig, OpPragmaUnroll, OpGuard:
		return true
	}
	return op.IsControl()
}

// MemorySpace classifies where an array reference lives.
type MemorySpace uint8

const (
	SpaceNone MemorySpace = iota
	SpaceGlobal
	SpaceLocal
	SpacePrivate
)

var spaceNames = [...]string{"none", "global", "local", "private"}

func (s MemorySpace) String() string {
	if int(s) < len(spaceNames) {
		return spaceNames[s]
	}
	return fmt.Sprintf("space(%d)", s)
}

// SpaceByName resolves a memory space name.
func SpaceByName(name string) (MemorySpace, bool) {
	for i, n := range spaceNames {
		if n == name {
			return MemorySpace(i), true
		}
	}
	return SpaceNone, false
}

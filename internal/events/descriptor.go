package events

import "fmt"

// Descriptor classifies the command an event belongs to.
type Descriptor uint8

const (
	DescNone Descriptor = iota
	DescSerialKernel
	DescParallelKernel
	DescWriteByte
	DescWriteShort
	DescWriteInt
	DescWriteLong
	DescWriteFloat
	DescWriteDouble
	DescReadByte
	DescReadShort
	DescReadInt
	DescReadLong
	DescReadFloat
	DescReadDouble
	DescSyncMarker
	DescSyncBarrier
)

var descNames = [...]string{
	DescNone:           "none",
	DescSerialKernel:   "serial-kernel",
	DescParallelKernel: "parallel-kernel",
	DescWriteByte:      "write-byte",
	DescWriteShort:     "write-short",
	DescWriteInt:       "write-int",
	DescWriteLong:      "write-long",
	DescWriteFloat:     "write-float",
	DescWriteDouble:    "write-double",
	DescReadByte:       "read-byte",
	DescReadShort:      "read-short",
	DescReadInt:        "read-int",
	DescReadLong:       "read-long",
	DescReadFloat:      "read-float",
	DescReadDouble:     "read-double",
	DescSyncMarker:     "sync-marker",
	DescSyncBarrier:    "sync-barrier",
}

func (d Descriptor) String() string {
	if int(d) < len(descNames) {
		return descNames[d]
	}
	return fmt.Sprintf("descriptor(%d)", d)
}

// IsKernel reports whether d describes a kernel launch.
func (d Descriptor) IsKernel() bool {
	return d == DescSerialKernel || d == DescParallelKernel
}

// IsTransfer reports whether d describes a buffer read or write.
func (d Descriptor) IsTransfer() bool {
	return d >= DescWriteByte && d <= DescReadDouble
}

// TransferDescriptor returns the write (toDevice) or read descriptor for
// an element type name: byte, short, int, long, float or double.
func TransferDescriptor(elem string, toDevice bool) (Descriptor, bool) {
	base := map[string]Descriptor{
		"byte":   DescWriteByte,
		"short":  DescWriteShort,
		"int":    DescWriteInt,
		"long":   DescWriteLong,
		"float":  DescWriteFloat,
		"double": DescWriteDouble,
	}
	d, ok := base[elem]
	if !ok {
		return DescNone, false
	}
	if !toDevice {
		d += DescReadByte - DescWriteByte
	}
	return d, true
}

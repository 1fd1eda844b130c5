package device

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	Context
	name string
}

func (f fakeDevice) Info() Info { return Info{Name: f.name} }

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex(" 1:2 ")
	require.NoError(t, err)
	assert.Equal(t, Index{Backend: 1, Device: 2}, idx)
	assert.Equal(t, "1:2", idx.String())

	for _, bad := range []string{"", "1", "1:2:3", "a:0", "0:b", "-1:0", "0:-1"} {
		_, err := ParseIndex(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, Index{0, 0}, r.Register(0, fakeDevice{name: "gpu"}))
	assert.Equal(t, Index{0, 1}, r.Register(0, fakeDevice{name: "cpu"}))
	assert.Equal(t, Index{2, 0}, r.Register(2, fakeDevice{name: "spirv"}))

	dev, err := r.Lookup(Index{0, 1})
	require.NoError(t, err)
	assert.Equal(t, "cpu", dev.Info().Name)

	assert.Equal(t, []Index{{0, 0}, {0, 1}, {2, 0}}, r.Devices())
}

func TestRegistry_LookupMissing(t *testing.T) {
	r := NewRegistry()
	r.Register(0, fakeDevice{})

	for _, idx := range []Index{{0, 1}, {1, 0}, {-1, 0}, {0, -1}} {
		_, err := r.Lookup(idx)
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf), idx.String())
		assert.Equal(t, idx, nf.Index)
	}
	_, err := r.Lookup(Index{3, 0})
	assert.EqualError(t, err, "no device registered at 3:0")
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(1, fakeDevice{})
		}()
	}
	wg.Wait()
	assert.Len(t, r.Devices(), 16)
}

func TestClassAndBackendNames(t *testing.T) {
	c, ok := ClassByName("GPU")
	assert.True(t, ok)
	assert.Equal(t, ClassGPU, c)
	assert.True(t, c.IsAccelerator())
	assert.False(t, ClassCPU.IsAccelerator())
	assert.True(t, ClassFPGA.IsAccelerator())
	_, ok = ClassByName("tpu")
	assert.False(t, ok)

	b, ok := BackendByName("SPIRV")
	assert.True(t, ok)
	assert.Equal(t, BackendSPIRV, b)
	assert.Equal(t, "opencl", BackendOpenCL.String())
	assert.Equal(t, "backend(9)", Backend(9).String())
	_, ok = BackendByName("cuda")
	assert.False(t, ok)
}

package guest

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
	"github.com/Santiael/wasm-memory-interface/internal/fault"
	"github.com/Santiael/wasm-memory-interface/internal/testutil"
)

type ModuleSuite struct {
	suite.Suite
	mem    *abi.SliceMemory
	arena  *abi.Arena
	rec    *testutil.Recorder
	module *Module
}

func (s *ModuleSuite) SetupTest() {
	mem, arena, err := abi.NewArenaMemory(1 << 12)
	s.Require().NoError(err)
	s.mem = mem
	s.arena = arena
	s.rec = &testutil.Recorder{}
	s.module = New(arena, mem, WithPrinter(s.rec))
}

func (s *ModuleSuite) TestAllocateRoundTrip() {
	for _, n := range []uint32{0, 1, 8, 15, 300} {
		ptr := s.module.Allocate(n)
		if n == 0 {
			s.Zero(ptr)
			continue
		}

		data := make([]byte, n)
		for i := range data {
			data[i] = byte(255 - i%256)
		}
		testutil.RequireWrite(s.T(), s.mem, ptr, data)
		s.Equal(data, testutil.RequireRead(s.T(), s.mem, ptr, n))

		s.module.Deallocate(ptr, n)
	}
	s.Equal(0, s.module.Stats().Allocations)
}

func (s *ModuleSuite) TestLiveAllocationsDoNotOverlap() {
	var live []abi.Handle
	for i := uint32(1); i <= 20; i++ {
		h := abi.Handle{Ptr: s.module.Allocate(i * 3), Len: i * 3}
		for _, other := range live {
			s.False(h.Overlaps(other), "%s overlaps %s", h, other)
		}
		live = append(live, h)
	}
}

func (s *ModuleSuite) TestReadBytesFromMemory() {
	data := []byte{0, 1, 127, 128, 255}
	ptr := s.module.Allocate(uint32(len(data)))
	testutil.RequireWrite(s.T(), s.mem, ptr, data)

	s.module.ReadBytesFromMemory(ptr, uint32(len(data)))

	lines := s.rec.Lines()
	s.Require().Len(lines, len(data)+1, "one header plus one line per byte")
	s.Equal(fmt.Sprintf("[wasm] reading from %#x", ptr), lines[0])
	s.Equal([]string{"[wasm] 0", "[wasm] 1", "[wasm] 127", "[wasm] 128", "[wasm] 255"}, lines[1:])
}

func (s *ModuleSuite) TestReadBytesFromMemory_Empty() {
	s.module.ReadBytesFromMemory(64, 0)
	s.Equal([]string{"[wasm] reading from 0x40"}, s.rec.Lines())
}

func (s *ModuleSuite) TestReadBytesFromMemory_Utf8String() {
	text := "Hello World! 🌎"
	ptr := s.module.Allocate(uint32(len(text)))
	testutil.RequireWrite(s.T(), s.mem, ptr, []byte(text))

	s.module.ReadBytesFromMemory(ptr, uint32(len(text)))

	lines := s.rec.Lines()
	s.Require().Len(lines, len(text)+1)
	s.Equal("[wasm] 240", lines[len(lines)-4], "first byte of the 4-byte globe code point")
}

func (s *ModuleSuite) TestReadNumberFromMemory_DecodeIdentity() {
	values := []float64{
		0,
		math.Copysign(0, -1),
		1.5,
		-2.75,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		math.Inf(1),
		math.Inf(-1),
		math.Float64frombits(0x7FF8_0000_DEAD_BEEF), // NaN with payload
	}

	ptr := s.module.Allocate(NumberSize)
	for _, v := range values {
		testutil.RequireWrite(s.T(), s.mem, ptr, testutil.NumberBytes(v))
		got := s.module.ReadNumberFromMemory(ptr, NumberSize)
		testutil.AssertSameBits(s.T(), v, got, "value %v", v)
	}
	s.Empty(s.rec.Lines(), "a valid read sends no diagnostics")
}

func (s *ModuleSuite) TestReadNumberFromMemory_LengthMismatch() {
	ptr := s.module.Allocate(16)
	testutil.RequireWrite(s.T(), s.mem, ptr, testutil.NumberBytes(42))

	for _, length := range []uint32{0, 1, 7, 9, 16} {
		s.rec.Reset()
		got := s.module.ReadNumberFromMemory(ptr, length)

		testutil.AssertNaN(s.T(), got)
		lines := s.rec.Lines()
		s.Require().Len(lines, 1, "exactly one diagnostic for length %d", length)
		s.Equal(fmt.Sprintf("[wasm] ERROR: expected 8 bytes for f64, got %d", length), lines[0])
	}
}

func (s *ModuleSuite) TestSetHelloOnMemory() {
	first := s.readHello()
	second := s.readHello()

	s.Equal(Greeting, first)
	s.Equal(first, second, "the payload is the same on every call")
	s.Equal(4, s.module.Stats().Allocations, "two payloads and two descriptors now belong to the host")
}

func (s *ModuleSuite) TestSetHelloOnMemory_HostFreesBothBuffers() {
	desc := s.module.SetHelloOnMemory()
	payload, err := abi.DecodeDescriptor(testutil.RequireRead(s.T(), s.mem, desc, abi.DescriptorSize))
	s.Require().NoError(err)

	s.module.Deallocate(payload.Ptr, payload.Len)
	s.module.Deallocate(desc, abi.DescriptorSize)
	s.Equal(0, s.module.Stats().Allocations)
}

func (s *ModuleSuite) readHello() string {
	desc := s.module.SetHelloOnMemory()
	s.Require().NotZero(desc)

	payload, err := abi.DecodeDescriptor(testutil.RequireRead(s.T(), s.mem, desc, abi.DescriptorSize))
	s.Require().NoError(err)
	s.Require().NotZero(payload.Ptr)
	s.Require().Equal(uint32(len(Greeting)), payload.Len)
	s.False(payload.Overlaps(abi.Handle{Ptr: desc, Len: abi.DescriptorSize}))

	return string(testutil.RequireRead(s.T(), s.mem, payload.Ptr, payload.Len))
}

func TestModuleSuite(t *testing.T) {
	suite.Run(t, new(ModuleSuite))
}

func TestGreetingHasMultiByteCodePoint(t *testing.T) {
	assert.Greater(t, len(Greeting), len([]rune(Greeting)))
}

func TestModule_AllocationExhaustionTraps(t *testing.T) {
	mem, arena, err := abi.NewArenaMemory(64)
	require.NoError(t, err)
	m := New(arena, mem, WithPrinter(&testutil.Recorder{}))

	ptr := m.Allocate(16)
	require.NotZero(t, ptr)

	assert.Panics(t, func() { m.Allocate(1024) })
	assert.Equal(t, fault.Trapped, m.Fault().State())

	cause := m.Fault().Cause()
	require.NotNil(t, cause)
	assert.Equal(t, "allocate 1024 bytes with 1 allocations, 16 B in use", cause.Reason)
	assert.ErrorIs(t, cause, abi.ErrOutOfMemory)

	// Trapped is terminal: every entry point now traps.
	assert.Panics(t, func() { m.Allocate(1) })
	assert.Panics(t, func() { m.Deallocate(8, 8) })
	assert.Panics(t, func() { m.ReadBytesFromMemory(8, 1) })
	assert.Panics(t, func() { m.ReadNumberFromMemory(8, 8) })
	assert.Panics(t, func() { m.SetHelloOnMemory() })
}

func TestModule_ExportExhaustionTraps(t *testing.T) {
	mem, arena, err := abi.NewArenaMemory(24)
	require.NoError(t, err)
	m := New(arena, mem, WithPrinter(&testutil.Recorder{}))

	assert.Panics(t, func() { m.SetHelloOnMemory() })
	assert.Equal(t, fault.Trapped, m.Fault().State())
}

func TestModule_UnreadableRangeTraps(t *testing.T) {
	mem, arena, err := abi.NewArenaMemory(64)
	require.NoError(t, err)
	rec := &testutil.Recorder{}
	m := New(arena, mem, WithPrinter(rec))

	assert.Panics(t, func() { m.ReadBytesFromMemory(60, 16) })
	assert.Empty(t, rec.Lines(), "the header is not sent for an unreadable range")
	assert.Equal(t, fault.Trapped, m.Fault().State())
}

func TestModule_SharedFaultPolicy(t *testing.T) {
	mem, arena, err := abi.NewArenaMemory(64)
	require.NoError(t, err)
	policy := fault.New()
	m := New(arena, mem, WithPrinter(&testutil.Recorder{}), WithFaultPolicy(policy))

	policy.Mark("host gave up", nil)
	assert.Panics(t, func() { m.Allocate(8) })
}

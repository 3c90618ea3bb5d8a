package abi

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ArenaSuite struct {
	suite.Suite
	mem   *SliceMemory
	arena *Arena
}

func (s *ArenaSuite) SetupTest() {
	mem, arena, err := NewArenaMemory(4096)
	s.Require().NoError(err)
	s.mem = mem
	s.arena = arena
}

func (s *ArenaSuite) TestRoundTrip() {
	for _, n := range []uint32{1, 7, 8, 9, 64, 1000} {
		ptr, err := s.arena.Allocate(n)
		s.Require().NoError(err)
		s.Require().NotZero(ptr)
		s.Zero(ptr%Alignment, "address %#x is not aligned", ptr)

		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*31 + int(n))
		}
		s.Require().True(s.mem.Write(ptr, data))

		got, ok := s.mem.Read(ptr, n)
		s.Require().True(ok)
		s.Equal(data, got)

		s.arena.Deallocate(ptr, n)
	}
	s.Equal(Stats{}, s.arena.Stats())
}

func (s *ArenaSuite) TestZeroSize() {
	ptr, err := s.arena.Allocate(0)
	s.Require().NoError(err)
	s.Zero(ptr)
	s.Equal(0, s.arena.Stats().Allocations)

	s.arena.Deallocate(0, 0)
	s.Equal(0, s.arena.Stats().Allocations)
}

func (s *ArenaSuite) TestDeallocateDoesNotDisturbNeighbours() {
	a, err := s.arena.Allocate(16)
	s.Require().NoError(err)
	b, err := s.arena.Allocate(16)
	s.Require().NoError(err)
	c, err := s.arena.Allocate(16)
	s.Require().NoError(err)

	s.Require().True(s.mem.Write(a, []byte("aaaaaaaaaaaaaaaa")))
	s.Require().True(s.mem.Write(c, []byte("cccccccccccccccc")))

	s.arena.Deallocate(b, 16)

	gotA, _ := s.mem.Read(a, 16)
	gotC, _ := s.mem.Read(c, 16)
	s.Equal("aaaaaaaaaaaaaaaa", string(gotA))
	s.Equal("cccccccccccccccc", string(gotC))
	s.Equal(2, s.arena.Stats().Allocations)
}

func (s *ArenaSuite) TestReuseAfterFree() {
	a, err := s.arena.Allocate(32)
	s.Require().NoError(err)
	_, err = s.arena.Allocate(32)
	s.Require().NoError(err)

	s.arena.Deallocate(a, 32)

	again, err := s.arena.Allocate(24)
	s.Require().NoError(err)
	s.Equal(a, again, "first fit should reuse the freed span")
}

func (s *ArenaSuite) TestCoalescing() {
	var ptrs []uint32
	for i := 0; i < 4; i++ {
		p, err := s.arena.Allocate(64)
		s.Require().NoError(err)
		ptrs = append(ptrs, p)
	}

	// Free out of order; the four spans must merge back into one block.
	s.arena.Deallocate(ptrs[1], 64)
	s.arena.Deallocate(ptrs[3], 64)
	s.arena.Deallocate(ptrs[0], 64)
	s.arena.Deallocate(ptrs[2], 64)

	s.Len(s.arena.free, 1)
	big, err := s.arena.Allocate(4096 - Alignment)
	s.Require().NoError(err)
	s.Equal(ptrs[0], big)
}

func (s *ArenaSuite) TestDoubleFreeIsIgnored() {
	a, err := s.arena.Allocate(8)
	s.Require().NoError(err)
	b, err := s.arena.Allocate(8)
	s.Require().NoError(err)

	s.arena.Deallocate(a, 8)
	s.arena.Deallocate(a, 8)

	st := s.arena.Stats()
	s.Equal(1, st.Allocations)
	s.Equal(8, st.BytesInUse)

	// b must still be considered live.
	c, err := s.arena.Allocate(8)
	s.Require().NoError(err)
	s.NotEqual(b, c)
}

func (s *ArenaSuite) TestExhaustion() {
	_, err := s.arena.Allocate(4096)
	s.Require().ErrorIs(err, ErrOutOfMemory)

	_, err = s.arena.Allocate(^uint32(0))
	s.Require().ErrorIs(err, ErrInvalidSize)
}

func (s *ArenaSuite) TestDeallocateReturnsBytes() {
	a, err := s.arena.Allocate(100)
	s.Require().NoError(err)
	b, err := s.arena.Allocate(9)
	s.Require().NoError(err)
	s.Equal(104+16, s.arena.Stats().BytesInUse)

	s.arena.Deallocate(a, 100)
	s.Equal(16, s.arena.Stats().BytesInUse)
	s.arena.Deallocate(b, 9)
	s.Equal(Stats{}, s.arena.Stats())
	s.Len(s.arena.free, 1, "freed spans coalesce back into one")
}

func (s *ArenaSuite) TestDeallocateForeignPointer() {
	ptr, err := s.arena.Allocate(16)
	s.Require().NoError(err)

	s.arena.Deallocate(4096+ptr, 16)
	s.arena.Deallocate(0, 0)
	s.Equal(1, s.arena.Stats().Allocations)
}

func TestArenaSuite(t *testing.T) {
	suite.Run(t, new(ArenaSuite))
}

func TestNewArena_Validation(t *testing.T) {
	_, err := NewArena(0, 64)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewArena(3, 64)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewArena(8, 7)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewArena(0xFFFFFFF8, 64)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, _, err = NewArenaMemory(Alignment)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestArena_WithLimit(t *testing.T) {
	arena, err := NewArena(8, 1<<16, WithLimit(1024))
	require.NoError(t, err)

	ptr, err := arena.Allocate(512)
	require.NoError(t, err)
	arena.Deallocate(ptr, 512)

	_, err = arena.Allocate(2048)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Contains(t, err.Error(), "allocation limit exceeded")
	assert.Equal(t, 1024, arena.Stats().Limit)

	// Non-positive limits are ignored.
	unlimited, err := NewArena(8, 1<<16, WithLimit(0), WithLimit(-100))
	require.NoError(t, err)
	assert.Zero(t, unlimited.Stats().Limit)
}

// TestArena_NonAliasing drives a random allocate/free sequence and checks
// that no two live ranges ever overlap and that a range handed out again
// was freed first.
func TestArena_NonAliasing(t *testing.T) {
	arena, err := NewArena(Alignment, 1<<14)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	live := map[uint32]Handle{}

	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for ptr, h := range live {
				arena.Deallocate(ptr, h.Len)
				delete(live, ptr)
				break
			}
			continue
		}

		size := uint32(rng.Intn(200)) + 1
		ptr, err := arena.Allocate(size)
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfMemory)
			continue
		}
		h := Handle{Ptr: ptr, Len: size}
		require.True(t, arena.Contains(ptr))
		for _, other := range live {
			require.False(t, h.Overlaps(other), "%s overlaps live %s", h, other)
		}
		live[ptr] = h
	}

	assert.Equal(t, len(live), arena.Stats().Allocations)
}

func TestStats_String(t *testing.T) {
	assert.Equal(t, "0 allocations, 0 B in use", Stats{}.String())
	assert.Equal(t, "2 allocations, 1.5 KiB in use (limit 1.0 MiB)",
		Stats{Allocations: 2, BytesInUse: 1536, Limit: 1 << 20}.String())
}

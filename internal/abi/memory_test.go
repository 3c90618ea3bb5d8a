package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceMemory_ReadWrite(t *testing.T) {
	mem := NewSliceMemory(32)
	assert.Equal(t, uint32(32), mem.Size())

	require.True(t, mem.Write(4, []byte{1, 2, 3}))
	got, ok := mem.Read(4, 3)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	// Read returns a view.
	got[0] = 9
	again, _ := mem.Read(4, 1)
	assert.Equal(t, byte(9), again[0])
}

func TestSliceMemory_Bounds(t *testing.T) {
	mem := NewSliceMemory(16)

	tests := []struct {
		name   string
		offset uint32
		count  uint32
		ok     bool
	}{
		{"whole memory", 0, 16, true},
		{"empty at end", 16, 0, true},
		{"one past end", 16, 1, false},
		{"straddles end", 10, 7, false},
		{"wraps 32 bits", 0xFFFFFFFF, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := mem.Read(tt.offset, tt.count)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, mem.Write(tt.offset, make([]byte, tt.count)))
		})
	}
}

func TestSliceMemory_ViewCapacityIsClipped(t *testing.T) {
	mem := NewSliceMemory(16)
	view, ok := mem.Read(0, 4)
	require.True(t, ok)

	_ = append(view, 0xFF)
	next, _ := mem.Read(4, 1)
	assert.Equal(t, byte(0), next[0], "appending to a view must not spill into the next buffer")
}

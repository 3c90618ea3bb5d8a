// Package testutil provides common test utilities and assertions for the
// guest and host tests.
package testutil

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
)

// Recorder collects messages in the order they arrive. It satisfies the
// guest's log.Printer; wrap Print in a host.SinkFunc to record host output.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Print records message.
func (r *Recorder) Print(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, message)
}

// Lines returns a copy of everything recorded so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

// AssertNaN asserts that v is NaN.
func AssertNaN(t *testing.T, v float64, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, math.IsNaN(v), msgAndArgs...)
}

// AssertSameBits asserts that two floats have identical bit patterns, which
// unlike == also holds for matching NaN payloads.
func AssertSameBits(t *testing.T, expected, actual float64, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, math.Float64bits(expected), math.Float64bits(actual), msgAndArgs...)
}

// NumberBytes returns the linear-memory encoding of v.
func NumberBytes(v float64) []byte {
	buf := make([]byte, 8)
	abi.ByteOrder.PutUint64(buf, math.Float64bits(v))
	return buf
}

// RequireWrite writes data at ptr or fails the test.
func RequireWrite(t *testing.T, mem abi.Memory, ptr uint32, data []byte) {
	t.Helper()
	require.True(t, mem.Write(ptr, data), "write %d bytes at %#x", len(data), ptr)
}

// RequireRead reads length bytes at ptr or fails the test. The result is a
// copy.
func RequireRead(t *testing.T, mem abi.Memory, ptr, length uint32) []byte {
	t.Helper()
	view, ok := mem.Read(ptr, length)
	require.True(t, ok, "read %d bytes at %#x", length, ptr)
	return append([]byte(nil), view...)
}

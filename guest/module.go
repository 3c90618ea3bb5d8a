package guest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
	"github.com/Santiael/wasm-memory-interface/internal/fault"
	"github.com/Santiael/wasm-memory-interface/log"
)

// NumberSize is the only length ReadNumberFromMemory accepts.
const NumberSize = 8

// Greeting is the payload exported by SetHelloOnMemory.
const Greeting = "Hello World! 🌎"

// Module is one guest unit. All entry points share its allocator for the
// whole life of the unit.
type Module struct {
	alloc   abi.Allocator
	mem     abi.Memory
	handler slog.Handler
	fault   *fault.Policy
}

// Option configures a Module.
type Option func(*Module)

// WithHandler sets the diagnostic handler. Defaults to a log.Handler that
// prints to the host.
func WithHandler(h slog.Handler) Option {
	return func(m *Module) {
		m.handler = h
	}
}

// WithPrinter is shorthand for a default log.Handler bound to p.
func WithPrinter(p log.Printer) Option {
	return func(m *Module) {
		m.handler = log.NewHandler(log.WithPrinter(p))
	}
}

// WithFaultPolicy shares a fault policy between modules or with a caller
// that needs to observe the trap state.
func WithFaultPolicy(p *fault.Policy) Option {
	return func(m *Module) {
		m.fault = p
	}
}

// New creates a Module over the given allocator and memory.
func New(alloc abi.Allocator, mem abi.Memory, opts ...Option) *Module {
	m := &Module{
		alloc: alloc,
		mem:   mem,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.handler == nil {
		m.handler = log.NewHandler()
	}
	if m.fault == nil {
		m.fault = fault.New()
	}
	return m
}

// Fault returns the module's fault policy.
func (m *Module) Fault() *fault.Policy {
	return m.fault
}

// Stats returns the allocator's live records.
func (m *Module) Stats() abi.Stats {
	return m.alloc.Stats()
}

// Allocate returns the address of a buffer of exactly size bytes with
// unspecified contents. Exhaustion traps.
func (m *Module) Allocate(size uint32) uint32 {
	m.fault.Guard()
	ptr, err := m.alloc.Allocate(size)
	if err != nil {
		m.fault.Must(err, fmt.Sprintf("allocate %d bytes with %s", size, m.alloc.Stats()))
	}
	return ptr
}

// Deallocate releases the buffer at ptr. size must be the size it was
// allocated with.
func (m *Module) Deallocate(ptr, size uint32) {
	m.fault.Guard()
	m.alloc.Deallocate(ptr, size)
}

// ReadBytesFromMemory sends a header line and then one line per byte of
// [ptr, ptr+length), in ascending address order.
func (m *Module) ReadBytesFromMemory(ptr, length uint32) {
	m.fault.Guard()
	bytes := m.borrow(ptr, length)

	m.diag(slog.LevelInfo, fmt.Sprintf("reading from %#x", ptr))
	for _, b := range bytes {
		m.diag(slog.LevelInfo, strconv.Itoa(int(b)))
	}
}

// ReadNumberFromMemory reinterprets the 8 bytes at ptr as a float64 in
// linear-memory byte order. Any other length sends one diagnostic naming it
// and returns NaN; callers that must tell a stored NaN from a rejected
// length check the length themselves.
func (m *Module) ReadNumberFromMemory(ptr, length uint32) float64 {
	m.fault.Guard()
	if length != NumberSize {
		m.diag(slog.LevelError, fmt.Sprintf("expected %d bytes for f64, got %d", NumberSize, length))
		return math.NaN()
	}

	bytes := m.borrow(ptr, length)
	return math.Float64frombits(abi.ByteOrder.Uint64(bytes))
}

// SetHelloOnMemory exports Greeting. It returns the address of an 8-byte
// descriptor holding [payload address, payload length]. Both buffers belong
// to the host afterwards.
func (m *Module) SetHelloOnMemory() uint32 {
	m.fault.Guard()
	payload, err := abi.Transfer(m.alloc, m.mem, []byte(Greeting))
	m.fault.Must(err, "export greeting payload")

	desc, err := abi.Transfer(m.alloc, m.mem, abi.EncodeDescriptor(payload))
	m.fault.Must(err, "export greeting descriptor")
	return desc.Ptr
}

// borrow returns a view of a host-owned range. Memories that can tell the
// range is unreadable make that a trap; the native memory cannot tell.
func (m *Module) borrow(ptr, length uint32) []byte {
	bytes, ok := m.mem.Read(ptr, length)
	if !ok {
		m.fault.Must(fmt.Errorf("read %d bytes at %#x: %w", length, ptr, abi.ErrOutOfBounds), "borrow host buffer")
	}
	return bytes
}

// diag sends one diagnostic message. A message that cannot be rendered is a
// broken invariant.
func (m *Module) diag(level slog.Level, msg string) {
	ctx := context.Background()
	if !m.handler.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	m.fault.Must(m.handler.Handle(ctx, r), "send diagnostic")
}

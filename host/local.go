package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/Santiael/wasm-memory-interface/guest"
	wazeroadapter "github.com/Santiael/wasm-memory-interface/infrastructure/wazero"
	"github.com/Santiael/wasm-memory-interface/internal/abi"
	"github.com/Santiael/wasm-memory-interface/internal/fault"
	"github.com/Santiael/wasm-memory-interface/log"
)

// NewLocal runs the guest logic in-process over a byte slice that stands in
// for linear memory, behind the same Instance API as a compiled guest. A
// trap inside the guest is recovered at the call boundary and reported as a
// failed call, as wazero would report it.
func NewLocal(name string, opts ...Option) (*Instance, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if name == "" {
		name = DefaultGuestName
	}

	mem, arena, err := abi.NewArenaMemory(cfg.localMemorySize)
	if err != nil {
		return nil, fmt.Errorf("local guest %q: %w", name, err)
	}

	lm := &localModule{mem: mem, sink: cfg.resolvedSink(), maxMessage: cfg.maxMessageSize}
	lm.unit = guest.New(arena, mem, guest.WithPrinter(log.PrinterFunc(lm.print)))

	cfg.logger.Debug("local guest created", "guest", name, "memory", cfg.localMemorySize)
	return newInstance(name, lm, cfg.logger), nil
}

// localModule dispatches export names to a guest.Module. Calls are
// serialized, as they are on a wasm instance.
type localModule struct {
	mu         sync.Mutex
	unit       *guest.Module
	mem        *abi.SliceMemory
	sink       Sink
	maxMessage uint32

	// ctx of the call in progress, for print.
	ctx context.Context
}

func (m *localModule) print(message string) {
	if m.maxMessage > 0 {
		message = wazeroadapter.TruncateMessage(message, m.maxMessage)
	}
	m.sink.Print(m.ctx, message)
}

func (m *localModule) call(ctx context.Context, name string, params ...uint64) (res []uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	defer func() { m.ctx = nil }()
	defer fault.Recover(&err)

	arg := func(i int) uint32 {
		if i >= len(params) {
			m.unit.Fault().Trap("%s: missing argument %d", name, i)
		}
		return api.DecodeU32(params[i])
	}

	switch name {
	case ExportAllocate:
		return []uint64{api.EncodeU32(m.unit.Allocate(arg(0)))}, nil
	case ExportDeallocate:
		m.unit.Deallocate(arg(0), arg(1))
		return nil, nil
	case ExportReadBytesFromMemory:
		m.unit.ReadBytesFromMemory(arg(0), arg(1))
		return nil, nil
	case ExportReadNumberFromMemory:
		return []uint64{api.EncodeF64(m.unit.ReadNumberFromMemory(arg(0), arg(1)))}, nil
	case ExportSetHelloOnMemory:
		return []uint64{api.EncodeU32(m.unit.SetHelloOnMemory())}, nil
	default:
		return nil, &ExportError{Name: name}
	}
}

func (m *localModule) memory() abi.Memory {
	return m.mem
}

func (m *localModule) close(context.Context) error {
	return nil
}

package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
)

// wazeroModule is a guest instantiated by wazero.
type wazeroModule struct {
	mod api.Module
}

func (m *wazeroModule) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := m.mod.ExportedFunction(name)
	if fn == nil {
		return nil, &ExportError{Name: name}
	}
	return fn.Call(ctx, params...)
}

func (m *wazeroModule) memory() abi.Memory {
	mem := m.mod.Memory()
	if mem == nil {
		return nil
	}
	return mem
}

func (m *wazeroModule) close(ctx context.Context) error {
	return m.mod.Close(ctx)
}

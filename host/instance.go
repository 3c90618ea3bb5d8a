package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	wazeroadapter "github.com/Santiael/wasm-memory-interface/infrastructure/wazero"
	"github.com/Santiael/wasm-memory-interface/internal/abi"
	"github.com/Santiael/wasm-memory-interface/internal/fault"
)

// Export names of the boundary ABI.
const (
	ExportAllocate             = "allocate"
	ExportDeallocate           = "deallocate"
	ExportReadBytesFromMemory  = "read_bytes_from_memory"
	ExportReadNumberFromMemory = "read_number_from_memory"
	ExportSetHelloOnMemory     = "set_hello_on_memory"
)

// guestModule is a running guest, compiled or in-process.
type guestModule interface {
	call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
	memory() abi.Memory
	close(ctx context.Context) error
}

// Instance is one guest unit as seen from the host.
type Instance struct {
	name   string
	mod    guestModule
	state  *fault.Policy
	logger *slog.Logger
}

func newInstance(name string, mod guestModule, logger *slog.Logger) *Instance {
	return &Instance{
		name:   name,
		mod:    mod,
		state:  fault.New(),
		logger: logger.With("guest", name),
	}
}

// Name returns the instance name.
func (i *Instance) Name() string {
	return i.name
}

// State reports whether the guest is still usable.
func (i *Instance) State() fault.State {
	return i.state.State()
}

// Close releases the guest.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.close(ctx)
}

// Allocate asks the guest for a buffer of size bytes. The host owns the
// returned address until it calls Deallocate.
func (i *Instance) Allocate(ctx context.Context, size uint32) (uint32, error) {
	res, err := i.invoke(ctx, ExportAllocate, 1, api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

// Deallocate returns a buffer to the guest. size must match the allocation.
func (i *Instance) Deallocate(ctx context.Context, ptr, size uint32) error {
	_, err := i.invoke(ctx, ExportDeallocate, 0, api.EncodeU32(ptr), api.EncodeU32(size))
	return err
}

// ReadBytesFromMemory makes the guest print a dump of the range.
func (i *Instance) ReadBytesFromMemory(ctx context.Context, ptr, length uint32) error {
	_, err := i.invoke(ctx, ExportReadBytesFromMemory, 0, api.EncodeU32(ptr), api.EncodeU32(length))
	return err
}

// ReadNumberFromMemory makes the guest decode a float64 from the range.
// NaN is also what the guest returns for a length other than 8.
func (i *Instance) ReadNumberFromMemory(ctx context.Context, ptr, length uint32) (float64, error) {
	res, err := i.invoke(ctx, ExportReadNumberFromMemory, 1, api.EncodeU32(ptr), api.EncodeU32(length))
	if err != nil {
		return 0, err
	}
	return api.DecodeF64(res[0]), nil
}

// SetHelloOnMemory makes the guest export its greeting and returns the
// descriptor address. Both the descriptor and the payload it points to are
// now owned by the host; Hello frees them for you.
func (i *Instance) SetHelloOnMemory(ctx context.Context) (uint32, error) {
	res, err := i.invoke(ctx, ExportSetHelloOnMemory, 1)
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

// Hello fetches the guest's greeting, then frees the payload and the
// descriptor.
func (i *Instance) Hello(ctx context.Context) (string, error) {
	desc, err := i.SetHelloOnMemory(ctx)
	if err != nil {
		return "", err
	}
	payload, err := i.ReadDescriptor(desc)
	if err != nil {
		return "", err
	}
	text, err := i.ReadString(payload)
	if err != nil {
		return "", err
	}

	if err := i.Deallocate(ctx, payload.Ptr, payload.Len); err != nil {
		return "", fmt.Errorf("free greeting payload: %w", err)
	}
	if err := i.Deallocate(ctx, desc, abi.DescriptorSize); err != nil {
		return "", fmt.Errorf("free greeting descriptor: %w", err)
	}
	return text, nil
}

// Read copies the bytes of h out of guest memory.
func (i *Instance) Read(h abi.Handle) ([]byte, error) {
	mem, err := i.memory()
	if err != nil {
		return nil, err
	}
	view, ok := mem.Read(h.Ptr, h.Len)
	if !ok {
		return nil, &MemoryError{Op: "read", Ptr: h.Ptr, Len: h.Len}
	}
	return append([]byte(nil), view...), nil
}

// Write copies data into guest memory at ptr.
func (i *Instance) Write(ptr uint32, data []byte) error {
	mem, err := i.memory()
	if err != nil {
		return err
	}
	if !mem.Write(ptr, data) {
		return &MemoryError{Op: "write", Ptr: ptr, Len: uint32(len(data))} //nolint:gosec // G115: reported length only
	}
	return nil
}

// ReadDescriptor decodes the [ptr, len] descriptor stored at ptr.
func (i *Instance) ReadDescriptor(ptr uint32) (abi.Handle, error) {
	buf, err := i.Read(abi.Handle{Ptr: ptr, Len: abi.DescriptorSize})
	if err != nil {
		return abi.Handle{}, err
	}
	return abi.DecodeDescriptor(buf)
}

// ReadString reads h as UTF-8 text.
func (i *Instance) ReadString(h abi.Handle) (string, error) {
	buf, err := i.Read(h)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("string at %s is not valid UTF-8", h)
	}
	return string(buf), nil
}

func (i *Instance) memory() (abi.Memory, error) {
	if err := i.state.Err(); err != nil {
		return nil, &TrapError{Export: "memory", Err: err}
	}
	mem := i.mod.memory()
	if mem == nil {
		return nil, ErrNoMemory
	}
	return mem, nil
}

// invoke calls an export and checks it produced want results. Any failure
// raised by the guest moves the instance to Trapped.
func (i *Instance) invoke(ctx context.Context, name string, want int, params ...uint64) ([]uint64, error) {
	if err := i.state.Err(); err != nil {
		return nil, &TrapError{Export: name, Err: err}
	}

	ctx = wazeroadapter.WithGuestName(ctx, i.name)
	res, err := i.mod.call(ctx, name, params...)
	if err != nil {
		var exportErr *ExportError
		if errors.As(err, &exportErr) {
			return nil, err
		}
		cause := i.state.Mark("call "+name, err)
		i.logger.ErrorContext(ctx, "guest trapped", "export", name, "error", err)
		return nil, &TrapError{Export: name, Err: cause}
	}
	if len(res) != want {
		return nil, &ExportError{Name: name, Reason: fmt.Sprintf("returned %d results, want %d", len(res), want)}
	}
	return res, nil
}

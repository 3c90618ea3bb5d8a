package host

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/Santiael/wasm-memory-interface/internal/abi"
)

// Encoded sizes of the scalar kinds SetInMemory accepts.
const (
	NumberBytes  = 8
	BooleanBytes = 1
)

// Allocator places host values in guest memory through the guest's own
// allocate export, so the guest can read them by address.
type Allocator struct {
	inst   *Instance
	logger *slog.Logger
}

// NewAllocator returns an Allocator over inst.
func NewAllocator(inst *Instance) *Allocator {
	return &Allocator{inst: inst, logger: inst.logger}
}

// Encode returns the bytes SetInMemory would store for v. Numbers are
// float64 in linear-memory byte order, booleans a single 0 or 1, strings
// their UTF-8 bytes.
func Encode(v any) ([]byte, error) {
	switch v := v.(type) {
	case float64:
		buf := make([]byte, NumberBytes)
		abi.ByteOrder.PutUint64(buf, math.Float64bits(v))
		return buf, nil
	case float32:
		return Encode(float64(v))
	case int:
		return Encode(float64(v))
	case bool:
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// SetInMemory encodes v, allocates a guest buffer of exactly that size and
// writes it there. The caller owns the returned handle and releases it with
// Free.
func (a *Allocator) SetInMemory(ctx context.Context, v any) (abi.Handle, error) {
	data, err := Encode(v)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to allocate", "value", v, "error", err)
		return abi.Handle{}, err
	}
	size := uint32(len(data)) //nolint:gosec // G115: wasm32 buffers are bounded by 4 GiB

	ptr, err := a.inst.Allocate(ctx, size)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to allocate", "value", v, "error", err)
		return abi.Handle{}, fmt.Errorf("allocate %s: %w", humanize.IBytes(uint64(size)), err)
	}
	h := abi.Handle{Ptr: ptr, Len: size}
	if err := a.inst.Write(ptr, data); err != nil {
		_ = a.inst.Deallocate(ctx, ptr, size)
		return abi.Handle{}, err
	}

	a.logger.InfoContext(ctx, "value allocated",
		"value", v, "ptr", fmt.Sprintf("%#x", ptr), "size", humanize.IBytes(uint64(size)))
	return h, nil
}

// Free returns a buffer from SetInMemory to the guest. A zero handle is a
// no-op.
func (a *Allocator) Free(ctx context.Context, h abi.Handle) error {
	if h.IsZero() {
		return nil
	}
	if err := a.inst.Deallocate(ctx, h.Ptr, h.Len); err != nil {
		a.logger.ErrorContext(ctx, "failed to deallocate", "ptr", fmt.Sprintf("%#x", h.Ptr), "error", err)
		return err
	}
	a.logger.InfoContext(ctx, "deallocation succeeded", "ptr", fmt.Sprintf("%#x", h.Ptr))
	return nil
}

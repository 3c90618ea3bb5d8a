package wazero

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// DefaultModuleName is the import module the guest's print lives in.
const DefaultModuleName = "env"

// PrintFunctionName is the import name of the notification function.
const PrintFunctionName = "print"

// DefaultMaxMessageSize limits how much of one message is read (64KB).
// This keeps a guest from making the host copy arbitrary amounts of memory.
const DefaultMaxMessageSize = 64 * 1024

// PrintFunc receives one message from the guest module mod.
type PrintFunc func(ctx context.Context, mod api.Module, message string)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// MaxMessageSize caps the bytes read per print call. Longer messages are
	// truncated at a character boundary. Default is 64KB.
	MaxMessageSize uint32
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithMaxMessageSize sets the per-message read cap. Zero keeps the default.
func WithMaxMessageSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		if size > 0 {
			c.MaxMessageSize = size
		}
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

// RegisterWithRuntime instantiates the host module that implements the
// guest's print import. It must run before the guest is instantiated.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, printFn PrintFunc, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	_, err := runtime.NewHostModuleBuilder(DefaultModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handlePrint(ctx, mod, stack, printFn, cfg.MaxMessageSize)
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{}).
		WithParameterNames("ptr", "len").
		Export(PrintFunctionName).
		Instantiate(ctx)
	return err
}

// handlePrint reads one message from guest memory and forwards it.
func handlePrint(ctx context.Context, mod api.Module, stack []uint64, printFn PrintFunc, maxSize uint32) {
	ptr := api.DecodeU32(stack[0])
	length := api.DecodeU32(stack[1])

	message, ok := readMessage(mod.Memory(), ptr, length, maxSize)
	if !ok {
		slog.ErrorContext(ctx, "wazero: failed to read print message from guest memory",
			"guest", GetGuestName(ctx, mod), "ptr", ptr, "len", length)
		return
	}
	if length > maxSize {
		slog.WarnContext(ctx, "wazero: print message truncated",
			"guest", GetGuestName(ctx, mod), "len", length, "max", maxSize)
	}
	printFn(ctx, mod, message)
}

// memoryReader is the part of api.Memory the adapter needs.
type memoryReader interface {
	Read(offset, byteCount uint32) ([]byte, bool)
}

// readMessage copies up to maxSize bytes at ptr out of guest memory. A
// truncated message ends on a character boundary.
func readMessage(mem memoryReader, ptr, length, maxSize uint32) (string, bool) {
	if mem == nil {
		return "", false
	}
	if length == 0 {
		return "", true
	}
	n := length
	if length > maxSize {
		// One byte past the cap tells whether the cut splits a character.
		n = maxSize + 1
	}
	data, ok := mem.Read(ptr, n)
	if !ok {
		return "", false
	}
	return TruncateMessage(string(data), maxSize), true
}

// TruncateMessage shortens message to at most maxSize bytes without
// splitting a multi-byte UTF-8 sequence.
func TruncateMessage(message string, maxSize uint32) string {
	if uint64(len(message)) <= uint64(maxSize) {
		return message
	}
	cut := int(maxSize)
	for i := 0; i < utf8.UTFMax-1 && cut > 0 && !utf8.RuneStart(message[cut]); i++ {
		cut--
	}
	return message[:cut]
}

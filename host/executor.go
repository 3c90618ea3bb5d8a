package host

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	wazeroadapter "github.com/Santiael/wasm-memory-interface/infrastructure/wazero"
)

// initializeExport is the reactor entry point a -buildmode=c-shared guest
// needs called before any other export.
const initializeExport = "_initialize"

// exportSignature is the expected wasm signature of one boundary export.
type exportSignature struct {
	name     string
	params   []api.ValueType
	results  []api.ValueType
	required bool
}

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

var boundaryExports = []exportSignature{
	{name: ExportAllocate, params: []api.ValueType{i32}, results: []api.ValueType{i32}, required: true},
	{name: ExportDeallocate, params: []api.ValueType{i32, i32}, required: true},
	{name: ExportReadBytesFromMemory, params: []api.ValueType{i32, i32}},
	{name: ExportReadNumberFromMemory, params: []api.ValueType{i32, i32}, results: []api.ValueType{f64}},
	{name: ExportSetHelloOnMemory, results: []api.ValueType{i32}},
}

// Executor runs compiled guests on one wazero runtime. Every guest it loads
// shares the env.print host module, which forwards to the configured Sink.
type Executor struct {
	runtime wazero.Runtime
	config  config
}

// NewExecutor creates a runtime with WASI and the env host module.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := wazero.NewRuntimeConfig()
	if cfg.memoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	sink := cfg.resolvedSink()
	printFn := func(ctx context.Context, _ api.Module, message string) {
		sink.Print(ctx, message)
	}
	if err := wazeroadapter.RegisterWithRuntime(ctx, r, printFn,
		wazeroadapter.WithMaxMessageSize(cfg.maxMessageSize)); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to register host module: %w", err)
	}

	return &Executor{runtime: r, config: cfg}, nil
}

// Load compiles and instantiates a guest. The module must export memory and
// the allocate/deallocate pair; the other boundary exports are checked when
// present.
func (e *Executor) Load(ctx context.Context, name string, wasm []byte) (*Instance, error) {
	if name == "" {
		name = DefaultGuestName
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile guest %q: %w", name, err)
	}
	if err := checkExports(compiled.ExportedFunctions()); err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("guest %q: %w", name, err)
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("guest %q: %w", name, ErrNoMemory)
	}

	mc := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions().
		WithStdout(e.config.stdout).
		WithStderr(e.config.stderr)

	ctx = wazeroadapter.WithGuestName(ctx, name)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate guest %q: %w", name, err)
	}

	if fn := mod.ExportedFunction(initializeExport); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to initialize guest %q: %w", name, err)
		}
	}

	e.config.logger.DebugContext(ctx, "guest loaded", "guest", name, "bytes", len(wasm))
	return newInstance(name, &wazeroModule{mod: mod}, e.config.logger), nil
}

// Close releases the runtime and every guest loaded from it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func checkExports(defs map[string]api.FunctionDefinition) error {
	var errs []error
	for _, sig := range boundaryExports {
		def, ok := defs[sig.name]
		if !ok {
			if sig.required {
				errs = append(errs, &ExportError{Name: sig.name})
			}
			continue
		}
		if !slices.Equal(def.ParamTypes(), sig.params) || !slices.Equal(def.ResultTypes(), sig.results) {
			errs = append(errs, &ExportError{
				Name: sig.name,
				Reason: fmt.Sprintf("signature (%s) -> (%s), want (%s) -> (%s)",
					typeNames(def.ParamTypes()), typeNames(def.ResultTypes()),
					typeNames(sig.params), typeNames(sig.results)),
			})
		}
	}
	return errors.Join(errs...)
}

func typeNames(types []api.ValueType) string {
	var s string
	for i, t := range types {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(t)
	}
	return s
}

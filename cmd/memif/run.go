package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"github.com/Santiael/wasm-memory-interface/config"
	"github.com/Santiael/wasm-memory-interface/host"
	"github.com/Santiael/wasm-memory-interface/internal/abi"
)

// runCommand replays the demo against one guest.
type runCommand struct {
	configPath string
	wasmPath   string
	local      bool
	logLevel   string
}

func addRunCommand(app *kingpin.Application) {
	cmd := &runCommand{}
	run := app.Command("run", "Store values in guest memory, read them back and fetch the greeting.").
		Default().
		Action(cmd.run)
	run.Flag("config", "TOML configuration file.").Short('c').StringVar(&cmd.configPath)
	run.Flag("wasm", "Compiled guest module.").Short('w').StringVar(&cmd.wasmPath)
	run.Flag("local", "Run the guest in-process.").BoolVar(&cmd.local)
	run.Flag("log-level", "Host log level.").EnumVar(&cmd.logLevel, "debug", "info", "warn", "error")
}

func (cmd *runCommand) run(*kingpin.ParseContext) error {
	cfg, err := cmd.config()
	if err != nil {
		exitWithErr(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		exitWithErr(err)
	}
	return nil
}

// config merges the file, if any, with the command-line flags.
func (cmd *runCommand) config() (config.Config, error) {
	cfg := config.Default()
	if cmd.configPath != "" {
		loaded, err := config.Read(cmd.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if cmd.wasmPath != "" {
		cfg.Guest.Path = cmd.wasmPath
		cfg.Guest.Local = false
	}
	if cmd.local {
		cfg.Guest.Local = true
	}
	if cmd.logLevel != "" {
		cfg.Log.Level = cmd.logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("component", "host")
}

// open starts the configured guest. The returned func releases it.
func open(ctx context.Context, cfg config.Config, stdout, stderr io.Writer, logger *slog.Logger) (*host.Instance, func(), error) {
	opts := []host.Option{
		host.WithSink(host.WriterSink(stdout)),
		host.WithLogger(logger),
		host.WithMaxMessageSize(cfg.Runtime.MaxMessageSize),
	}

	if cfg.Guest.Local {
		inst, err := host.NewLocal("local", append(opts, host.WithLocalMemorySize(cfg.Guest.LocalMemory))...)
		if err != nil {
			return nil, nil, err
		}
		return inst, func() { _ = inst.Close(ctx) }, nil
	}

	wasm, err := os.ReadFile(cfg.Guest.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read guest: %w", err)
	}
	exec, err := host.NewExecutor(ctx, append(opts,
		host.WithStdio(stderr, stderr),
		host.WithMemoryLimitPages(cfg.Runtime.MemoryLimitPages))...)
	if err != nil {
		return nil, nil, err
	}
	inst, err := exec.Load(ctx, "guest", wasm)
	if err != nil {
		_ = exec.Close(ctx)
		return nil, nil, err
	}
	logger.Info("guest loaded", "path", cfg.Guest.Path, "size", humanize.IBytes(uint64(len(wasm))))
	return inst, func() { _ = exec.Close(ctx) }, nil
}

// run stores the demo values, has the guest dump them, decodes the number,
// fetches the greeting and frees everything it allocated.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) (err error) {
	logger := newLogger(cfg.Log, stderr)
	inst, release, err := open(ctx, cfg, stdout, stderr, logger)
	if err != nil {
		return err
	}
	defer release()

	alloc := host.NewAllocator(inst)
	var refs []abi.Handle
	defer func() {
		for _, h := range refs {
			if ferr := alloc.Free(ctx, h); ferr != nil {
				err = errors.Join(err, ferr)
				return
			}
			fmt.Fprintf(stdout, "[host] deallocation of %#x succeeded\n", h.Ptr)
		}
	}()

	for _, v := range []any{cfg.Demo.Number, cfg.Demo.Boolean, cfg.Demo.Text} {
		h, err := alloc.SetInMemory(ctx, v)
		if err != nil {
			return fmt.Errorf("failed to allocate %v: %w", v, err)
		}
		fmt.Fprintf(stdout, "[host] {%v} allocated on %#x\n", v, h.Ptr)
		refs = append(refs, h)
	}

	for _, h := range refs {
		if err := inst.ReadBytesFromMemory(ctx, h.Ptr, h.Len); err != nil {
			return err
		}
	}

	number, err := inst.ReadNumberFromMemory(ctx, refs[0].Ptr, refs[0].Len)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "[host] reading number from wasm memory: %v\n", number)

	greeting, err := inst.Hello(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "[host] greeting from wasm memory: %s\n", greeting)
	return nil
}

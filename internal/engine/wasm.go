package engine

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// WasmModule runs a precompiled WebAssembly command module under WASI.
// The module sees exactly the three stdio streams plus a read-only mount
// containing its own image; nothing else of the host leaks in.
type WasmModule struct {
	image []byte
	name  string
	fsys  fs.FS
}

// NewWasmModule wraps a compiled wasm image. name is the module's argv[0]
// and its entry name in the mounted filesystem. fsys may be nil.
func NewWasmModule(image []byte, name string, fsys fs.FS) *WasmModule {
	return &WasmModule{image: image, name: name, fsys: fsys}
}

// Run implements Module. It blocks until the module's entry call returns.
// A clean proc_exit(0) is a nil error.
func (m *WasmModule) Run(stdio StdIO) error {
	ctx := context.Background()

	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	compiled, err := runtime.CompileModule(ctx, m.image)
	if err != nil {
		return fmt.Errorf("compile engine module: %w", err)
	}

	cfg := wazero.NewModuleConfig().
		WithName(m.name).
		WithArgs(m.name).
		WithStdin(stdio.Stdin).
		WithStdout(stdio.Stdout).
		WithStderr(stdio.Stderr)
	if m.fsys != nil {
		cfg = cfg.WithFSConfig(wazero.NewFSConfig().WithFSMount(m.fsys, "/"))
	}

	_, err = runtime.InstantiateModule(ctx, compiled, cfg)
	if exitErr, ok := err.(*sys.ExitError); ok && exitErr.ExitCode() == 0 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run engine module: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

type procConfig struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

const assetsDir = "web"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	build := []procConfig{
		{
			Name: "build-wasm",
			Args: []string{"go", "build", "-o", filepath.Join(assetsDir, "main.wasm"), "./cmd/raidfinder-wasm"},
			Env:  []string{"GOOS=js", "GOARCH=wasm"},
		},
	}
	serve := []procConfig{
		{
			Name: "raidfinder-server",
			Args: []string{"go", "run", "./cmd/raidfinder-server", "-config", "raidfinder.yaml"},
		},
	}

	if err := runSequential(ctx, build); err != nil {
		fmt.Fprintf(os.Stderr, "raidfinder build failed: %v\n", err)
		os.Exit(1)
	}
	if err := copyWasmExec(ctx, assetsDir); err != nil {
		fmt.Fprintf(os.Stderr, "raidfinder build failed: %v\n", err)
		os.Exit(1)
	}
	if err := runAll(ctx, serve); err != nil {
		fmt.Fprintf(os.Stderr, "raidfinder exited with error: %v\n", err)
		os.Exit(1)
	}
}

func command(ctx context.Context, cfg procConfig) *exec.Cmd {
	cmd := exec.CommandContext(ctx, cfg.Args[0], cfg.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}
	if len(cfg.Env) > 0 {
		cmd.Env = append(append([]string{}, os.Environ()...), cfg.Env...)
	}
	return cmd
}

// runSequential runs one-shot steps in order and stops at the first failure.
func runSequential(ctx context.Context, procs []procConfig) error {
	for _, cfg := range procs {
		if err := command(ctx, cfg).Run(); err != nil {
			return fmt.Errorf("%s: %w", cfg.Name, err)
		}
	}
	return nil
}

// copyWasmExec places the toolchain's wasm_exec.js next to main.wasm.
func copyWasmExec(ctx context.Context, dir string) error {
	out, err := exec.CommandContext(ctx, "go", "env", "GOROOT").Output()
	if err != nil {
		return fmt.Errorf("go env GOROOT: %w", err)
	}
	root := strings.TrimSpace(string(out))
	var src string
	for _, candidate := range []string{
		filepath.Join(root, "lib", "wasm", "wasm_exec.js"),
		filepath.Join(root, "misc", "wasm", "wasm_exec.js"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			src = candidate
			break
		}
	}
	if src == "" {
		return fmt.Errorf("wasm_exec.js not found under %s", root)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	dst, err := os.Create(filepath.Join(dir, "wasm_exec.js"))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, in); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func runAll(ctx context.Context, procs []procConfig) error {
	if len(procs) == 0 {
		return fmt.Errorf("no processes configured")
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(procs))

	for _, cfg := range procs {
		wg.Add(1)
		go func(cfg procConfig) {
			defer wg.Done()
			cmd := command(ctx, cfg)
			if err := cmd.Start(); err != nil {
				errCh <- fmt.Errorf("%s start: %w", cfg.Name, err)
				return
			}
			if err := cmd.Wait(); err != nil {
				// If the context was cancelled, treat the exit as expected.
				select {
				case <-ctx.Done():
					return
				default:
				}
				errCh <- fmt.Errorf("%s exited: %w", cfg.Name, err)
			}
		}(cfg)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		shutdownDelay := time.After(2 * time.Second)
		select {
		case <-done:
		case <-shutdownDelay:
		}
	case err := <-errCh:
		return err
	case <-done:
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spennihana/xeus/internal/api"
	"github.com/spennihana/xeus/internal/auth"
	"github.com/spennihana/xeus/internal/config"
	"github.com/spennihana/xeus/internal/events"
	"github.com/spennihana/xeus/internal/history"
	"github.com/spennihana/xeus/internal/interpreter/echo"
	"github.com/spennihana/xeus/internal/kernel"
	"github.com/spennihana/xeus/internal/lock"
	"github.com/spennihana/xeus/internal/log"
	"github.com/spennihana/xeus/internal/protocol"
	"github.com/spennihana/xeus/internal/transport/zmqtransport"
	"github.com/spennihana/xeus/internal/tui/watch"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "watch":
		os.Exit(runWatch(args))
	case "info":
		os.Exit(runInfo(args))
	case "lock":
		os.Exit(runLock(args))
	case "version":
		fmt.Printf("xeus-kernel version %s (protocol %s)\n", version, protocol.Version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`xeus-kernel - notebook kernel runtime with a pluggable interpreter backend

Usage:
  xeus-kernel <command> [flags]

Commands:
  start     Run the kernel against a connection file
  watch     Monitor a running kernel's iopub stream (TUI)
  info      Print the resolved identity and endpoints of a connection file
  lock      Write integrity checksums for a connection file
  version   Show version information
  help      Show this help message

Run 'xeus-kernel <command> --help' for command-specific flags.
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	connectionPath := fs.String("connection", "", "Path to the connection file (required)")
	configPath := fs.String("config", "", "Path to the kernel config file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *connectionPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: xeus-kernel start --connection FILE [--config FILE]")
		return 1
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	log.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := log.WithComponent("main")
	logger.Info("xeus-kernel starting", "version", version, "connection", *connectionPath)

	conn, err := config.LoadConnection(*connectionPath)
	if err != nil {
		logger.Error("failed to load connection file", "error", err)
		return 1
	}

	lockPath := *connectionPath + ".pid"
	pidLock, err := lock.AcquirePIDLock(lockPath, cfg.Kernel.ID)
	if err != nil {
		if pid, owner, rerr := lock.ReadOwner(lockPath); rerr == nil {
			logger.Error("connection file is already owned by another kernel",
				"path", lockPath, "owner_pid", pid, "owner_kernel", owner)
		} else {
			logger.Error("failed to acquire PID lock", "path", lockPath, "error", err)
		}
		return 1
	}
	defer pidLock.Release()

	authenticator, err := auth.New(conn.SignatureScheme, []byte(conn.Key))
	if err != nil {
		logger.Error("failed to build authenticator", "error", err)
		return 1
	}

	server, err := zmqtransport.New(conn)
	if err != nil {
		logger.Error("failed to bring up transport", "error", err)
		return 1
	}
	logger.Info("transport bound",
		"shell", conn.Endpoint(conn.ShellPort),
		"iopub", conn.Endpoint(conn.IOPubPort))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hist, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		logger.Error("failed to open history store", "path", cfg.History.Path, "error", err)
		return 1
	}
	defer hist.Close()

	interp, err := echo.New(ctx, hist)
	if err != nil {
		logger.Error("failed to initialize interpreter", "error", err)
		return 1
	}

	hub := events.NewHub(256)
	k, err := kernel.New(kernel.Options{
		KernelID:         cfg.Kernel.ID,
		UserName:         cfg.Kernel.UserName,
		Auth:             authenticator,
		Transport:        server,
		Interpreter:      interp,
		Hub:              hub,
		DedicatedControl: cfg.Control.Dedicated,
	})
	if err != nil {
		logger.Error("failed to build kernel", "error", err)
		return 1
	}
	logger.Info("kernel ready", "kernel_id", k.KernelID(), "session", k.SessionID())

	errCh := make(chan error, 2)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{Listen: cfg.API.Listen}, k, k.Comms(), hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		server.Stop()
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed", "error", err)
			server.Stop()
			server.Wait()
			return 1
		}
		// A nil transport error means shutdown_request stopped it.
	}

	server.Wait()
	logger.Info("xeus-kernel stopped")
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", "http://127.0.0.1:9090", "Base URL of the kernel API")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	p := tea.NewProgram(watch.New(*apiURL))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch failed: %v\n", err)
		return 1
	}
	return 0
}

func runInfo(args []string) int {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	connectionPath := fs.String("connection", "", "Path to the connection file (required)")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *connectionPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: xeus-kernel info --connection FILE [--json]")
		return 1
	}

	conn, err := config.LoadConnection(*connectionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load connection file: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(map[string]any{
			"transport":        conn.Transport,
			"signature_scheme": conn.SignatureScheme,
			"shell":            conn.Endpoint(conn.ShellPort),
			"control":          conn.Endpoint(conn.ControlPort),
			"stdin":            conn.Endpoint(conn.StdinPort),
			"iopub":            conn.Endpoint(conn.IOPubPort),
			"heartbeat":        conn.Endpoint(conn.HeartbeatPort),
		}, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("transport:        %s\n", conn.Transport)
	fmt.Printf("signature scheme: %s\n", conn.SignatureScheme)
	fmt.Printf("shell:            %s\n", conn.Endpoint(conn.ShellPort))
	fmt.Printf("control:          %s\n", conn.Endpoint(conn.ControlPort))
	fmt.Printf("stdin:            %s\n", conn.Endpoint(conn.StdinPort))
	fmt.Printf("iopub:            %s\n", conn.Endpoint(conn.IOPubPort))
	fmt.Printf("heartbeat:        %s\n", conn.Endpoint(conn.HeartbeatPort))
	return 0
}

func runLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	connectionPath := fs.String("connection", "", "Path to the connection file (required)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *connectionPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: xeus-kernel lock --connection FILE")
		return 1
	}

	dir := filepath.Dir(*connectionPath)
	if err := config.GenerateChecksums(dir, []string{filepath.Base(*connectionPath)}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock connection file: %v\n", err)
		return 1
	}
	fmt.Printf("Locked %s\n", *connectionPath)
	return 0
}

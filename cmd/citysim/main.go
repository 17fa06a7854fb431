// Command citysim runs the tile city simulation with its HTTP API, or as
// an MCP stdio server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/talgya/tilecity/internal/api"
	"github.com/talgya/tilecity/internal/mcptools"
)

const version = "0.3.0"

func main() {
	// Load .env if present.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    "citysim",
		Usage:   "tile-based city simulation",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file",
				Sources: cli.EnvVars("CITYSIM_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "db",
				Value:   "data/tilecity.db",
				Usage:   "SQLite database path; empty disables it",
				Sources: cli.EnvVars("CITYSIM_DB"),
			},
			&cli.StringFlag{
				Name:    "snapshot",
				Usage:   "zstd snapshot file saved alongside the database",
				Sources: cli.EnvVars("CITYSIM_SNAPSHOT"),
			},
			&cli.IntFlag{
				Name:    "seed",
				Usage:   "map and sim seed (0 = random)",
				Sources: cli.EnvVars("CITYSIM_SEED"),
			},
			&cli.FloatFlag{
				Name:  "speed",
				Value: 1,
				Usage: "initial speed multiplier",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("CITYSIM_LOG_LEVEL"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP API port",
				Sources: cli.EnvVars("CITYSIM_PORT"),
			},
			&cli.StringFlag{
				Name:    "admin-key",
				Usage:   "bearer token for POST endpoints; empty disables them",
				Sources: cli.EnvVars("CITYSIM_ADMIN_KEY"),
			},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the simulation with the HTTP API (default)",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "run the simulation as an MCP stdio server",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("citysim failed", "error", err)
		os.Exit(1)
	}
}

// runServe runs the engine in the foreground with the HTTP API alongside.
func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogger(cmd.String("log-level"), os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	city, err := openCity(cmd)
	if err != nil {
		return err
	}
	defer city.Close()

	adminKey := cmd.String("admin-key")
	if adminKey == "" {
		slog.Warn("CITYSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	hub := api.NewHub()
	go hub.Run(ctx)

	apiServer := &api.Server{
		Sim:            city.Sim,
		Eng:            city.Eng,
		DB:             city.DB,
		Hub:            hub,
		Port:           int(cmd.Int("port")),
		AdminKey:       adminKey,
		SnapshotPath:   city.SnapshotPath,
		BroadcastEvery: 30,
	}
	city.Eng.OnTick = func(tick uint64) {
		city.Sim.Step(tick)
		apiServer.PublishTick(tick)
	}
	srv := apiServer.Start()
	defer api.Shutdown(srv)

	st := city.Sim.Status()
	fmt.Printf("\ntilecity is running: %dx%d map, $%d in the treasury.\n", st.Rows, st.Cols, st.Money)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiServer.Port)
	if st.Tick > 0 {
		fmt.Printf("Resuming from tick %d\n", st.Tick)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	city.Eng.Run(ctx)

	slog.Info("final save...")
	if err := city.Save(); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. City saved.")
	return nil
}

// runMCP runs the engine in the background and serves MCP on stdio. Logs
// go to stderr since stdout carries the protocol.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	setupLogger(cmd.String("log-level"), os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	city, err := openCity(cmd)
	if err != nil {
		return err
	}
	defer city.Close()

	city.Eng.OnTick = city.Sim.Step
	done := make(chan struct{})
	go func() {
		city.Eng.Run(ctx)
		close(done)
	}()

	tools := mcptools.New(city.Sim, city.Eng, version)
	serveErr := tools.ServeStdio()

	stop()
	<-done
	if err := city.Save(); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if serveErr != nil {
		return fmt.Errorf("serve mcp: %w", serveErr)
	}
	return nil
}

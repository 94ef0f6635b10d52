// oracle-db-mcp is an MCP server exposing an Oracle database through a fixed
// catalog of SQL tools and table-schema resources over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alvin/oracle-db-mcp/internal/config"
	"github.com/alvin/oracle-db-mcp/internal/mcp"
	"github.com/alvin/oracle-db-mcp/internal/oracle"
)

// Version information (set via build flags)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "oracle-db-mcp " + config.DescriptorFormat,
	Short:         "MCP server for Oracle database access",
	Long:          "oracle-db-mcp serves Model Context Protocol tools and resources for an Oracle database over stdio.\nIt takes a single connection descriptor of the form " + config.DescriptorFormat + ".",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one connection descriptor argument of the form %s", config.DescriptorFormat)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Handle signals for graceful shutdown
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			<-sigChan
			cancel()
		}()

		return run(ctx, args[0])
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (optional)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, descriptor string) error {
	desc, err := config.ParseDescriptor(descriptor)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Pool initialization failure is fatal: database unreachability at
	// startup is unrecoverable for this process.
	pool, err := oracle.Open(desc, cfg.Pool)
	if err != nil {
		return fmt.Errorf("failed to initialize connection pool: %w", err)
	}

	srv, err := mcp.NewServer(cfg, desc, pool)
	if err != nil {
		pool.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Run the server (blocks until the context is cancelled or stdin closes)
	return srv.Run(ctx)
}

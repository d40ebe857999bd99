package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"podman-mcp/internal/api"
	"podman-mcp/internal/config"
	"podman-mcp/internal/mcp"
	"podman-mcp/internal/podman"
	"podman-mcp/internal/storage"
	"podman-mcp/internal/tools"
)

const shutdownTimeout = 10 * time.Second

var (
	flagConfig string
	flagJSON   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "podman-mcp",
		Short: "MCP server exposing Podman containers and images as tools",
		Long: `podman-mcp serves the Model Context Protocol over HTTP. MCP clients
discover and call tools that list, run, inspect and remove containers and
images through Podman's Docker-compatible REST API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to podman-mcp.yaml")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output in JSON format")

	root.AddCommand(
		newServeCmd(),
		newToolsCmd(),
		newCallCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	return root
}

// newLogger builds the slog logger described by the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// ------------------------------------------------------------------
// serve
// ------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	rt, err := podman.NewClient(cfg.Runtime.URL,
		podman.WithAPIVersion(cfg.Runtime.APIVersion),
		podman.WithTimeout(cfg.Runtime.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create runtime client: %w", err)
	}

	registry, err := tools.NewRuntimeRegistry(rt)
	if err != nil {
		return err
	}

	dispatchOpts := []mcp.Option{
		mcp.WithLogger(logger),
		mcp.WithToolTimeout(cfg.Dispatch.ToolTimeout),
		mcp.WithRetry(cfg.Dispatch.RetryAttempts, cfg.Dispatch.RetryBackoff),
		mcp.WithMaxBatchConcurrency(cfg.Dispatch.MaxBatchConcurrency),
		mcp.WithServerInfo("podman-mcp", version),
	}
	apiOpts := []api.Option{api.WithLogger(logger)}

	if cfg.Storage.Path != "" {
		store, err := storage.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		if cfg.Storage.Retention > 0 {
			pruned, err := store.Prune(ctx, time.Now().Add(-cfg.Storage.Retention))
			if err != nil {
				logger.Warn("failed to prune invocation journal", "error", err)
			} else if pruned > 0 {
				logger.Info("pruned invocation journal", "removed", pruned)
			}
		}

		dispatchOpts = append(dispatchOpts, mcp.WithJournal(store))
		apiOpts = append(apiOpts, api.WithJournal(store))
	}

	dispatcher := mcp.NewDispatcher(registry, dispatchOpts...)
	server := api.New(cfg, dispatcher, registry, rt, apiOpts...)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rt.Ping(pingCtx); err != nil {
		logger.Warn("container runtime not reachable yet", "url", cfg.Runtime.URL, "error", err)
	}
	cancel()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	logger.Info("starting podman-mcp",
		"addr", cfg.Addr(),
		"endpoint", cfg.Endpoint,
		"runtime", cfg.Runtime.URL,
		"tools", registry.Len(),
		"journal", cfg.Storage.Path != "")
	return server.Start()
}

// ------------------------------------------------------------------
// tools
// ------------------------------------------------------------------

func newToolsCmd() *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools this server registers, or those of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []toolLine
			if remote != "" {
				client := mcp.NewClient(remote)
				if err := client.Start(cmd.Context()); err != nil {
					return err
				}
				defer client.Close()

				remoteTools, err := client.ListTools(cmd.Context())
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(cmd.OutOrStdout(), remoteTools)
				}
				for _, t := range remoteTools {
					list = append(list, toolLine{Name: t.Name, ReadOnly: t.Annotations.ReadOnlyHint, Description: t.Description})
				}
			} else {
				// The offline listing never invokes a handler.
				registry, err := tools.NewRuntimeRegistry(nil)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(cmd.OutOrStdout(), registry.List())
				}
				for _, t := range registry.List() {
					list = append(list, toolLine{Name: t.Name, ReadOnly: t.Annotations.ReadOnlyHint, Description: t.Description})
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREAD-ONLY\tDESCRIPTION")
			for _, l := range list {
				readOnly := "no"
				if l.ReadOnly != nil && *l.ReadOnly {
					readOnly = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Name, readOnly, l.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "MCP endpoint URL of a running server")
	return cmd
}

type toolLine struct {
	Name        string
	ReadOnly    *bool
	Description string
}

// ------------------------------------------------------------------
// call
// ------------------------------------------------------------------

func newCallCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "call TOOL [JSON_ARGUMENTS]",
		Short: "Call a tool on a running server",
		Example: `  podman-mcp call list_containers '{"all":true}'
  podman-mcp call exec_command '{"container_id":"web","command":"ls /"}' --url http://127.0.0.1:4000/mcp`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}

			if url == "" {
				cfg, err := config.Load(flagConfig)
				if err != nil {
					return err
				}
				url = "http://" + cfg.Addr() + cfg.Endpoint
			}

			client := mcp.NewClient(url)
			if err := client.Start(cmd.Context()); err != nil {
				return err
			}
			defer client.Close()

			result, err := client.CallTool(cmd.Context(), args[0], arguments)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			for _, block := range result.Content {
				fmt.Fprintln(cmd.OutOrStdout(), block.Text)
			}
			if result.IsError {
				return errors.New("tool reported an error")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "MCP endpoint URL (default derived from config)")
	return cmd
}

// ------------------------------------------------------------------
// history
// ------------------------------------------------------------------

func newHistoryCmd() *cobra.Command {
	var (
		tool  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded tool calls from the invocation journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cfg.Storage.Path == "" {
				return errors.New("invocation journal is disabled (storage.path is empty)")
			}

			store, err := storage.New(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			invocations, err := store.List(cmd.Context(), storage.ListOptions{Tool: tool, Limit: limit})
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), invocations)
			}
			return printHistory(cmd.OutOrStdout(), invocations)
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Only show calls of this tool")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	return cmd
}

func printHistory(out io.Writer, invocations []*storage.Invocation) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOOL\tOUTCOME\tDURATION\tREQUEST\tERROR")
	for _, inv := range invocations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\t%s\n",
			inv.CreatedAt.Local().Format(time.DateTime),
			inv.Tool,
			inv.Outcome,
			inv.DurationMS,
			inv.RequestID,
			inv.Error)
	}
	return w.Flush()
}

// ------------------------------------------------------------------
// version
// ------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

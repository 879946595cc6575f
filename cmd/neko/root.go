package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/memory"
)

var (
	configPath string
	verbose    bool
	tracing    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "neko",
	Short:         "Conversational memory engine",
	Long:          "neko manages conversational memory across a vector index, a relationship graph, and a history log.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if tracing {
			otel.SetTracerProvider(sdktrace.NewTracerProvider())
		}

		if configPath == "" {
			cfg = config.NewDefaultConfig()
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&tracing, "trace", false, "enable OpenTelemetry tracing")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(conversationCmd)
}

// withService builds the memory engine, runs fn, and tears the engine down.
// With --trace every operation is wrapped in an OpenTelemetry span.
func withService(ctx context.Context, fn func(context.Context, memory.Engine) error) error {
	svc, err := memory.NewService(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	var engine memory.Engine = svc
	if tracing {
		engine = memory.NewTracedService(svc, otel.Tracer("neko"))
	}
	defer engine.Close(ctx)
	return fn(ctx, engine)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imfeniljikadara/nexus-ai/internal/app"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pdfchat",
	Short: "Ask questions about PDF documents",
	Long: `pdfchat answers questions about a local PDF or a PDF url, keeping the conversation
for follow-up questions. It uses the same configuration as the api server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		// stdout belongs to the answers and to the mcp protocol
		logger_i.InitTo(os.Stderr, cfg.Log)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfchat: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a yaml config file")
}

// withApp runs fn with a bootstrapped pipeline and a context cancelled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

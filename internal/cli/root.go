// Package cli implements the closetctl command-line interface using Cobra.
// Each subcommand drives one pipeline operation against local files.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"closet/internal/bootstrap"
	"closet/internal/domain"
	"closet/internal/infra"
)

// ExitInterrupted is the conventional status for a run stopped by Ctrl-C.
const ExitInterrupted = 130

type options struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "closetctl",
		Short: "Transform wardrobe photos",
		Long: `closetctl removes backgrounds, renders virtual try-ons and tags garment
photos using the providers configured through the environment. When a
provider is unavailable the original photo is returned unchanged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log provider activity to stderr")

	root.AddCommand(
		newCutoutCmd(opts),
		newTryOnCmd(opts),
		newCategorizeCmd(opts),
		newPaletteCmd(opts),
		newCapabilitiesCmd(opts),
		newHistoryCmd(opts),
		newCredentialsCmd(opts),
	)
	return root
}

// Execute runs the root command. Called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, newRootCmd(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, domain.ErrCallerCancelled) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "interrupted")
		return ExitInterrupted
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

// openRuntime loads configuration and wires the pipeline for one command.
func openRuntime(cmd *cobra.Command, opts *options) (*bootstrap.Runtime, error) {
	infra.LoadEnvFiles()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := zerolog.Nop()
	if opts.verbose {
		logger = infra.NewLogger("development")
	}
	return bootstrap.New(cmd.Context(), cfg, logger)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// photoArg turns a command-line path into an absolute file reference so it is
// read as-is rather than relative to the storage root.
func photoArg(path string) (domain.ImageRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidRequest, path, err)
	}
	return domain.ImageRef{Path: abs}, nil
}

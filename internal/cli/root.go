// Package cli implements the folio command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
	"github.com/mesh-intelligence/folio/internal/config"
	"github.com/mesh-intelligence/folio/internal/logging"
	"github.com/mesh-intelligence/folio/internal/paths"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

const timeLayout = "2006-01-02 15:04:05"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool

	// appOptions replace collaborators of the wired app; tests set them.
	appOptions app.Options
}

// NewRootCmd creates the top-level "folio" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootFlags{})
}

func newRootCmd(flags *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "folio",
		Short: "Generate structured documents section by section with language models",
		Long: "folio queues generation runs for documents whose sections depend on one\n" +
			"another, runs them on a worker pool and tracks each run as an execution.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $FOLIO_CONFIG_DIR or the platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $FOLIO_DATA_DIR or the platform data dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(flags),
		newInitCmd(flags),
		newWorkerCmd(flags),
		newEnqueueCmd(flags),
		newJobCmd(flags),
		newExecutionCmd(flags),
		newProviderCmd(flags),
		newLLMCmd(flags),
		newOrgCmd(flags),
		newDocumentCmd(flags),
		newSectionCmd(flags),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(context.Background(), NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args and returns the process exit code.
func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	code := exitCode(err)
	if kind := types.KindOf(err); kind != "Internal" {
		fmt.Fprintf(stderr, "Error (%s): %s\n", kind, err)
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", err)
	}
	return code
}

// exitCode maps errors the user can fix by changing the request (including
// a rejected dependency cycle) to the user error code and everything else to
// the system error code.
func exitCode(err error) int {
	if types.IsClientError(err) || errors.Is(err, types.ErrCyclicDependency) {
		return exitUserError
	}
	return exitSysError
}

// loadConfig resolves the configuration directory and loads the config.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return config.Load(configDir, f.dataDir)
}

// withApp wires the app for one command, runs fn and closes the app.
func (f *rootFlags) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger, f.appOptions)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Closing application")
		}
	}()
	return fn(ctx, a)
}

// emit writes v as indented JSON in JSON mode, else calls text.
func (f *rootFlags) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if f.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// optionalFlag returns the flag's value when it was set on the command line.
func optionalFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
	"github.com/mesh-intelligence/folio/internal/config"
	"github.com/mesh-intelligence/folio/internal/paths"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize folio configuration and storage",
		Long: "Write a default config.yaml when the configuration directory has none,\n" +
			"then open the database, applying its schema, and the secrets backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
			if err != nil {
				return fmt.Errorf("resolve data dir: %w", err)
			}
			written, err := config.WriteDefault(configDir, dataDir)
			if err != nil {
				return err
			}

			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := map[string]any{
					"config_dir":     configDir,
					"config_written": written,
					"data_dir":       a.Config.DataDir,
					"database":       a.Store.Dialect().String(),
				}
				return flags.emit(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "folio initialized\nconfig: %s\ndata:   %s\n", paths.ConfigFile(configDir), a.Config.DataDir)
				})
			})
		},
	}
}

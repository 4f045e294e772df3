package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
	"github.com/mesh-intelligence/folio/internal/provider"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// EnvProviderKey supplies a provider key without putting it on the command line.
const EnvProviderKey = "FOLIO_PROVIDER_KEY"

func newProviderCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage LLM providers",
	}
	cmd.AddCommand(
		newProviderCreateCmd(flags),
		newProviderUpdateCmd(flags),
		newProviderListCmd(flags),
		newProviderDeleteCmd(flags),
		newProviderTypesCmd(flags),
	)
	return cmd
}

// providerInput collects the secret-bearing flags. The key falls back to
// $FOLIO_PROVIDER_KEY.
func providerInput(cmd *cobra.Command, name string) provider.Input {
	in := provider.Input{
		Name:       name,
		Key:        optionalFlag(cmd, "key"),
		Endpoint:   optionalFlag(cmd, "endpoint"),
		Deployment: optionalFlag(cmd, "deployment"),
	}
	if in.Key == nil {
		if v, ok := os.LookupEnv(EnvProviderKey); ok && v != "" {
			in.Key = &v
		}
	}
	return in
}

func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "API key (default: $"+EnvProviderKey+")")
	cmd.Flags().String("endpoint", "", "API endpoint")
	cmd.Flags().String("deployment", "", "deployment name (azure-openai)")
}

func printProvider(w io.Writer, p *types.LLMProvider) {
	fmt.Fprintf(w, "provider: %s\nname:     %s\n", p.ProviderID, p.Name)
	for _, f := range []string{types.FieldKey, types.FieldEndpoint, types.FieldDeployment} {
		if v := p.Field(f); v != nil {
			fmt.Fprintf(w, "%-9s %s\n", f+":", *v)
		}
	}
}

func newProviderCreateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <provider-name>",
		Short: "Configure a provider; secret fields go to the secrets backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := providerInput(cmd, args[0])
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Catalog.Create(ctx, in)
				if err != nil {
					return err
				}
				return flags.emit(cmd, p, func(w io.Writer) { printProvider(w, p) })
			})
		},
	}
	addProviderFlags(cmd)
	return cmd
}

func newProviderUpdateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <provider-id>",
		Short: "Replace a provider's secret fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Catalog.Update(ctx, args[0], providerInput(cmd, ""))
				if err != nil {
					return err
				}
				return flags.emit(cmd, p, func(w io.Writer) { printProvider(w, p) })
			})
		},
	}
	addProviderFlags(cmd)
	return cmd
}

func newProviderListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Catalog.List(ctx)
				if err != nil {
					return err
				}
				return flags.emit(cmd, list, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tCREATED")
					for _, p := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ProviderID, p.Name, p.CreatedAt.Format(timeLayout))
					}
					tw.Flush()
				})
			})
		},
	}
}

func newProviderDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider-id>",
		Short: "Delete a provider and its models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Catalog.Delete(ctx, args[0]); err != nil {
					return err
				}
				return flags.emit(cmd, map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted provider %s\n", args[0])
				})
			})
		},
	}
}

func newProviderTypesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported providers and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := types.Capabilities()
			return flags.emit(cmd, caps, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tREQUIRED\tACCEPTED")
				for _, c := range caps {
					fmt.Fprintf(tw, "%s\t%v\t%v\n", c.Name, c.Required, c.Accepted)
				}
				tw.Flush()
			})
		},
	}
}

func newLLMCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Manage the models offered by providers",
	}
	cmd.AddCommand(newLLMCreateCmd(flags), newLLMListCmd(flags), newLLMDeleteCmd(flags))
	return cmd
}

func newLLMCreateCmd(flags *rootFlags) *cobra.Command {
	var m types.LLM
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a model with a provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.CreateLLM(ctx, &m); err != nil {
					return err
				}
				return flags.emit(cmd, m, func(w io.Writer) {
					fmt.Fprintf(w, "llm %s (%s) registered as %s\n", m.Name, m.InternalName, m.LLMID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&m.ProviderID, "provider", "", "provider id (required)")
	cmd.Flags().StringVar(&m.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&m.InternalName, "model", "", "model id sent to the provider (required)")
	cmd.Flags().BoolVar(&m.IsDefault, "default", false, "make this the default model")
	return cmd
}

func newLLMListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Store.ListLLMs(ctx)
				if err != nil {
					return err
				}
				return flags.emit(cmd, list, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tMODEL\tPROVIDER\tDEFAULT")
					for _, m := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", m.LLMID, m.Name, m.InternalName, m.ProviderID, m.IsDefault)
					}
					tw.Flush()
				})
			})
		},
	}
}

func newLLMDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <llm-id>",
		Short: "Delete a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.DeleteLLM(ctx, args[0]); err != nil {
					return err
				}
				return flags.emit(cmd, map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted llm %s\n", args[0])
				})
			})
		},
	}
}

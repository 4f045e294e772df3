package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
	"github.com/mesh-intelligence/folio/pkg/types"
)

func newOrgCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create an organization",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
					org, err := a.Store.CreateOrganization(ctx, args[0])
					if err != nil {
						return err
					}
					return flags.emit(cmd, org, func(w io.Writer) {
						fmt.Fprintf(w, "organization %s created as %s\n", org.Name, org.OrganizationID)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List organizations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
					list, err := a.Store.ListOrganizations(ctx)
					if err != nil {
						return err
					}
					return flags.emit(cmd, list, func(w io.Writer) {
						tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
						fmt.Fprintln(tw, "ID\tNAME")
						for _, o := range list {
							fmt.Fprintf(tw, "%s\t%s\n", o.OrganizationID, o.Name)
						}
						tw.Flush()
					})
				})
			},
		},
	)
	return cmd
}

func newDocumentCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Manage documents, their context and their outer dependencies",
	}
	cmd.AddCommand(
		newDocumentCreateCmd(flags),
		newDocumentGetCmd(flags),
		newDocumentListCmd(flags),
		newDocumentDeleteCmd(flags),
		newDocumentContextCmd(flags),
		newDocumentDependCmd(flags),
	)
	return cmd
}

func newDocumentCreateCmd(flags *rootFlags) *cobra.Command {
	var doc types.Document
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc.Name = args[0]
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.CreateDocument(ctx, &doc); err != nil {
					return err
				}
				return flags.emit(cmd, doc, func(w io.Writer) {
					fmt.Fprintf(w, "document %s created as %s\n", doc.Name, doc.DocumentID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&doc.OrganizationID, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&doc.Description, "description", "", "document description")
	cmd.Flags().StringVar(&doc.DocumentType, "type", "", "document type")
	return cmd
}

func newDocumentGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a document with its sections and dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				doc, err := a.Store.LoadDocumentGraph(ctx, args[0])
				if err != nil {
					return err
				}
				return flags.emit(cmd, doc, func(w io.Writer) {
					fmt.Fprintf(w, "document: %s\nname:     %s\n", doc.DocumentID, doc.Name)
					if doc.Description != "" {
						fmt.Fprintf(w, "about:    %s\n", doc.Description)
					}
					if len(doc.Sections) == 0 {
						return
					}
					names := make(map[string]string, len(doc.Sections))
					for _, s := range doc.Sections {
						names[s.SectionID] = s.Name
					}
					fmt.Fprintln(w)
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ORDER\tID\tSECTION\tDEPENDS ON")
					for _, s := range doc.Sections {
						deps := make([]string, len(s.DependsOn))
						for i, id := range s.DependsOn {
							deps[i] = names[id]
						}
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Order, s.SectionID, s.Name, strings.Join(deps, ", "))
					}
					tw.Flush()
				})
			})
		},
	}
}

func newDocumentListCmd(flags *rootFlags) *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents of an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Store.ListDocuments(ctx, orgID)
				if err != nil {
					return err
				}
				return flags.emit(cmd, list, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tTYPE")
					for _, d := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", d.DocumentID, d.Name, d.DocumentType)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id (required)")
	return cmd
}

func newDocumentDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document with its sections and executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.DeleteDocument(ctx, args[0]); err != nil {
					return err
				}
				return flags.emit(cmd, map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted document %s\n", args[0])
				})
			})
		},
	}
}

func newDocumentContextCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "context <document-id> <text>",
		Short: "Attach a context blob composed into every prompt of the document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				c, err := a.Store.AddDocumentContext(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return flags.emit(cmd, c, func(w io.Writer) {
					fmt.Fprintf(w, "context %s added to document %s\n", c.ContextID, c.DocumentID)
				})
			})
		},
	}
}

func newDocumentDependCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "depend <document-id> <depends-on-document-id>",
		Short: "Compose another document's content into this document's context",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.AddDocumentDependency(ctx, args[0], args[1]); err != nil {
					return err
				}
				dep := types.OuterDependency{DocumentID: args[0], DependsOnDocumentID: args[1]}
				return flags.emit(cmd, dep, func(w io.Writer) {
					fmt.Fprintf(w, "document %s depends on %s\n", args[0], args[1])
				})
			})
		},
	}
}

func newSectionCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "section",
		Short: "Manage document sections and their dependencies",
	}
	cmd.AddCommand(
		newSectionAddCmd(flags),
		newSectionDeleteCmd(flags),
		newSectionDependCmd(flags, true),
		newSectionDependCmd(flags, false),
	)
	return cmd
}

func newSectionAddCmd(flags *rootFlags) *cobra.Command {
	var sec types.Section
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a section to a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec.Name = args[0]
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.AddSection(ctx, &sec); err != nil {
					return err
				}
				return flags.emit(cmd, sec, func(w io.Writer) {
					fmt.Fprintf(w, "section %s added as %s\n", sec.Name, sec.SectionID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&sec.DocumentID, "document", "", "document id (required)")
	cmd.Flags().IntVar(&sec.Order, "order", 0, "position in the document, starting at 1 (required)")
	cmd.Flags().StringVar(&sec.Prompt, "prompt", "", "instructions for generating this section")
	return cmd
}

func newSectionDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete a section; its past results are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.DeleteSection(ctx, args[0]); err != nil {
					return err
				}
				return flags.emit(cmd, map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted section %s\n", args[0])
				})
			})
		},
	}
}

func newSectionDependCmd(flags *rootFlags, add bool) *cobra.Command {
	use, short := "depend", "Make a section build on another section's output"
	if !add {
		use, short = "undepend", "Remove a dependency between two sections"
	}
	return &cobra.Command{
		Use:   use + " <section-id> <depends-on-section-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var err error
				if add {
					err = a.Store.AddSectionDependency(ctx, args[0], args[1])
				} else {
					err = a.Store.RemoveSectionDependency(ctx, args[0], args[1])
				}
				if err != nil {
					return err
				}
				dep := types.InnerDependency{SectionID: args[0], DependsOnSectionID: args[1]}
				return flags.emit(cmd, dep, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s -> %s\n", use, args[0], args[1])
				})
			})
		},
	}
}

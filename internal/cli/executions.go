package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
	"github.com/mesh-intelligence/folio/internal/execution"
	"github.com/mesh-intelligence/folio/pkg/types"
)

func newExecutionCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execution",
		Aliases: []string{"exec"},
		Short:   "Create, review and approve executions",
	}
	cmd.AddCommand(
		newExecutionCreateCmd(flags),
		newExecutionGetCmd(flags),
		newExecutionListCmd(flags),
		newExecutionApproveCmd(flags),
		newExecutionDisapproveCmd(flags),
		newExecutionContentCmd(flags),
		newExecutionEditCmd(flags),
		newExecutionLockCmd(flags, true),
		newExecutionLockCmd(flags, false),
	)
	return cmd
}

func printExecution(w io.Writer, e *types.Execution) {
	fmt.Fprintf(w, "execution: %s\nname:      %s\ndocument:  %s\nstatus:    %s\n", e.ExecutionID, e.Name, e.DocumentID, e.Status)
	if e.StatusMessage != "" {
		fmt.Fprintf(w, "message:   %s\n", e.StatusMessage)
	}
}

func newExecutionCreateCmd(flags *rootFlags) *cobra.Command {
	var documentID, llmID, instructions string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a PENDING execution for a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Executions.Create(ctx, documentID, llmID, instructions)
				if err != nil {
					return err
				}
				return flags.emit(cmd, e, func(w io.Writer) { printExecution(w, e) })
			})
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "document id (required)")
	cmd.Flags().StringVar(&llmID, "llm", "", "model id")
	cmd.Flags().StringVar(&instructions, "instructions", "", "additional instructions")
	return cmd
}

func newExecutionGetCmd(flags *rootFlags) *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:   "get <execution-id>",
		Short: "Show an execution and its sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Executions.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if content {
					text := execution.Render(e.Sections)
					return flags.emit(cmd, map[string]string{"execution_id": e.ExecutionID, "content": text}, func(w io.Writer) {
						fmt.Fprintln(w, text)
					})
				}
				return flags.emit(cmd, e, func(w io.Writer) {
					printExecution(w, e)
					if len(e.Sections) == 0 {
						return
					}
					fmt.Fprintln(w)
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tORDER\tSECTION\tEDITED\tLOCKED\tCHARS")
					for _, s := range e.Sections {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%t\t%d\n",
							s.SectionExecutionID, s.Order, s.Name, s.CustomOutput != nil, s.IsLocked, len(s.Text()))
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "print the rendered section outputs instead")
	return cmd
}

func newExecutionListCmd(flags *rootFlags) *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the executions of a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Executions.List(ctx, documentID)
				if err != nil {
					return err
				}
				return flags.emit(cmd, list, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tUPDATED")
					for _, e := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ExecutionID, e.Name, e.Status, e.UpdatedAt.Format(timeLayout))
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "document id (required)")
	return cmd
}

func newExecutionApproveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <execution-id>",
		Short: "Approve a COMPLETED execution as the document's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Executions.Approve(ctx, args[0])
				if err != nil {
					return err
				}
				return flags.emit(cmd, e, func(w io.Writer) {
					fmt.Fprintf(w, "execution %s is %s\n", e.ExecutionID, e.Status)
				})
			})
		},
	}
}

func newExecutionDisapproveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "disapprove <execution-id>",
		Short: "Return an APPROVED execution to COMPLETED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Executions.Disapprove(ctx, args[0])
				if err != nil {
					return err
				}
				return flags.emit(cmd, e, func(w io.Writer) {
					fmt.Fprintf(w, "execution %s is %s\n", e.ExecutionID, e.Status)
				})
			})
		},
	}
}

func newExecutionContentCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "content <document-id>",
		Short: "Print the document's content from its approved or latest completed execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				text, err := a.Executions.Content(ctx, args[0])
				if err != nil {
					return err
				}
				return flags.emit(cmd, map[string]string{"document_id": args[0], "content": text}, func(w io.Writer) {
					fmt.Fprintln(w, text)
				})
			})
		},
	}
}

func newExecutionEditCmd(flags *rootFlags) *cobra.Command {
	var (
		text  string
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "edit <section-execution-id>",
		Short: "Replace a section's output with edited text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var custom *string
			switch {
			case reset:
			case cmd.Flags().Changed("text"):
				custom = &text
			default:
				return fmt.Errorf("one of --text or --clear is required: %w", types.ErrValidation)
			}
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				row, err := a.Executions.SetCustomOutput(ctx, args[0], custom)
				if err != nil {
					return err
				}
				return flags.emit(cmd, row, func(w io.Writer) {
					fmt.Fprintf(w, "section %s updated\n", row.Name)
				})
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "edited section text")
	cmd.Flags().BoolVar(&reset, "clear", false, "drop the edit and use the generated output")
	cmd.MarkFlagsMutuallyExclusive("text", "clear")
	return cmd
}

func newExecutionLockCmd(flags *rootFlags, locked bool) *cobra.Command {
	use, short := "lock", "Protect a section's edited output from changes"
	if !locked {
		use, short = "unlock", "Allow changes to a section's edited output"
	}
	return &cobra.Command{
		Use:   use + " <section-execution-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Executions.SetSectionLocked(ctx, args[0], locked); err != nil {
					return err
				}
				return flags.emit(cmd, map[string]any{"section_execution_id": args[0], "is_locked": locked}, func(w io.Writer) {
					fmt.Fprintf(w, "section execution %s locked=%t\n", args[0], locked)
				})
			})
		},
	}
}

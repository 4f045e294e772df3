package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
	"github.com/mesh-intelligence/folio/pkg/types"
)

func newEnqueueCmd(flags *rootFlags) *cobra.Command {
	var p types.GenerationPayload
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a generation run for an execution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				job, err := a.Enqueue(ctx, p)
				if err != nil {
					return err
				}
				return flags.emit(cmd, job, func(w io.Writer) {
					fmt.Fprintf(w, "queued job %s\n", job.JobID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&p.DocumentID, "document", "", "document id (required)")
	cmd.Flags().StringVar(&p.ExecutionID, "execution", "", "execution id (required)")
	cmd.Flags().StringVar(&p.LLMID, "llm", "", "model id (default: the execution's model, then the default model)")
	cmd.Flags().StringVar(&p.UserInstructions, "instructions", "", "additional instructions for this run")
	cmd.Flags().StringVar(&p.StartSectionID, "start-section", "", "resume from this section")
	cmd.Flags().BoolVar(&p.SingleSectionMode, "single", false, "generate only the start section")
	return cmd
}

func newJobCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and reset queued jobs",
	}
	cmd.AddCommand(newJobGetCmd(flags), newJobListCmd(flags), newJobResetCmd(flags))
	return cmd
}

func newJobGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				job, err := a.Store.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return flags.emit(cmd, job, func(w io.Writer) {
					fmt.Fprintf(w, "job:     %s\ntype:    %s\nstatus:  %s\n", job.JobID, job.JobType, job.Status)
					if job.ClaimedBy != nil {
						fmt.Fprintf(w, "worker:  %s\n", *job.ClaimedBy)
					}
					if job.Result != nil {
						fmt.Fprintf(w, "result:  %s\n", *job.Result)
					}
				})
			})
		},
	}
}

func newJobListCmd(flags *rootFlags) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := types.JobStatus(status)
			if status != "" && !st.Valid() {
				return fmt.Errorf("unknown job status %q: %w", status, types.ErrValidation)
			}
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				jobs, err := a.Store.ListJobs(ctx, st)
				if err != nil {
					return err
				}
				return flags.emit(cmd, jobs, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tCREATED")
					for _, j := range jobs {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.JobID, j.JobType, j.Status, j.CreatedAt.Format(timeLayout))
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (PENDING, RUNNING, COMPLETED, FAILED)")
	return cmd
}

func newJobResetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <job-id>",
		Short: "Return a failed or running job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.ResetJob(ctx, args[0]); err != nil {
					return err
				}
				job, err := a.Store.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return flags.emit(cmd, job, func(w io.Writer) {
					fmt.Fprintf(w, "job %s is %s\n", job.JobID, job.Status)
				})
			})
		},
	}
}

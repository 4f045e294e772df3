package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/folio/internal/app"
)

func newWorkerCmd(flags *rootFlags) *cobra.Command {
	var (
		workers int
		poll    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker pool until interrupted",
		Long: "Claim queued jobs and run them until SIGINT or SIGTERM. On shutdown the\n" +
			"pool lets in-flight jobs finish, then fails any job still marked RUNNING.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if cmd.Flags().Changed("workers") {
					a.Config.JobWorkerCount = workers
				}
				if cmd.Flags().Changed("poll-interval") {
					a.Config.JobPollInterval = poll
				}
				if err := a.Config.Validate(); err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				a.Logger.Info().
					Int("workers", a.Config.JobWorkerCount).
					Dur("poll_interval", a.Config.JobPollInterval).
					Strs("job_types", a.Registry.Types()).
					Msg("Worker pool starting")
				return a.Pool().Run(ctx)
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "number of workers (overrides job_worker_count)")
	cmd.Flags().DurationVar(&poll, "poll-interval", 0, "idle poll interval (overrides job_poll_interval)")
	return cmd
}

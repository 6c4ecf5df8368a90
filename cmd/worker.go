package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bloomdispatch/config"
	"bloomdispatch/cron"
	"bloomdispatch/database"
	"bloomdispatch/services/notification"
	"bloomdispatch/utils"

	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued notifications and run the scheduled timeout sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := bootstrap()
			defer a.close()
			utils.FirebaseInit()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			utils.StartHealthMonitor(ctx, utils.GetCacheClient(), database.MongoClient)

			schedule := config.AppConfig.SweepSchedule
			if noSchedule {
				schedule = ""
			}
			w := &cron.Worker{
				Sender:   &notification.FCMSender{Client: utils.FCMClient},
				Sweeper:  a.sweeper,
				Settings: a.settings,
				Logger:   a.logger,
			}
			return w.Run(ctx, schedule)
		},
	}

	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "only deliver notifications; leave the sweep to an external trigger")
	return cmd
}

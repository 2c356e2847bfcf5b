package cmd

import (
	"github.com/emrgen/notebook/internal/config"
	"github.com/emrgen/notebook/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port string
	var lockBackend string

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the notebook api",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flag("port").Changed {
				cfg.HTTPPort = port
			}
			if cmd.Flag("lock-backend").Changed {
				cfg.LockBackend = lockBackend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.SetupLogging()

			return server.Start(cfg)
		},
	}

	command.Flags().StringVarP(&port, "port", "p", "", "http port, overrides HTTP_PORT")
	command.Flags().StringVar(&lockBackend, "lock-backend", "", "memory or redis, overrides LOCK_BACKEND")

	return command
}

package cmd

import (
	"github.com/emrgen/notebook/internal/config"
	"github.com/emrgen/notebook/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg.SetupLogging()

			db, err := config.GetDb(cfg)
			if err != nil {
				return err
			}

			if err := model.Migrate(db); err != nil {
				return err
			}
			logrus.Infof("database migrated")

			return nil
		},
	}

	return command
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sawit-ai/go-grading/api"
	"github.com/sawit-ai/go-grading/datastore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the grading HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		pipeline, closer, err := buildPipeline(settings)
		if err != nil {
			return err
		}
		defer closer()

		store, err := datastore.Open(settings.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		server := api.New(pipeline, store)
		return server.Start(settings.Server.Port)
	},
}

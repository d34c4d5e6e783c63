package config

import (
	"os"

	"github.com/markusressel/cool2go/internal/configuration"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validates the current configuration",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// note: config file path parameter comes from the root command (-c)
		configPath, err := configuration.DetectAndReadConfigFile()
		if err != nil {
			ui.Error("%v", err)
			os.Exit(1)
		}
		ui.Info("Using configuration file at: %s", configPath)

		if err := configuration.LoadConfig(); err != nil {
			ui.Error("%v", err)
			os.Exit(1)
		}

		if err := configuration.Validate(configPath); err != nil {
			ui.Error("Validation failed: %v", err)
			os.Exit(1)
		}

		ui.Success("Config looks good! :)")
		return nil
	},
}

func init() {
	Command.AddCommand(validateCmd)
}

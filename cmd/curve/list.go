package curve

import (
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the curve(s) of all bound channels to console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}

		keys := util.SortedKeys(s.settings)
		if len(bindingKey) > 0 {
			if _, ok := s.settings[bindingKey]; !ok {
				ui.Warning("No binding found for %s", bindingKey)
				return nil
			}
			keys = []string{bindingKey}
		}

		for idx, key := range keys {
			if idx > 0 {
				ui.Printfln("")
			}
			if err := printBinding(key, s.settings[key]); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	Command.AddCommand(listCmd)
}

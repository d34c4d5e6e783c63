package curve

import (
	"fmt"
	"strconv"

	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/spf13/cobra"
)

// editFunc modifies the current curve of a target
type editFunc func(t *target, args []string) (curves.ProfileCurve, error)

func runEdit(edit editFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := requireBinding(); err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		t, err := s.target(bindingKey, sourceRef)
		if err != nil {
			return err
		}

		curve, err := edit(t, args)
		if err != nil {
			return err
		}
		if err := s.save(t, curve); err != nil {
			return err
		}

		ui.Success("Saved curve of %s: %s", t.key(), curve)
		return printBinding(t.key(), t.setting)
	}
}

var addCmd = &cobra.Command{
	Use:   "add <temp:duty>",
	Short: "Add a point to the curve of a channel",
	Long:  `Adds a point to the curve. The duty of the new point is clamped between its neighbours.`,
	Args:  cobra.ExactArgs(1),
	RunE: runEdit(func(t *target, args []string) (curves.ProfileCurve, error) {
		point, err := curves.ParsePoint(args[0])
		if err != nil {
			return curves.ProfileCurve{}, err
		}
		curve, err := t.curve()
		if err != nil {
			return curve, err
		}
		return t.editor.AddPoint(curve, point.Temp, point.Duty)
	}),
}

var moveCmd = &cobra.Command{
	Use:   "move <index> <temp:duty>",
	Short: "Move a point of the curve of a channel",
	Long:  `Moves a point of the curve. Neighbouring points are pushed along to keep the curve monotonic.`,
	Args:  cobra.ExactArgs(2),
	RunE: runEdit(func(t *target, args []string) (curves.ProfileCurve, error) {
		index, err := parseIndex(args[0])
		if err != nil {
			return curves.ProfileCurve{}, err
		}
		point, err := curves.ParsePoint(args[1])
		if err != nil {
			return curves.ProfileCurve{}, err
		}
		curve, err := t.curve()
		if err != nil {
			return curve, err
		}
		return t.editor.MovePoint(curve, index, point.Temp, point.Duty)
	}),
}

var removeCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove a point from the curve of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: runEdit(func(t *target, args []string) (curves.ProfileCurve, error) {
		index, err := parseIndex(args[0])
		if err != nil {
			return curves.ProfileCurve{}, err
		}
		curve, err := t.curve()
		if err != nil {
			return curve, err
		}
		return t.editor.RemovePoint(curve, index)
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the curve of a channel to evenly spaced points",
	Args:  cobra.NoArgs,
	RunE: runEdit(func(t *target, args []string) (curves.ProfileCurve, error) {
		return t.editor.Reset()
	}),
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Remove the saved setting of a channel, reverting to the configured binding",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBinding(); err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		t, err := s.target(bindingKey, sourceRef)
		if err != nil {
			return err
		}
		if err := s.persistence.DeleteBinding(t.deviceId, t.channel.Name); err != nil {
			return fmt.Errorf("unable to remove saved setting of %s: %w", t.key(), err)
		}
		ui.Success("Removed saved setting of %s", t.key())
		return nil
	},
}

func parseIndex(text string) (int, error) {
	index, err := strconv.Atoi(text)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid point index '%s'", text)
	}
	return index, nil
}

func init() {
	Command.AddCommand(addCmd)
	Command.AddCommand(moveCmd)
	Command.AddCommand(removeCmd)
	Command.AddCommand(resetCmd)
	Command.AddCommand(restoreCmd)
}

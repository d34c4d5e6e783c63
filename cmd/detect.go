package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/markusressel/cool2go/cmd/global"
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/hwmon"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect devices",
	Long:  `Detects all hwmon chips with their sensors and controllable channels and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		chips := hwmon.GetChips()
		if len(chips) <= 0 {
			ui.Warning("No hwmon devices detected")
			return
		}

		for idx, chip := range chips {
			if idx > 0 {
				ui.Printfln("")
			}
			ui.Printfln("> %s", chip.Name)
			ui.Printfln("  Platform: %s", chip.Platform)
			if len(chip.Type) > 0 {
				ui.Printfln("  Type: %s", chip.Type)
			}
			if len(chip.Modalias) > 0 {
				ui.Printfln("  Modalias: %s", chip.Modalias)
			}

			snapshot, err := chip.Poller().Poll(context.Background(), chip.Name)
			if err != nil {
				ui.Warning("Unable to read current values: %v", err)
			}

			tables := []table.Table{
				channelTable(chip, snapshot),
				sensorTable(chip, snapshot),
			}
			printTables(tables)
		}
	},
}

func channelTable(chip *hwmon.Chip, snapshot devices.StatusSnapshot) table.Table {
	var rows [][]string
	for _, name := range util.SortedKeys(chip.FanInputs) {
		rpmText := "N/A"
		dutyText := "N/A"
		if status, ok := snapshot.Channel(name); ok {
			if status.Rpm != nil {
				rpmText = strconv.Itoa(*status.Rpm)
			}
			if status.Duty != nil {
				dutyText = fmt.Sprintf("%.0f%%", *status.Duty)
			}
		}
		_, controllable := chip.PwmOutputs[name]
		rows = append(rows, []string{
			"", name, chip.Labels[name], rpmText, dutyText, fmt.Sprintf("%v", controllable),
		})
	}
	return table.Table{
		Headers: []string{"Channels", "Name", "Label", "RPM", "Duty", "Controllable"},
		Rows:    rows,
	}
}

func sensorTable(chip *hwmon.Chip, snapshot devices.StatusSnapshot) table.Table {
	var rows [][]string
	for _, name := range util.SortedKeys(chip.TempInputs) {
		valueText := "N/A"
		if temp, ok := snapshot.Temp(name); ok {
			valueText = fmt.Sprintf("%.1f", temp)
		}
		_, file := filepath.Split(chip.TempInputs[name])
		labelAndFile := fmt.Sprintf("%s (%s)", chip.Labels[name], file)
		rows = append(rows, []string{
			"", name, labelAndFile, valueText,
		})
	}
	return table.Table{
		Headers: []string{"Sensors ", "Name", "Label", "Value"},
		Rows:    rows,
	}
}

func printTables(tables []table.Table) {
	for idx, tab := range tables {
		if tab.Rows == nil {
			continue
		}
		var buf bytes.Buffer
		if err := tab.WriteTable(&buf, global.TableConfig()); err != nil {
			ui.Fatal("Error printing table: %v", err)
		}
		tableString := buf.String()
		if idx < (len(tables) - 1) {
			ui.Printf(tableString)
		} else {
			ui.Printfln(tableString)
		}
	}
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

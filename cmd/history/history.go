package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/cool2go/cmd/global"
	"github.com/markusressel/cool2go/internal"
	"github.com/markusressel/cool2go/internal/configuration"
	"github.com/markusressel/cool2go/internal/devices"
	statushistory "github.com/markusressel/cool2go/internal/history"
	"github.com/markusressel/cool2go/internal/hwmon"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/markusressel/cool2go/internal/util"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var (
	deviceId   string
	duration   time.Duration
	exportPath string
)

var Command = &cobra.Command{
	Use:   "history",
	Short: "Record the status of all devices for a while and print it",
	Long: `Polls all configured devices for the given duration and prints
the recorded temperatures of each device as a plot. Press Ctrl+C to stop early.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configuration.ReadConfigFile()
		config := configuration.CurrentConfig

		objects, err := internal.InitializeObjects(config, hwmon.GetChips())
		if err != nil {
			return err
		}
		if len(deviceId) > 0 {
			if _, ok := objects.Devices.Get(deviceId); !ok {
				return fmt.Errorf("no device with id found: %s, options: %s", deviceId, objects.Devices.Ids())
			}
		}

		ui.Info("Recording status for %s...", duration)
		record(objects, config.PollingRate, duration)

		ids := objects.History.DeviceIds()
		if len(deviceId) > 0 {
			ids = []string{deviceId}
		}
		// align all series so their plots share the same time axis
		objects.History.ReconcileLengths(ids, statushistory.ReconcilePad)

		for idx, id := range ids {
			if idx > 0 {
				ui.Printfln("")
			}
			printDevice(objects.History, id)
		}

		if len(exportPath) > 0 {
			data, err := json.MarshalIndent(exportHistory(objects.History, ids), "", "  ")
			if err != nil {
				return err
			}
			if err := util.WriteFileAtomic(exportPath, data); err != nil {
				return fmt.Errorf("unable to export history: %w", err)
			}
			ui.Success("Exported history to %s", exportPath)
		}
		return nil
	},
}

func init() {
	Command.Flags().StringVarP(&deviceId, "device", "d", "", "Only print the history of the device with this id")
	Command.Flags().DurationVarP(&duration, "duration", "t", 10*time.Second, "How long to record")
	Command.Flags().StringVarP(&exportPath, "export", "e", "", "Write the recorded history as JSON to this file")
}

// record runs the monitors of all devices until the duration elapsed or the user interrupts
func record(objects *internal.Objects, pollingRate time.Duration, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var g run.Group
	for _, monitor := range objects.Monitors(pollingRate) {
		m := monitor
		g.Add(func() error {
			return m.Run(ctx)
		}, func(err error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt))

	err := g.Run()
	var signalErr run.SignalError
	if errors.As(err, &signalErr) {
		ui.Info("Recording stopped")
	}
}

func printDevice(store *statushistory.Store, id string) {
	ui.Printfln("> %s", id)

	latest, ok := store.Latest(id)
	if !ok {
		ui.Warning("No status recorded")
		return
	}

	var buf bytes.Buffer
	if err := statusTable(latest).WriteTable(&buf, global.TableConfig()); err != nil {
		ui.Fatal("Error printing table: %v", err)
	}
	ui.Printfln(buf.String())

	if gaps := store.Gaps(id); len(gaps) > 0 {
		ui.Warning("%d gap(s) in the recorded history", len(gaps))
	}

	series := temperatureSeries(store, id, latest)
	if len(series) <= 0 {
		return
	}
	caption := fmt.Sprintf("°C / sample (%d samples)", store.Len(id))
	graph := asciigraph.PlotMany(series, asciigraph.Height(15), asciigraph.Width(100), asciigraph.Caption(caption))
	ui.Printfln(graph)
}

func statusTable(snapshot devices.StatusSnapshot) table.Table {
	var rows [][]string
	for _, temp := range snapshot.Temps {
		rows = append(rows, []string{temp.Name, fmt.Sprintf("%.1f °C", temp.Temp)})
	}
	for _, channel := range snapshot.Channels {
		value := "N/A"
		if channel.Rpm != nil {
			value = strconv.Itoa(*channel.Rpm) + " rpm"
		}
		if channel.Duty != nil {
			value = fmt.Sprintf("%s, %.0f%%", value, *channel.Duty)
		}
		rows = append(rows, []string{channel.Name, value})
	}
	return table.Table{
		Headers: []string{"Name", "Value"},
		Rows:    rows,
	}
}

// temperatureSeries returns the recorded values of every sensor of the latest snapshot
func temperatureSeries(store *statushistory.Store, id string, latest devices.StatusSnapshot) [][]float64 {
	var result [][]float64
	for _, temp := range latest.Temps {
		values := store.Temps(id, temp.Name, 0)
		if len(values) > 0 {
			result = append(result, values)
		}
	}
	return result
}

type deviceHistory struct {
	Snapshots []devices.StatusSnapshot `json:"snapshots"`
	Gaps      []statushistory.Gap      `json:"gaps"`
}

func exportHistory(store *statushistory.Store, ids []string) map[string]deviceHistory {
	result := map[string]deviceHistory{}
	for _, id := range ids {
		result[id] = deviceHistory{
			Snapshots: store.Window(id, time.Time{}),
			Gaps:      store.Gaps(id),
		}
	}
	return result
}

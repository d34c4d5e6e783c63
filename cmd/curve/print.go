package curve

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/cool2go/cmd/global"
	"github.com/markusressel/cool2go/internal/curves"
	"github.com/markusressel/cool2go/internal/persistence"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/tomlazar/table"
)

func printBinding(key string, setting persistence.BindingSetting) error {
	source := "-"
	if setting.Source != nil {
		source = persistence.BindingKey(setting.Source.DeviceId, setting.Source.SensorName)
	}

	tab := table.Table{
		Headers: []string{"Binding", "Mode", "Source", "Points"},
		Rows: [][]string{
			{key, setting.Mode, source, strconv.Itoa(len(setting.Points))},
		},
	}
	if err := printTable(tab); err != nil {
		return err
	}
	if len(setting.Points) <= 0 {
		return nil
	}

	curve := curves.NewProfileCurve(setting.Points...)
	if err := printTable(pointTable(curve)); err != nil {
		return err
	}

	values, err := interpolatedDuties(curve)
	if err != nil {
		ui.Warning("Unable to plot curve of %s: %v", key, err)
		return nil
	}
	caption := fmt.Sprintf("Duty %% / °C (%d°C - %d°C)", curve.First().Temp, curve.Last().Temp)
	graph := asciigraph.Plot(values, asciigraph.Height(15), asciigraph.Width(100), asciigraph.Caption(caption))
	ui.Printfln(graph)
	return nil
}

func pointTable(curve curves.ProfileCurve) table.Table {
	rows := make([][]string, 0, curve.Len())
	for idx, point := range curve.Points {
		rows = append(rows, []string{
			strconv.Itoa(idx), strconv.Itoa(point.Temp), strconv.Itoa(point.Duty),
		})
	}
	return table.Table{
		Headers: []string{"Index", "Temp °C", "Duty %"},
		Rows:    rows,
	}
}

// interpolatedDuties returns the duty of the curve for every whole degree between its first and last point
func interpolatedDuties(curve curves.ProfileCurve) ([]float64, error) {
	if err := curve.Validate(); err != nil {
		return nil, err
	}
	start := curve.First().Temp
	stop := curve.Last().Temp
	values := make([]float64, 0, stop-start+1)
	for temp := start; temp <= stop; temp++ {
		duty, err := curve.Interpolate(float64(temp))
		if err != nil {
			return nil, err
		}
		values = append(values, float64(duty))
	}
	return values, nil
}

func printTable(tab table.Table) error {
	var buf bytes.Buffer
	if err := tab.WriteTable(&buf, global.TableConfig()); err != nil {
		return fmt.Errorf("error printing table: %w", err)
	}
	ui.Printfln(buf.String())
	return nil
}

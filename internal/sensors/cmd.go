package sensors

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/util"
)

const DefaultCmdTimeout = 2 * time.Second

// CmdPoller runs an executable that prints a single temperature in °C
type CmdPoller struct {
	Exec       string
	Args       []string
	SensorName string
	Timeout    time.Duration

	execute func(ctx context.Context, executable string, args []string, timeout time.Duration) (string, error)
	now     func() time.Time
}

func NewCmdPoller(exec string, args []string, sensorName string) *CmdPoller {
	return &CmdPoller{
		Exec:       exec,
		Args:       args,
		SensorName: sensorName,
		Timeout:    DefaultCmdTimeout,
		execute:    util.SafeCmdExecution,
		now:        time.Now,
	}
}

func (p *CmdPoller) Poll(ctx context.Context, deviceId string) (devices.StatusSnapshot, error) {
	result, err := p.execute(ctx, p.Exec, p.Args, p.Timeout)
	if err != nil {
		return devices.StatusSnapshot{}, fmt.Errorf("device %s: %w", deviceId, err)
	}

	temp, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return devices.StatusSnapshot{}, fmt.Errorf("device %s: unable to parse output of %s: %w", deviceId, p.Exec, err)
	}

	return devices.StatusSnapshot{
		Timestamp: p.now(),
		Temps:     []devices.TempStatus{{Name: p.SensorName, Temp: temp}},
	}, nil
}

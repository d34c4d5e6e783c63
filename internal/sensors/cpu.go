package sensors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	gopsutil "github.com/shirou/gopsutil/v4/sensors"
)

// DefaultCpuSensorPrefixes match the sensor keys of common CPU temperature drivers
var DefaultCpuSensorPrefixes = []string{"coretemp", "k10temp", "zenpower", "cpu_thermal"}

// CpuPoller reads CPU temperatures through gopsutil
type CpuPoller struct {
	// SensorPrefixes select the gopsutil sensor keys to report
	SensorPrefixes []string

	readTemperatures func(ctx context.Context) ([]gopsutil.TemperatureStat, error)
	now              func() time.Time
}

func NewCpuPoller(sensorPrefixes []string) *CpuPoller {
	if len(sensorPrefixes) <= 0 {
		sensorPrefixes = DefaultCpuSensorPrefixes
	}
	return &CpuPoller{
		SensorPrefixes:   sensorPrefixes,
		readTemperatures: gopsutil.TemperaturesWithContext,
		now:              time.Now,
	}
}

func (p *CpuPoller) Poll(ctx context.Context, deviceId string) (devices.StatusSnapshot, error) {
	stats, err := p.readTemperatures(ctx)
	// gopsutil reports partial results together with warnings
	if err != nil && len(stats) <= 0 {
		return devices.StatusSnapshot{}, fmt.Errorf("device %s: unable to read cpu temperatures: %w", deviceId, err)
	}

	snapshot := devices.StatusSnapshot{Timestamp: p.now()}
	for _, stat := range stats {
		if !p.matches(stat.SensorKey) {
			continue
		}
		snapshot.Temps = append(snapshot.Temps, devices.TempStatus{Name: stat.SensorKey, Temp: stat.Temperature})
	}
	if len(snapshot.Temps) <= 0 {
		return devices.StatusSnapshot{}, fmt.Errorf("device %s: %w: no sensor matches %v", deviceId, ErrNoReading, p.SensorPrefixes)
	}
	return snapshot, nil
}

func (p *CpuPoller) matches(sensorKey string) bool {
	for _, prefix := range p.SensorPrefixes {
		if strings.HasPrefix(sensorKey, prefix) {
			return true
		}
	}
	return false
}

package sensors

import (
	"context"
	"time"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/ui"
)

// Ingester stores polled snapshots
type Ingester interface {
	IngestBatch(ctx context.Context, deviceId string, snapshots []devices.StatusSnapshot) error
}

// Monitor polls a single device and feeds its status into the history
type Monitor struct {
	deviceId    string
	poller      TempPoller
	ingester    Ingester
	pollingRate time.Duration
}

func NewMonitor(deviceId string, poller TempPoller, ingester Ingester, pollingRate time.Duration) *Monitor {
	return &Monitor{
		deviceId:    deviceId,
		poller:      poller,
		ingester:    ingester,
		pollingRate: pollingRate,
	}
}

func (m *Monitor) DeviceId() string {
	return m.deviceId
}

func (m *Monitor) Run(ctx context.Context) error {
	ui.Debug("Starting status monitor for %s", m.deviceId)

	ticker := time.NewTicker(m.pollingRate)
	defer ticker.Stop()

	m.Update(ctx)
	for {
		select {
		case <-ctx.Done():
			ui.Debug("Stopping status monitor for %s", m.deviceId)
			return nil
		case <-ticker.C:
			m.Update(ctx)
		}
	}
}

// Update polls the device once. Errors are logged, the next poll is a retry.
func (m *Monitor) Update(ctx context.Context) {
	snapshot, err := m.poller.Poll(ctx, m.deviceId)
	if err != nil {
		ui.Warning("Error polling %s: %v", m.deviceId, err)
		return
	}
	if err := m.ingester.IngestBatch(ctx, m.deviceId, []devices.StatusSnapshot{snapshot}); err != nil {
		ui.Warning("Error storing status of %s: %v", m.deviceId, err)
	}
}

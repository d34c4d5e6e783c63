package statistics

import (
	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/history"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	historySubsystem = "history"
	sensorSubsystem  = "sensor"
	channelSubsystem = "channel"
)

type HistoryReader interface {
	DeviceIds() []string
	Len(deviceId string) int
	Gaps(deviceId string) []history.Gap
	Latest(deviceId string) (devices.StatusSnapshot, bool)
}

// HistoryCollector exposes the state of the status history together with
// the most recent reading of every device
type HistoryCollector struct {
	store HistoryReader

	length *prometheus.Desc
	gaps   *prometheus.Desc
	temp   *prometheus.Desc
	rpm    *prometheus.Desc
	duty   *prometheus.Desc
}

func NewHistoryCollector(store HistoryReader) *HistoryCollector {
	return &HistoryCollector{
		store: store,
		length: prometheus.NewDesc(prometheus.BuildFQName(namespace, historySubsystem, "length"),
			"Number of status snapshots retained for the device",
			[]string{"device"}, nil,
		),
		gaps: prometheus.NewDesc(prometheus.BuildFQName(namespace, historySubsystem, "gaps"),
			"Number of unfilled gaps in the retained history of the device",
			[]string{"device"}, nil,
		),
		temp: prometheus.NewDesc(prometheus.BuildFQName(namespace, sensorSubsystem, "temp"),
			"Current temperature (°C) of the sensor",
			[]string{"device", "sensor"}, nil,
		),
		rpm: prometheus.NewDesc(prometheus.BuildFQName(namespace, channelSubsystem, "rpm"),
			"Current RPM value of the channel",
			[]string{"device", "channel"}, nil,
		),
		duty: prometheus.NewDesc(prometheus.BuildFQName(namespace, channelSubsystem, "duty"),
			"Current duty (%) reported by the channel",
			[]string{"device", "channel"}, nil,
		),
	}
}

func (collector *HistoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.length
	ch <- collector.gaps
	ch <- collector.temp
	ch <- collector.rpm
	ch <- collector.duty
}

// Collect implements required collect function for all prometheus collectors
func (collector *HistoryCollector) Collect(ch chan<- prometheus.Metric) {
	for _, deviceId := range collector.store.DeviceIds() {
		ch <- prometheus.MustNewConstMetric(collector.length, prometheus.GaugeValue, float64(collector.store.Len(deviceId)), deviceId)
		ch <- prometheus.MustNewConstMetric(collector.gaps, prometheus.GaugeValue, float64(len(collector.store.Gaps(deviceId))), deviceId)

		latest, ok := collector.store.Latest(deviceId)
		if !ok {
			continue
		}
		for _, temp := range latest.Temps {
			ch <- prometheus.MustNewConstMetric(collector.temp, prometheus.GaugeValue, temp.Temp, deviceId, temp.Name)
		}
		for _, channel := range latest.Channels {
			if channel.Rpm != nil {
				ch <- prometheus.MustNewConstMetric(collector.rpm, prometheus.GaugeValue, float64(*channel.Rpm), deviceId, channel.Name)
			}
			if channel.Duty != nil {
				ch <- prometheus.MustNewConstMetric(collector.duty, prometheus.GaugeValue, *channel.Duty, deviceId, channel.Name)
			}
		}
	}
}

package statistics

import (
	"github.com/markusressel/cool2go/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

const schedulerSubsystem = "scheduler"

type BindingStatisticsProvider interface {
	Statistics() []controller.BindingStatistics
}

type SchedulerCollector struct {
	provider BindingStatisticsProvider

	targetDuty        *prometheus.Desc
	appliedDuty       *prometheus.Desc
	avgAppliedDuty    *prometheus.Desc
	ticksSinceApplied *prometheus.Desc
	writes            *prometheus.Desc
	failures          *prometheus.Desc
	skipped           *prometheus.Desc
}

func NewSchedulerCollector(provider BindingStatisticsProvider) *SchedulerCollector {
	labels := []string{"device", "channel", "mode"}
	return &SchedulerCollector{
		provider: provider,
		targetDuty: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "target_duty"),
			"Duty (%) most recently computed for the channel",
			labels, nil,
		),
		appliedDuty: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "applied_duty"),
			"Duty (%) most recently written to the channel",
			labels, nil,
		),
		avgAppliedDuty: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "applied_duty_avg"),
			"Average of the recently written duties of the channel",
			labels, nil,
		),
		ticksSinceApplied: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "ticks_since_applied"),
			"Number of evaluations since the last write that did not qualify for a write",
			labels, nil,
		),
		writes: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "writes_total"),
			"Counter for successful duty writes of the channel",
			labels, nil,
		),
		failures: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "failures_total"),
			"Counter for failed duty writes of the channel",
			labels, nil,
		),
		skipped: prometheus.NewDesc(prometheus.BuildFQName(namespace, schedulerSubsystem, "skipped_total"),
			"Counter for evaluations of the channel that did not result in a write",
			labels, nil,
		),
	}
}

func (collector *SchedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.targetDuty
	ch <- collector.appliedDuty
	ch <- collector.avgAppliedDuty
	ch <- collector.ticksSinceApplied
	ch <- collector.writes
	ch <- collector.failures
	ch <- collector.skipped
}

// Collect implements required collect function for all prometheus collectors
func (collector *SchedulerCollector) Collect(ch chan<- prometheus.Metric) {
	for _, stats := range collector.provider.Statistics() {
		labels := []string{stats.DeviceId, stats.Channel, stats.Mode.String()}
		if stats.TargetDuty != nil {
			ch <- prometheus.MustNewConstMetric(collector.targetDuty, prometheus.GaugeValue, float64(*stats.TargetDuty), labels...)
		}
		if stats.AppliedDuty != nil {
			ch <- prometheus.MustNewConstMetric(collector.appliedDuty, prometheus.GaugeValue, float64(*stats.AppliedDuty), labels...)
			ch <- prometheus.MustNewConstMetric(collector.avgAppliedDuty, prometheus.GaugeValue, stats.AvgAppliedDuty, labels...)
		}
		ch <- prometheus.MustNewConstMetric(collector.ticksSinceApplied, prometheus.GaugeValue, float64(stats.TicksSinceApplied), labels...)
		ch <- prometheus.MustNewConstMetric(collector.writes, prometheus.CounterValue, float64(stats.Writes), labels...)
		ch <- prometheus.MustNewConstMetric(collector.failures, prometheus.CounterValue, float64(stats.Failures), labels...)
		ch <- prometheus.MustNewConstMetric(collector.skipped, prometheus.CounterValue, float64(stats.Skipped), labels...)
	}
}

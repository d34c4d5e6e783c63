package controller

import "time"

const (
	DefaultInterval             = 1 * time.Second
	DefaultThreshold            = 2
	DefaultForceApplyTicks      = 4
	DefaultSmoothingWindow      = 20
	DefaultExponentialSmoothing = true
	DefaultWriteTimeout         = 2 * time.Second
	DefaultQueueSize            = 1
	DefaultResumeDelay          = 2 * time.Second
	DefaultStatisticsWindow     = 60
	DefaultNotifyAfterFailures  = 5
)

type Config struct {
	// Interval between two evaluations of all bindings
	Interval time.Duration
	// Threshold is the duty difference (%) that must be exceeded to issue a write
	Threshold int
	// ForceApplyTicks is the number of ticks after which any difference is written
	ForceApplyTicks int
	// SmoothingWindow is the number of samples averaged for volatile sources
	SmoothingWindow      int
	ExponentialSmoothing bool
	WriteTimeout         time.Duration
	QueueSize            int
	// ResumeDelay is the time to wait after a system resume before reapplying all bindings
	ResumeDelay time.Duration
	// StatisticsWindow is the number of applied duties kept per binding for statistics
	StatisticsWindow int
	// NotifyAfterFailures is the number of failed writes in a row after which the user is notified, 0 disables notifications
	NotifyAfterFailures int
}

func DefaultConfig() Config {
	return Config{
		Interval:             DefaultInterval,
		Threshold:            DefaultThreshold,
		ForceApplyTicks:      DefaultForceApplyTicks,
		SmoothingWindow:      DefaultSmoothingWindow,
		ExponentialSmoothing: DefaultExponentialSmoothing,
		WriteTimeout:         DefaultWriteTimeout,
		QueueSize:            DefaultQueueSize,
		ResumeDelay:          DefaultResumeDelay,
		StatisticsWindow:     DefaultStatisticsWindow,
		NotifyAfterFailures:  DefaultNotifyAfterFailures,
	}
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.Threshold < 0 {
		c.Threshold = 0
	}
	if c.ForceApplyTicks < 0 {
		c.ForceApplyTicks = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.ResumeDelay < 0 {
		c.ResumeDelay = 0
	}
	if c.StatisticsWindow <= 0 {
		c.StatisticsWindow = defaults.StatisticsWindow
	}
	if c.NotifyAfterFailures < 0 {
		c.NotifyAfterFailures = 0
	}
	return c
}

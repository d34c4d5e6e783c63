package configuration

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/markusressel/cool2go/internal/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Configuration struct {
	DbPath  string `json:"dbPath"`
	LogFile string `json:"logFile"`

	TickInterval   time.Duration `json:"tickInterval"`
	PollingRate    time.Duration `json:"pollingRate"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	WriteQueueSize int           `json:"writeQueueSize"`
	ResumeDelay    time.Duration `json:"resumeDelay"`

	// WatchSleep reapplies all bindings after the system resumes from suspend
	WatchSleep bool `json:"watchSleep"`
	// NotifyAfterFailures sends a desktop notification once writes to a channel failed this often in a row
	NotifyAfterFailures int `json:"notifyAfterFailures"`

	Hysteresis HysteresisConfig `json:"hysteresis"`
	Smoothing  SmoothingConfig  `json:"smoothing"`
	History    HistoryConfig    `json:"history"`
	Statistics StatisticsConfig `json:"statistics"`

	Devices  []DeviceConfig  `json:"devices"`
	Bindings []BindingConfig `json:"bindings"`
}

type HysteresisConfig struct {
	Threshold       int `json:"threshold"`
	ForceApplyTicks int `json:"forceApplyTicks"`
}

type SmoothingConfig struct {
	Window      int  `json:"window"`
	Exponential bool `json:"exponential"`
}

type HistoryConfig struct {
	MaxLength    int           `json:"maxLength"`
	GapTolerance time.Duration `json:"gapTolerance"`
}

type StatisticsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

var CurrentConfig Configuration

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	viper.SetConfigName("cool2go")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/cool2go/")
	}

	viper.AutomaticEnv() // read in environment variables that match

	setDefaultValues()
}

func setDefaultValues() {
	viper.SetDefault("dbPath", "/etc/cool2go/cool2go.db")
	viper.SetDefault("logFile", "")

	viper.SetDefault("tickInterval", 1*time.Second)
	viper.SetDefault("pollingRate", 1*time.Second)
	viper.SetDefault("writeTimeout", 2*time.Second)
	viper.SetDefault("writeQueueSize", 1)
	viper.SetDefault("resumeDelay", 2*time.Second)
	viper.SetDefault("watchSleep", true)
	viper.SetDefault("notifyAfterFailures", 5)

	viper.SetDefault("hysteresis.threshold", 2)
	viper.SetDefault("hysteresis.forceApplyTicks", 4)

	viper.SetDefault("smoothing.window", 20)
	viper.SetDefault("smoothing.exponential", true)

	viper.SetDefault("history.maxLength", 1860)
	viper.SetDefault("history.gapTolerance", 2*time.Second)

	viper.SetDefault("statistics.enabled", false)
	viper.SetDefault("statistics.port", 9000)

	viper.SetDefault("devices", []DeviceConfig{})
	viper.SetDefault("bindings", []BindingConfig{})
}

// DetectAndReadConfigFile reads the configuration file found by InitConfig,
// returning the path of the file that was used.
func DetectAndReadConfigFile() (string, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("no configuration file found: %w", err)
		}
		return "", fmt.Errorf("error reading config file: %w", err)
	}
	// this is only populated _after_ ReadInConfig()
	return viper.ConfigFileUsed(), nil
}

// ReadConfigFile reads, loads and validates the configuration, exiting on any error.
func ReadConfigFile() {
	path, err := DetectAndReadConfigFile()
	if err != nil {
		// config file is required, so we fail here
		ui.FatalWithoutStacktrace("%v", err)
	}
	ui.Info("Using configuration file at: %s", path)

	if err := LoadConfig(); err != nil {
		ui.FatalWithoutStacktrace("%v", err)
	}
	if err := Validate(path); err != nil {
		ui.ErrorAndNotify("Invalid configuration", "Config validation failed: %v", err)
		os.Exit(1)
	}
}

func LoadConfig() error {
	var config Configuration
	err := viper.Unmarshal(&config, viper.DecodeHook(decodeHook()))
	if err != nil {
		return fmt.Errorf("unable to decode into struct: %w", err)
	}
	CurrentConfig = config
	return nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		CurvePointHookFunc(),
		DefaultTrueBoolHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

package hwmon

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/markusressel/cool2go/internal/devices"
	"github.com/markusressel/cool2go/internal/hardware"
	"github.com/markusressel/cool2go/internal/sensors"
	"github.com/markusressel/cool2go/internal/util"
	"github.com/md14454/gosensors"
)

const (
	BusTypeIsa  = 1
	BusTypePci  = 2
	BusTypeAcpi = 5

	// drivers sometimes report bogus max values like 255°
	maxPlausibleTemp = 150
)

var (
	platformRegex = regexp.MustCompile(`.*/platform/[^/]+`)
	channelRegex  = regexp.MustCompile(`^[a-z]+(\d+)_input$`)
)

// Chip is a hwmon device detected by libsensors
type Chip struct {
	Name     string
	Type     string
	Modalias string
	Platform string
	Path     string

	// TempInputs maps sensor names (e.g. "temp1") to their input paths
	TempInputs map[string]string
	// FanInputs maps channel names (e.g. "fan1") to their rpm input paths
	FanInputs map[string]string
	// PwmOutputs maps channel names to their pwm output paths
	PwmOutputs map[string]string
	// Labels maps sensor and channel names to the label reported by the driver
	Labels map[string]string

	// TempMax is the highest max temperature reported by any sensor, -1 if unknown
	TempMax int
}

// GetChips returns all detected chips with at least one sensor or fan
func GetChips() []*Chip {
	gosensors.Init()
	defer gosensors.Cleanup()
	detected := gosensors.GetDetectedChips()

	var list []*Chip
	for _, chip := range detected {
		c := newChip(chip)
		if len(c.TempInputs) <= 0 && len(c.FanInputs) <= 0 {
			continue
		}
		list = append(list, c)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Path < list[j].Path
	})
	return list
}

// FindChip returns the chip matching the given platform or identifier
func FindChip(chips []*Chip, platform string) (*Chip, bool) {
	for _, chip := range chips {
		if chip.Platform == platform || chip.Name == platform {
			return chip, true
		}
	}
	return nil, false
}

func newChip(chip gosensors.Chip) *Chip {
	identifier := computeIdentifier(chip)
	platform := findPlatform(chip.Path)
	if len(platform) <= 0 {
		platform = identifier
	}

	c := &Chip{
		Name:       identifier,
		Type:       util.GetDeviceType(chip.Path),
		Modalias:   util.GetDeviceModalias(chip.Path),
		Platform:   platform,
		Path:       chip.Path,
		TempInputs: map[string]string{},
		FanInputs:  map[string]string{},
		PwmOutputs: map[string]string{},
		Labels:     map[string]string{},
		TempMax:    -1,
	}

	for _, feature := range chip.GetFeatures() {
		subfeatures := feature.GetSubFeatures()
		switch feature.Type {
		case gosensors.FeatureTypeTemp:
			input, ok := getSubFeature(subfeatures, gosensors.SubFeatureTypeTempInput)
			if !ok {
				continue
			}
			if maxFeature, ok := getSubFeature(subfeatures, gosensors.SubFeatureTypeTempMax); ok {
				c.TempMax = max(c.TempMax, min(int(maxFeature.GetValue()), maxPlausibleTemp))
			}
			c.addTemp(input.Name)
		case gosensors.FeatureTypeFan:
			input, ok := getSubFeature(subfeatures, gosensors.SubFeatureTypeFanInput)
			if !ok {
				continue
			}
			c.addFan(input.Name)
		}
	}
	return c
}

func (c *Chip) addTemp(inputName string) {
	name := strings.TrimSuffix(inputName, "_input")
	c.TempInputs[name] = filepath.Join(c.Path, inputName)
	c.Labels[name] = util.GetLabel(c.Path, inputName)
}

func (c *Chip) addFan(inputName string) {
	name := strings.TrimSuffix(inputName, "_input")
	c.FanInputs[name] = filepath.Join(c.Path, inputName)
	c.Labels[name] = util.GetLabel(c.Path, inputName)
	if output, ok := pwmOutputFor(c.Path, inputName); ok {
		c.PwmOutputs[name] = output
	}
}

// pwmOutputFor returns the pwmX file belonging to a fanX_input, if it exists
func pwmOutputFor(chipPath string, fanInput string) (string, bool) {
	match := channelRegex.FindStringSubmatch(fanInput)
	if match == nil {
		return "", false
	}
	output := filepath.Join(chipPath, "pwm"+match[1])
	if _, err := os.Stat(output); err != nil {
		return "", false
	}
	return output, true
}

// Device creates the device model of this chip. Only fans with a pwm output are controllable channels.
func (c *Chip) Device(index int) *devices.Device {
	device := devices.NewDevice(devices.KindHardwareMonitor, index, c.Name)
	if c.TempMax > devices.DefaultTempMin {
		device.TempMax = c.TempMax
	}
	for _, name := range util.SortedKeys(c.PwmOutputs) {
		device.AddChannel(devices.Channel{
			Name:         name,
			MinDuty:      devices.MinDutyValue,
			MaxDuty:      devices.MaxDutyValue,
			FixedEnabled: true,
			CurveEnabled: true,
		})
	}
	return device
}

func (c *Chip) Poller() *sensors.HwmonPoller {
	return sensors.NewHwmonPoller(c.TempInputs, c.FanInputs, c.PwmOutputs)
}

func (c *Chip) Channel() *hardware.HwmonChannel {
	return hardware.NewHwmonChannel(c.PwmOutputs)
}

func getSubFeature(subfeatures []gosensors.SubFeature, subFeatureType gosensors.SubFeatureType) (gosensors.SubFeature, bool) {
	for _, subfeature := range subfeatures {
		if subfeature.Type == subFeatureType {
			return subfeature, true
		}
	}
	return gosensors.SubFeature{}, false
}

func computeIdentifier(chip gosensors.Chip) (name string) {
	name = chip.Prefix

	devicePath := chip.Path
	if len(name) <= 0 {
		name = util.GetDeviceName(devicePath)
	}

	if len(name) <= 0 {
		_, name = filepath.Split(devicePath)
	}

	identifier := name
	switch chip.Bus.Type {
	case BusTypeIsa:
		identifier = fmt.Sprintf("%s-isa-%d%03x", identifier, chip.Bus.Nr, chip.Addr)
	case BusTypePci:
		identifier = fmt.Sprintf("%s-pci-%d%03x", identifier, chip.Bus.Nr, chip.Addr)
	case BusTypeAcpi:
		identifier = fmt.Sprintf("%s-acpi-%d", identifier, chip.Bus.Nr)
	}

	return identifier
}

func findPlatform(devicePath string) string {
	return platformRegex.FindString(devicePath)
}

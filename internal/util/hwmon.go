package util

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDeviceName read the name of a device
func GetDeviceName(devicePath string) string {
	return readTrimmed(filepath.Join(devicePath, "name"))
}

// GetLabel read the label of an in/output of a device
func GetLabel(devicePath string, input string) string {
	labelPath := strings.TrimSuffix(filepath.Join(devicePath, input), "input") + "label"

	label := readTrimmed(labelPath)
	if len(label) <= 0 {
		label = strings.TrimSuffix(input, "_input")
	}
	return label
}

// GetDeviceModalias read the modalias of a device
func GetDeviceModalias(devicePath string) string {
	return readTrimmed(filepath.Join(devicePath, "device", "modalias"))
}

// GetDeviceType read the type of a device
func GetDeviceType(devicePath string) string {
	return readTrimmed(filepath.Join(devicePath, "device", "type"))
}

func readTrimmed(path string) string {
	content, _ := os.ReadFile(path)
	return strings.TrimSpace(string(content))
}

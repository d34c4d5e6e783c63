package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// icon names of the freedesktop icon naming specification
const (
	IconDialogError = "dialog-error"
	IconDialogInfo  = "dialog-information"

	UrgencyLow      = "low"
	UrgencyCritical = "critical"
)

func NotifyInfo(title, text string) {
	NotifySend(UrgencyLow, title, text, IconDialogInfo)
}

func NotifyError(title, text string) {
	NotifySend(UrgencyCritical, title, text, IconDialogError)
}

// NotifySend shows a desktop notification in the graphical session of the user owning DISPLAY.
// The daemon runs as root, so notify-send is executed as that user with its session bus.
func NotifySend(urgency, title, text, icon string) {
	display, exists := os.LookupEnv("DISPLAY")
	if !exists {
		Debug("Not sending notification '%s', no DISPLAY set", title)
		return
	}

	user, userId, err := sessionUser(display)
	if err != nil {
		Warning("Cannot send notification: %v", err)
		return
	}

	cmd := exec.Command("sudo", "-u", user,
		"DISPLAY="+display,
		"DBUS_SESSION_BUS_ADDRESS=unix:path=/run/user/"+userId+"/bus",
		"notify-send",
		"-a", "cool2go",
		"-u", urgency,
		"-i", icon,
		title, text,
	)
	if err := cmd.Run(); err != nil {
		Error("Error sending notification: %v", err)
	}
}

// sessionUser returns the name and id of the user logged into the given display
func sessionUser(display string) (user string, userId string, err error) {
	output, err := exec.Command("who").Output()
	if err != nil {
		return "", "", fmt.Errorf("unable to list sessions: %w", err)
	}
	user, ok := findDisplayUser(string(output), display)
	if !ok {
		return "", "", fmt.Errorf("no user session found for display %s", display)
	}

	output, err = exec.Command("id", "-u", user).Output()
	userId = strings.TrimSpace(string(output))
	if err != nil || len(userId) <= 0 {
		return "", "", fmt.Errorf("unable to detect id of user %s: %v", user, err)
	}
	return user, userId, nil
}

// findDisplayUser parses the output of 'who' for the session attached to display
func findDisplayUser(whoOutput string, display string) (string, bool) {
	for _, line := range strings.Split(whoOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) <= 0 || !strings.Contains(line, "("+display+")") {
			continue
		}
		return fields[0], true
	}
	return "", false
}

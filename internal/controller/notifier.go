package controller

import (
	"github.com/markusressel/cool2go/internal/ui"
)

// Notifier informs the user about channels whose writes keep failing
type Notifier interface {
	WritesFailing(key string, failures int, err error)
	WritesRecovered(key string, failures int)
}

// desktopNotifier logs and sends desktop notifications via notify-send
type desktopNotifier struct{}

func (desktopNotifier) WritesFailing(key string, failures int, err error) {
	ui.ErrorAndNotify("Cooling channel failing", "Applying duties to %s failed %d times in a row: %v", key, failures, err)
}

func (desktopNotifier) WritesRecovered(key string, failures int) {
	ui.InfoAndNotify("Cooling channel recovered", "Applying duties to %s works again after %d failed writes", key, failures)
}

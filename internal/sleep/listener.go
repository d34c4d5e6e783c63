package sleep

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/markusressel/cool2go/internal/ui"
)

const (
	logindPath      = "/org/freedesktop/login1"
	logindInterface = "org.freedesktop.login1.Manager"
	prepareForSleep = "PrepareForSleep"
)

// Target is notified before the system goes to sleep and after it woke up again
type Target interface {
	Suspend()
	Resume()
}

// Listener forwards the logind PrepareForSleep signal to a Target
type Listener struct {
	target Target
}

func NewListener(target Target) *Listener {
	return &Listener{target: target}
}

// Run blocks until the context is cancelled
func (l *Listener) Run(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("unable to connect to system bus: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(prepareForSleep),
	)
	if err != nil {
		return fmt.Errorf("unable to subscribe to %s: %w", prepareForSleep, err)
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	ui.Debug("Listening for %s signals", prepareForSleep)
	for {
		select {
		case <-ctx.Done():
			return nil
		case signal, ok := <-signals:
			if !ok {
				return nil
			}
			l.handle(signal)
		}
	}
}

func (l *Listener) handle(signal *dbus.Signal) {
	if signal == nil || signal.Name != logindInterface+"."+prepareForSleep {
		return
	}
	if len(signal.Body) != 1 {
		ui.Warning("Ignoring %s signal with unexpected body: %v", prepareForSleep, signal.Body)
		return
	}
	sleeping, ok := signal.Body[0].(bool)
	if !ok {
		ui.Warning("Ignoring %s signal with unexpected body: %v", prepareForSleep, signal.Body)
		return
	}

	if sleeping {
		ui.Info("System is going to sleep")
		l.target.Suspend()
	} else {
		ui.Info("System resumed from sleep")
		l.target.Resume()
	}
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/markusressel/cool2go/internal/configuration"
	"github.com/markusressel/cool2go/internal/controller"
	"github.com/markusressel/cool2go/internal/hwmon"
	"github.com/markusressel/cool2go/internal/persistence"
	"github.com/markusressel/cool2go/internal/sleep"
	"github.com/markusressel/cool2go/internal/statistics"
	"github.com/markusressel/cool2go/internal/ui"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RunDaemon() {
	if getProcessOwner() != "root" {
		ui.Fatal("Cooling control requires root permissions to be able to modify duty cycles, please run cool2go as root")
	}

	config := configuration.CurrentConfig

	pers := persistence.NewPersistence(config.DbPath)
	if err := pers.Init(); err != nil {
		ui.Fatal("Unable to initialize persistence at %s: %v", config.DbPath, err)
	}

	objects, err := InitializeObjects(config, hwmon.GetChips())
	if err != nil {
		ui.ErrorAndNotify("Startup failed", "%v", err)
		os.Exit(1)
	}

	scheduler := controller.NewScheduler(SchedulerConfig(config), objects.Devices, objects.History, objects.Router)

	persisted, err := pers.LoadBindings()
	if err != nil {
		ui.Warning("Unable to load persisted bindings: %v", err)
	}
	settings := MergeBindingSettings(config.Bindings, persisted)
	if ApplyBindings(scheduler, objects.Devices, settings) == 0 {
		ui.Fatal("No valid bindings, exiting.")
	}

	statistics.Register(statistics.NewSchedulerCollector(scheduler))
	statistics.Register(statistics.NewHistoryCollector(objects.History))

	ctx, cancel := context.WithCancel(context.Background())

	var g run.Group
	{
		if config.Statistics.Enabled {
			// === Prometheus Exporter
			port := config.Statistics.Port
			if port <= 0 || port >= 65535 {
				port = 9000
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

			g.Add(func() error {
				ui.Info("Serving statistics on %s/metrics", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					ui.Error("Cannot start prometheus metrics endpoint (%s)", err.Error())
					return err
				}
				return nil
			}, func(err error) {
				ui.Info("Stopping statistics server...")
				timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer timeoutCancel()
				if err := server.Shutdown(timeoutCtx); err != nil {
					ui.Warning("Error stopping statistics server: %v", err)
				}
			})
		}
	}
	{
		// === status monitoring
		for _, monitor := range objects.Monitors(config.PollingRate) {
			m := monitor
			g.Add(func() error {
				err := m.Run(ctx)
				ui.Info("Status monitor for device %s stopped.", m.DeviceId())
				return err
			}, func(err error) {
				cancel()
			})
		}
	}
	{
		// === duty scheduler
		g.Add(func() error {
			ui.Info("Starting duty scheduler with %d bindings", len(scheduler.Bindings()))
			err := scheduler.Run(ctx)
			ui.Info("Duty scheduler stopped.")
			return err
		}, func(err error) {
			if err != nil {
				ui.Warning("Something went wrong: %v", err)
			}
			cancel()
		})
	}
	{
		if config.WatchSleep {
			// === suspend/resume
			listener := sleep.NewListener(scheduler)
			g.Add(func() error {
				if err := listener.Run(ctx); err != nil {
					// without a system bus the daemon keeps running, bindings are simply not reapplied on resume
					ui.Warning("Unable to watch for system sleep: %v", err)
				}
				<-ctx.Done()
				return nil
			}, func(err error) {
				cancel()
			})
		}
	}
	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case <-sig:
				ui.Info("Received SIGTERM signal, exiting...")
			case <-ctx.Done():
			}
			return nil
		}, func(err error) {
			signal.Stop(sig)
			cancel()
		})
	}

	if err := g.Run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	} else {
		ui.Info("Done.")
		os.Exit(0)
	}
}

func getProcessOwner() string {
	stdout, err := exec.Command("ps", "-o", "user=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		ui.Fatal("Error checking process owner: %v", err)
	}
	return strings.TrimSpace(string(stdout))
}

package app

import (
	"context"

	"p2pmessage/pkg/state/shutdown"
)

// Shutdown stops accepting requests, stops background jobs, closes the
// signal hub and finally the log.
func (a *App) Shutdown(ctx context.Context) error {
	a.setState("shutting_down")
	err := shutdown.Run(ctx,
		shutdown.Step{Name: "http", Fn: func(context.Context) error {
			if a.srvFast == nil {
				return nil
			}
			return a.srvFast.Shutdown()
		}},
		shutdown.Step{Name: "events", Fn: func(ctx context.Context) error {
			if a.events == nil {
				return nil
			}
			return a.events.Shutdown(ctx)
		}},
		shutdown.Step{Name: "maintenance", Fn: func(context.Context) error {
			if a.maintCancel != nil {
				a.maintCancel()
			}
			return nil
		}},
		shutdown.Step{Name: "sensor", Fn: func(context.Context) error {
			a.sensor.Stop()
			return nil
		}},
		shutdown.Step{Name: "api", Fn: func(context.Context) error {
			a.api.Shutdown()
			return nil
		}},
		shutdown.Step{Name: "telemetry", Fn: func(context.Context) error {
			a.tel.Close()
			return nil
		}},
		shutdown.Step{Name: "signals", Fn: func(context.Context) error {
			a.hub.Close()
			return nil
		}},
		shutdown.Step{Name: "log", Fn: func(context.Context) error {
			return a.log.Close()
		}},
	)
	if err == nil {
		a.setState("stopped")
	}
	return err
}

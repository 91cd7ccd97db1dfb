package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/hub"
	"github.com/kbukum/modelkit/logger"
	"github.com/kbukum/modelkit/observability"
	"github.com/kbukum/modelkit/version"
)

// app holds what every command shares once the configuration is loaded.
type app struct {
	configFile string

	cfg      *AppConfig
	metrics  *observability.Metrics
	placer   *device.Placer
	hub      *hub.Hub
	shutdown func(context.Context) error
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logger.Init(cfg.Logging)

	ctx := cmd.Context()
	a.shutdown, err = observability.Setup(ctx, cfg.Observability, version.GetVersionInfo().Version)
	if err != nil {
		return err
	}
	a.metrics, err = observability.NewMetrics(observability.Meter("modelkit"))
	if err != nil {
		return err
	}
	a.placer = device.NewPlacerFromConfig(cfg.Device, device.WithFallbackHook(func(requested, _ device.Binding, _ string) {
		a.metrics.RecordFallback(ctx, requested.String())
	}))
	a.hub, err = hub.New(cfg.Hub, hub.WithMetrics(a.metrics))
	return err
}

// close flushes and stops the telemetry providers. It is safe to call more
// than once.
func (a *app) close(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	shutdown := a.shutdown
	a.shutdown = nil
	return shutdown(ctx)
}

// execute runs the command tree and shuts the app down afterwards, also when
// the command failed.
func execute(ctx context.Context, a *app, root *cobra.Command) (err error) {
	defer func() {
		err = stderrors.Join(err, a.close(context.WithoutCancel(ctx)))
	}()
	return root.ExecuteContext(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"context"
	"fmt"
	"io"

	integrations "github.com/anishxyz/integrations"
	"github.com/anishxyz/integrations/adapters/gologger"
	promadapter "github.com/anishxyz/integrations/adapters/prometheus"
	"github.com/anishxyz/integrations/core"
	"github.com/spf13/cobra"
)

// runtime is one manager wired to the configured backend.
type runtime struct {
	cfg     Config
	manager *core.Manager
	facade  *integrations.Facade
	metrics *promadapter.Recorder
	backend *backend
}

func newRuntime(ctx context.Context, cfg Config, logOut io.Writer, extra ...core.Option) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	back, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	metrics, err := promadapter.NewRecorder(nil)
	if err != nil {
		_ = back.Close()
		return nil, fmt.Errorf("cli: metrics: %w", err)
	}

	logger := newLogger(logOut, cfg.LogLevel)
	opts := gologger.ManagerOptions(cfg.ServiceName, logger, logger)
	opts = append(opts,
		core.WithCredentialStore(back.store),
		core.WithRefreshLocker(back.locker),
		core.WithMetricsRecorder(metrics),
	)
	opts = append(opts, extra...)

	manager, err := integrations.New(cfg.ManagerConfig(), opts...)
	if err != nil {
		_ = back.Close()
		return nil, err
	}
	facade, err := integrations.NewFacade(manager)
	if err != nil {
		_ = back.Close()
		return nil, err
	}
	return &runtime{
		cfg:     cfg,
		manager: manager,
		facade:  facade,
		metrics: metrics,
		backend: back,
	}, nil
}

func (r *runtime) Close() error {
	if r == nil {
		return nil
	}
	return r.backend.Close()
}

// runtimeOptions are appended to every runtime the commands open.
var runtimeOptions []core.Option

func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &cfg)
	return newRuntime(cmd.Context(), cfg, cmd.ErrOrStderr(), runtimeOptions...)
}

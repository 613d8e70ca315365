package worker

import (
	"context"
	"sync"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// worker represents a background worker that can be started and stopped.
type worker interface {
	Start()
	Stop()
}

// runnable is a type whose Run blocks until ctx is cancelled or a fatal error occurs.
type runnable interface {
	Run(ctx context.Context) error
}

// Options contains configuration for a worker.
type Options struct {
	WaitReady       bool
	ShutdownOnError bool
}

// Option is a functional option for configuring a worker.
type Option func(*Options)

// WithReady makes the worker wait for all components to be ready before starting.
func WithReady() Option {
	return func(o *Options) {
		o.WaitReady = true
	}
}

// WithShutdown makes the worker trigger application shutdown on fatal error.
func WithShutdown() Option {
	return func(o *Options) {
		o.ShutdownOnError = true
	}
}

type baseWorker struct {
	name       string
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	log        *zap.Logger
	runFunc    func(ctx context.Context) error
	shutdowner fx.Shutdowner
	readiness  health.ReadinessWaiter
	options    Options
}

func newBaseWorker(name string, log *zap.Logger, runFunc func(ctx context.Context) error, shutdowner fx.Shutdowner, readiness health.ReadinessWaiter, options Options) *baseWorker {
	return &baseWorker{
		name:       name,
		log:        log.With(zap.String("worker", name)),
		runFunc:    runFunc,
		shutdowner: shutdowner,
		readiness:  readiness,
		options:    options,
	}
}

// Start runs the worker function in a goroutine.
func (w *baseWorker) Start() {
	w.log.Info("starting " + w.name)
	ctx, cancel := context.WithCancel(context.Background())
	w.cancelFunc = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

func (w *baseWorker) run(ctx context.Context) {
	if w.options.WaitReady {
		w.log.Info("waiting for components readiness")
		if err := w.readiness.WaitReady(ctx); err != nil {
			w.log.Info(w.name + " stopped (cancelled while waiting for readiness)")
			return
		}
		w.log.Info("components readiness achieved")
	}

	err := w.runFunc(ctx)
	if err == nil || ctx.Err() != nil {
		w.log.Info(w.name + " stopped")
		return
	}

	if w.options.ShutdownOnError {
		w.log.Error(w.name+" fatal error, initiating shutdown", zap.Error(err))
		if shutdownErr := w.shutdowner.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
			w.log.Error("failed to initiate shutdown", zap.Error(shutdownErr))
		}
	} else {
		w.log.Error(w.name+" stopped with error", zap.Error(err))
	}
}

// Stop cancels the worker context and waits for the goroutine to finish.
func (w *baseWorker) Stop() {
	w.log.Info("stopping " + w.name)
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
}

func registerWorker(lc fx.Lifecycle, w worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})
}

// Register creates an fx.Annotate that provides a worker for the given dependency type.
// The dependency must have a Run(ctx context.Context) error method.
//
// Example:
//
//	worker.Register[*processor]("outbox-processor", worker.WithReady())
//	worker.Register[*consumer]("rabbitmq-consumer", worker.WithReady(), worker.WithShutdown())
func Register[T runnable](name string, opts ...Option) any {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	return fx.Annotate(
		func(lc fx.Lifecycle, log *zap.Logger, shutdowner fx.Shutdowner, readiness health.ReadinessWaiter, dep T) worker {
			w := newBaseWorker(name, log, dep.Run, shutdowner, readiness, options)
			registerWorker(lc, w)
			return w
		},
		fx.ResultTags(`group:"workers"`),
	)
}

// NewWorkersModule instantiates every worker registered in the "workers" group.
func NewWorkersModule() fx.Option {
	return fx.Invoke(fx.Annotate(
		func(workers []worker, log *zap.Logger) {
			log.Info("background workers registered", zap.Int("count", len(workers)))
		},
		fx.ParamTags(`group:"workers"`),
	))
}

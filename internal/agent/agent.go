package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/viewsync/internal/config/server"
	"github.com/mwantia/viewsync/internal/toast"
	"github.com/mwantia/viewsync/internal/views"
	"github.com/mwantia/viewsync/pkg/db/store"
	"github.com/mwantia/viewsync/pkg/log"
)

// ViewSyncAgent keeps one synchronizer per configured table mounted and
// reports changes made by other sessions.
type ViewSyncAgent struct {
	mutex sync.RWMutex

	cfg     *config.BaseServerConfig
	sc      *container.ServiceContainer
	logger  *log.LoggerServiceImpl
	log     log.LoggerService
	storage store.Storage
	toasts  *toast.Queue
	tables  map[string]*views.Synchronizer
}

// mountedTable is the container registration of a synchronizer, named after
// its table.
type mountedTable interface {
	container.LifecycleService
	TableID() string
}

// tableNotifier turns changes made by other sessions into toasts.
type tableNotifier struct {
	Toasts *toast.Queue      `fabric:"inject"`
	Log    log.LoggerService `fabric:"logger:views"`
}

func (n *tableNotifier) onChange(source views.ChangeSource, snapshot views.Snapshot) {
	if source != views.SourceStorage {
		return
	}

	n.Toasts.Info("Saved views updated",
		fmt.Sprintf("Table '%s' now has %d saved views", snapshot.TableID, len(snapshot.Views)))
	n.Log.Info("Table '%s' changed in another session (%d views)", snapshot.TableID, len(snapshot.Views))
}

func NewAgent(cfg *config.BaseServerConfig) *ViewSyncAgent {
	logger := log.NewLoggerService("agent", cfg.Log)
	return &ViewSyncAgent{
		cfg:    cfg,
		sc:     newServiceContainer(),
		logger: logger,
		log:    logger,
		tables: make(map[string]*views.Synchronizer),
	}
}

func newServiceContainer() *container.ServiceContainer {
	sc := container.NewServiceContainer()
	sc.AddTagProcessor(log.NewLoggerTagProcessor())
	return sc
}

func (vsa *ViewSyncAgent) setupServices(ctx context.Context) error {
	backend, err := store.Open(vsa.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	errs := container.Errors{}

	vsa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[*log.LoggerServiceImpl](vsa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(vsa.logger),
		container.AsSingleton()))

	vsa.log.Debug("Registering '%s' storage...", vsa.cfg.Storage.Type)
	errs.Add(container.Register[*store.Service](vsa.sc,
		container.With[store.Storage](),
		container.WithInstance(store.NewService(backend)),
		container.AsSingleton()))

	vsa.log.Debug("Registering toast queue...")
	errs.Add(container.Register[*toast.Queue](vsa.sc,
		container.WithInstance(toast.NewQueue(
			toast.WithDuration(vsa.cfg.Toast.DurationValue()),
			toast.WithMax(vsa.cfg.Toast.Max),
		)),
		container.AsSingleton()))

	errs.Add(container.Register[*tableNotifier](vsa.sc))

	if err := errs.Errors(); err != nil {
		return err
	}

	// Resolving runs Init; cleanup happens in reverse resolution order.
	if vsa.storage, err = container.Resolve[store.Storage](ctx, vsa.sc); err != nil {
		return err
	}
	if vsa.toasts, err = container.Resolve[*toast.Queue](ctx, vsa.sc); err != nil {
		return err
	}
	notifier, err := container.Resolve[*tableNotifier](ctx, vsa.sc)
	if err != nil {
		return err
	}

	for _, table := range vsa.cfg.Views.Tables {
		if _, exists := vsa.tables[table]; exists {
			continue
		}

		schema, err := views.ParseSchema(vsa.cfg.Views.Schema[table])
		if err != nil {
			return fmt.Errorf("invalid schema for table '%s': %w", table, err)
		}

		vsa.log.Debug("Mounting synchronizer for table '%s'...", table)
		synchronizer := views.New(table, vsa.storage, views.NewHistory(""),
			views.WithLogger(notifier.Log.Named(table)),
			views.WithMaxViews(vsa.cfg.Views.MaxViews),
			views.WithKeyPrefix(vsa.cfg.Views.KeyPrefix),
			views.WithSchema(schema),
			views.WithOnChange(notifier.onChange),
		)

		if err := container.Register[*views.Synchronizer](vsa.sc,
			container.WithName[mountedTable](table),
			container.WithInstance(synchronizer),
			container.AsSingleton()); err != nil {
			return err
		}
		if _, err := container.ResolveName[mountedTable](ctx, vsa.sc, table); err != nil {
			return fmt.Errorf("failed to mount table '%s': %w", table, err)
		}

		vsa.tables[table] = synchronizer
	}

	return nil
}

// Synchronizer returns the mounted synchronizer for table.
func (vsa *ViewSyncAgent) Synchronizer(table string) (*views.Synchronizer, bool) {
	vsa.mutex.RLock()
	defer vsa.mutex.RUnlock()

	synchronizer, ok := vsa.tables[table]
	return synchronizer, ok
}

func (vsa *ViewSyncAgent) Toasts() *toast.Queue {
	vsa.mutex.RLock()
	defer vsa.mutex.RUnlock()

	return vsa.toasts
}

// Start sets up storage and mounts all tables. On failure everything that
// was already set up is released again.
func (vsa *ViewSyncAgent) Start(ctx context.Context) error {
	vsa.mutex.Lock()
	defer vsa.mutex.Unlock()

	if err := vsa.setupServices(ctx); err != nil {
		return errors.Join(err, vsa.cleanup(ctx))
	}

	vsa.log.Info("Agent started with %d tables on '%s' storage", len(vsa.tables), vsa.cfg.Storage.Type)
	return nil
}

// Shutdown releases services in reverse order of their setup.
func (vsa *ViewSyncAgent) Shutdown(ctx context.Context) error {
	vsa.mutex.Lock()
	defer vsa.mutex.Unlock()

	if err := vsa.cleanup(ctx); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}
	return nil
}

func (vsa *ViewSyncAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if err := vsa.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	vsa.log.Info("Shutting down...")

	shutdown, cancel := context.WithTimeout(context.Background(), vsa.cfg.ShutdownDuration())
	defer cancel()

	err := vsa.Shutdown(shutdown)
	if closeErr := vsa.logger.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// cleanup runs the container cleanup and replaces the container, so a
// released agent can be started again.
func (vsa *ViewSyncAgent) cleanup(ctx context.Context) error {
	err := vsa.sc.Cleanup(ctx)

	vsa.sc = newServiceContainer()
	clear(vsa.tables)
	return err
}

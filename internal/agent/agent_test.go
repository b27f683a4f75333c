package agent

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/viewsync/internal/config/server"
	"github.com/mwantia/viewsync/internal/toast"
	"github.com/mwantia/viewsync/internal/views"
	"github.com/mwantia/viewsync/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testConfig() *config.BaseServerConfig {
	cfg := config.GetServerDefault()
	cfg.Log.Level = "error"
	cfg.Storage.Type = "memory"
	cfg.Views.Tables = []string{"tickets", "visitors", "tickets"}
	cfg.Views.Schema = map[string]map[string]string{
		"tickets": {"unit": "string"},
	}
	cfg.Toast.Duration = "-1s"
	return &cfg
}

func TestAgent_MountsConfiguredTables(t *testing.T) {
	defer goleak.VerifyNone(t)

	agent := NewAgent(testConfig())
	require.NoError(t, agent.Start(context.Background()))

	_, ok := agent.Synchronizer("tickets")
	assert.True(t, ok)
	_, ok = agent.Synchronizer("visitors")
	assert.True(t, ok)
	_, ok = agent.Synchronizer("billing")
	assert.False(t, ok)

	require.NoError(t, agent.Shutdown(context.Background()))

	_, ok = agent.Synchronizer("tickets")
	assert.False(t, ok)
}

func TestAgent_ToastOnRemoteChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	agent := NewAgent(testConfig())
	require.NoError(t, agent.Start(ctx))
	defer agent.Shutdown(ctx)

	other := views.New("tickets", agent.storage, views.NewHistory(""))
	require.NoError(t, other.Mount(ctx))
	defer other.Unmount()

	_, err := other.CreateView(ctx, views.ViewInput{Name: "From another session"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return agent.Toasts().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	synchronizer, _ := agent.Synchronizer("tickets")
	assert.Len(t, synchronizer.Views(), 1)
}

func TestAgent_InvalidSchema(t *testing.T) {
	cfg := testConfig()
	cfg.Views.Schema["visitors"] = map[string]string{"arrival": "timestamp-ish"}

	agent := NewAgent(cfg)
	err := agent.Start(context.Background())

	assert.ErrorContains(t, err, "visitors")
	_, ok := agent.Synchronizer("tickets")
	assert.False(t, ok, "partially mounted tables are released")
}

func TestAgent_UnknownStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Type = "redis"

	err := NewAgent(cfg).Start(context.Background())
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestAgent_ShutdownUnmountsAndRestarts(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	agent := NewAgent(testConfig())
	require.NoError(t, agent.Start(ctx))

	tickets, ok := agent.Synchronizer("tickets")
	require.True(t, ok)
	assert.ErrorIs(t, tickets.Mount(ctx), views.ErrAlreadyMounted)

	agent.Toasts().Info("pending", "")
	require.NoError(t, agent.Shutdown(ctx))
	assert.Zero(t, agent.Toasts().Len(), "toast queue is cleared on shutdown")

	// the container released the synchronizer, so it can be mounted again
	require.NoError(t, tickets.Mount(ctx))
	tickets.Unmount()

	require.NoError(t, agent.Start(ctx))
	_, ok = agent.Synchronizer("visitors")
	assert.True(t, ok)
	require.NoError(t, agent.Shutdown(ctx))
}

func TestTableNotifier_ResolvedFromContainer(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWriterLogger("agent", config.LogServerConfig{Level: "info", NoColor: true}, &buf)
	queue := toast.NewQueue(toast.WithDuration(-time.Second))

	sc := newServiceContainer()
	require.NoError(t, container.Register[*log.LoggerServiceImpl](sc,
		container.With[log.LoggerService](),
		container.WithInstance(logger),
		container.AsSingleton()))
	require.NoError(t, container.Register[*toast.Queue](sc,
		container.WithInstance(queue),
		container.AsSingleton()))
	require.NoError(t, container.Register[*tableNotifier](sc))

	notifier, err := container.Resolve[*tableNotifier](context.Background(), sc)
	require.NoError(t, err)
	assert.Same(t, queue, notifier.Toasts)

	notifier.onChange(views.SourceLocal, views.Snapshot{TableID: "tickets"})
	assert.Zero(t, queue.Len(), "local changes do not raise toasts")

	notifier.onChange(views.SourceStorage, views.Snapshot{TableID: "tickets"})
	assert.Equal(t, 1, queue.Len())
	assert.Contains(t, buf.String(), "[agent/views] Table 'tickets' changed in another session")
}

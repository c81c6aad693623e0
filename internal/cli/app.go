package cli

import (
	"github.com/kshitijomkar/ledger/internal/db"
	"github.com/kshitijomkar/ledger/internal/ledger"
	"github.com/kshitijomkar/ledger/internal/remote"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
	"github.com/kshitijomkar/ledger/internal/sync/queue"
)

// app is the local database and sync engine a command works on.
type app struct {
	conn     *db.DB
	store    *db.Store
	queue    *queue.Queue
	client   *remote.Client
	engine   *syncpkg.Engine
	observer *connectivity.Observer
	ledger   *ledger.Service
}

// openApp opens the local database and wires the engine to the configured
// authority. The observer starts offline.
func (o *RootOptions) openApp() (*app, error) {
	cfg := o.Config

	conn, err := db.OpenAndMigrate(cfg.DataDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open local database", err)
	}

	client, err := remote.NewClient(cfg.Remote.URL, cfg.Remote.Token, remote.WithTimeout(cfg.Remote.Timeout))
	if err != nil {
		conn.Close()
		return nil, WrapExitError(ExitCommandError, "invalid remote configuration", err)
	}

	store := db.NewStore(conn.DB)
	q := queue.New(store)
	observer := connectivity.NewObserver(false)
	return &app{
		conn:     conn,
		store:    store,
		queue:    q,
		client:   client,
		engine:   syncpkg.NewEngine(store, q, client, syncpkg.Options{BatchSize: cfg.Sync.BatchSize, DeviceID: cfg.DeviceID}),
		observer: observer,
		ledger:   ledger.NewService(store, q, observer),
	}, nil
}

func (a *app) Close() error {
	return a.conn.Close()
}

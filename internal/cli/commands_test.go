package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshitijomkar/ledger/internal/db"
	"github.com/kshitijomkar/ledger/internal/ledger"
	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/remote/authority"
	"github.com/kshitijomkar/ledger/internal/sync/queue"
)

const testSecret = "cli-secret"

// setupEnv points the configuration at a fresh data directory and the given
// authority and returns the directory.
func setupEnv(t *testing.T, remoteURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LEDGER_DATA_DIR", dir)
	t.Setenv("LEDGER_DEVICE_ID", "cli-device")
	t.Setenv("LEDGER_REMOTE_URL", remoteURL)
	t.Setenv("LEDGER_REMOTE_TIMEOUT", "5s")
	t.Setenv("LEDGER_LOG_LEVEL", "error")

	token, err := authority.NewToken(testSecret, "owner", time.Hour)
	require.NoError(t, err)
	t.Setenv("LEDGER_REMOTE_TOKEN", token)
	return dir
}

func startAuthority(t *testing.T) (*authority.Store, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := authority.NewStore(0)
	srv := httptest.NewServer(authority.SetupRouter(authority.NewHandler(store), testSecret))
	t.Cleanup(srv.Close)
	return store, srv.URL
}

// seed writes records through the ledger service the way an app would
// before the CLI runs.
func seed(t *testing.T, dir string, fn func(ctx context.Context, svc *ledger.Service)) {
	t.Helper()
	conn, err := db.OpenAndMigrate(dir)
	require.NoError(t, err)
	defer conn.Close()

	store := db.NewStore(conn.DB)
	fn(context.Background(), ledger.NewService(store, queue.New(store), nil))
}

// decode unmarshals the data of a JSON envelope into v.
func decode(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestStatusCommand_FreshDatabase(t *testing.T) {
	setupEnv(t, "http://localhost:8080")

	out, err := execute(t, "status", "--format", "json")
	require.NoError(t, err)

	var view struct {
		Remote        string         `json:"remote"`
		Pending       int            `json:"pending"`
		Queue         map[string]int `json:"queue"`
		OpenConflicts int            `json:"open_conflicts"`
		LastSyncTime  *time.Time     `json:"last_sync_time"`
	}
	decode(t, out, &view)
	assert.Equal(t, "http://localhost:8080", view.Remote)
	assert.Zero(t, view.Pending)
	assert.Zero(t, view.OpenConflicts)
	assert.Nil(t, view.LastSyncTime)
}

func TestStatusCommand_Probe(t *testing.T) {
	_, url := startAuthority(t)
	setupEnv(t, url)

	out, err := execute(t, "status", "--probe")
	require.NoError(t, err)
	assert.Contains(t, out, "(reachable)")
	assert.Contains(t, out, "last sync:       never")
}

func TestSyncCommand_PushesQueuedChanges(t *testing.T) {
	server, url := startAuthority(t)
	dir := setupEnv(t, url)

	var customerID string
	seed(t, dir, func(ctx context.Context, svc *ledger.Service) {
		c := &models.Customer{Party: models.Party{Name: "Asha Traders"}}
		require.NoError(t, svc.Create(ctx, c))
		customerID = c.ID
	})

	out, err := execute(t, "sync", "--format", "json")
	require.NoError(t, err)

	var res struct {
		Operation string `json:"operation"`
		Success   bool   `json:"success"`
		Pushed    int    `json:"pushed"`
	}
	decode(t, out, &res)
	assert.Equal(t, "sync", res.Operation)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Pushed)

	_, ok := server.Get(models.TableCustomers, customerID)
	assert.True(t, ok, "customer not on the authority")

	out, err = execute(t, "queue")
	require.NoError(t, err)
	assert.Equal(t, "queue is empty\n", out)

	out, err = execute(t, "queue", "--all", "--format", "json")
	require.NoError(t, err)
	var q struct {
		Entries []struct {
			Status   string `json:"status"`
			RecordID string `json:"record_id"`
		} `json:"entries"`
	}
	decode(t, out, &q)
	require.Len(t, q.Entries, 1)
	assert.Equal(t, string(models.QueueStatusSynced), q.Entries[0].Status)

	out, err = execute(t, "status", "--format", "json")
	require.NoError(t, err)
	var status struct {
		LastSyncTime *time.Time `json:"last_sync_time"`
	}
	decode(t, out, &status)
	assert.NotNil(t, status.LastSyncTime)
}

func TestSyncCommand_UnreachableRemote(t *testing.T) {
	dir := setupEnv(t, "http://127.0.0.1:1")
	seed(t, dir, func(ctx context.Context, svc *ledger.Service) {
		require.NoError(t, svc.Create(ctx, &models.Customer{Party: models.Party{Name: "Offline Co"}}))
	})

	out, err := execute(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "sync: failed")

	out, err = execute(t, "status", "--format", "json")
	require.NoError(t, err)
	var status struct {
		Pending int `json:"pending"`
	}
	decode(t, out, &status)
	assert.Equal(t, 1, status.Pending)
}

func TestPullCommand_ReceivesServerRecords(t *testing.T) {
	server, url := startAuthority(t)
	setupEnv(t, url)

	require.NoError(t, server.Put(&models.Supplier{Party: models.Party{ID: "s1", Name: "Mill Supplies"}}))

	out, err := execute(t, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "pull: ok")

	out, err = execute(t, "records", "suppliers")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "name=Mill Supplies")
}

func TestRecordsCommand_Where(t *testing.T) {
	dir := setupEnv(t, "http://localhost:8080")

	var partyID string
	seed(t, dir, func(ctx context.Context, svc *ledger.Service) {
		a := &models.Customer{Party: models.Party{Name: "A"}}
		b := &models.Customer{Party: models.Party{Name: "B"}}
		require.NoError(t, svc.Create(ctx, a))
		require.NoError(t, svc.Create(ctx, b))
		partyID = a.ID
		for _, c := range []*models.Customer{a, b} {
			require.NoError(t, svc.Create(ctx, &models.Transaction{
				Type:    models.TransactionPayment,
				PartyID: c.ID,
				Amount:  decimal.NewFromInt(25),
				Date:    "2024-07-01",
			}))
		}
	})

	out, err := execute(t, "records", "transactions", "--where", "party_id="+partyID, "--format", "json")
	require.NoError(t, err)

	var view struct {
		Table   string `json:"table"`
		Records []struct {
			PartyID string `json:"party_id"`
		} `json:"records"`
	}
	decode(t, out, &view)
	assert.Equal(t, "transactions", view.Table)
	require.Len(t, view.Records, 1)
	assert.Equal(t, partyID, view.Records[0].PartyID)
}

func TestRecordsCommand_BadArguments(t *testing.T) {
	setupEnv(t, "http://localhost:8080")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown table", []string{"records", "widgets"}},
		{"internal table", []string{"records", "sync_queue"}},
		{"malformed where", []string{"records", "customers", "--where", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRecordsCommand_AddEditRemove(t *testing.T) {
	server, url := startAuthority(t)
	setupEnv(t, url)

	out, err := execute(t, "records", "add", "customers", "--set", "name=Asha", "--set", "phone=555-0101", "--format", "json")
	require.NoError(t, err)
	var created struct {
		Action string `json:"action"`
		ID     string `json:"id"`
		Record struct {
			Name    string `json:"name"`
			Phone   string `json:"phone"`
			Version int    `json:"version"`
		} `json:"record"`
	}
	decode(t, out, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "create", created.Action)
	assert.Equal(t, "Asha", created.Record.Name)
	assert.Equal(t, "555-0101", created.Record.Phone)
	assert.Equal(t, 1, created.Record.Version)

	out, err = execute(t, "records", "add", "transactions",
		"--set", "id=t1", "--set", "party_id="+created.ID, "--set", "type=payment",
		"--set", "amount=250", "--set", "date=2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, "create transactions/t1 queued (version 1)\n", out)

	out, err = execute(t, "records", "edit", "transactions", "t1", "--set", "amount=300.50")
	require.NoError(t, err)
	assert.Equal(t, "update transactions/t1 queued (version 2)\n", out)

	out, err = execute(t, "records", "transactions", "--format", "json")
	require.NoError(t, err)
	var listed struct {
		Records []struct {
			Amount     decimal.Decimal `json:"amount"`
			SyncStatus string          `json:"sync_status"`
		} `json:"records"`
	}
	decode(t, out, &listed)
	require.Len(t, listed.Records, 1)
	assert.True(t, decimal.RequireFromString("300.50").Equal(listed.Records[0].Amount))
	assert.Equal(t, "pending", listed.Records[0].SyncStatus)

	_, err = execute(t, "push")
	require.NoError(t, err)
	data, ok := server.Get(models.TableTransactions, "t1")
	require.True(t, ok)
	assert.Contains(t, string(data), `"300.5`)

	out, err = execute(t, "records", "rm", "transactions", "t1")
	require.NoError(t, err)
	assert.Equal(t, "delete transactions/t1 queued\n", out)

	out, err = execute(t, "records", "transactions")
	require.NoError(t, err)
	assert.Equal(t, "no transactions\n", out)

	out, err = execute(t, "status", "--format", "json")
	require.NoError(t, err)
	var status struct {
		Pending int `json:"pending"`
	}
	decode(t, out, &status)
	assert.Equal(t, 1, status.Pending)
}

func TestRecordsCommand_MutationErrors(t *testing.T) {
	dir := setupEnv(t, "http://localhost:8080")
	seed(t, dir, func(ctx context.Context, svc *ledger.Service) {
		require.NoError(t, svc.Create(ctx, &models.Customer{Party: models.Party{ID: "c1", Name: "Asha"}}))
		require.NoError(t, svc.Create(ctx, &models.Reminder{
			ID:        "r1",
			PartyID:   "c1",
			PartyType: models.PartyCustomer,
			Amount:    decimal.NewFromInt(40),
			DueDate:   "2024-08-01",
		}))
	})

	tests := []struct {
		name string
		args []string
	}{
		{"add unknown table", []string{"records", "add", "widgets", "--set", "name=x"}},
		{"add malformed set", []string{"records", "add", "customers", "--set", "name"}},
		{"add unknown field", []string{"records", "add", "customers", "--set", "nickname=A"}},
		{"add invalid record", []string{"records", "add", "transactions", "--set", "party_id=c1", "--set", "type=gift"}},
		{"add existing id", []string{"records", "add", "customers", "--set", "id=c1", "--set", "name=Other"}},
		{"edit missing record", []string{"records", "edit", "customers", "nope", "--set", "name=A"}},
		{"edit id", []string{"records", "edit", "customers", "c1", "--set", "id=c2"}},
		{"edit bad literal", []string{"records", "edit", "reminders", "r1", "--set", "is_completed=yes"}},
		{"rm missing record", []string{"records", "rm", "customers", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err), err.Error())
		})
	}

	out, err := execute(t, "records", "customers")
	require.NoError(t, err)
	assert.Contains(t, out, "name=Asha")
}

func TestConflictsCommand_Empty(t *testing.T) {
	setupEnv(t, "http://localhost:8080")

	out, err := execute(t, "conflicts")
	require.NoError(t, err)
	assert.Equal(t, "no open conflicts\n", out)
}

func TestResolveCommand_Errors(t *testing.T) {
	setupEnv(t, "http://localhost:8080")

	tests := []struct {
		name string
		args []string
	}{
		{"missing keep", []string{"resolve", "c1"}},
		{"invalid keep", []string{"resolve", "c1", "--keep", "both"}},
		{"unknown conflict", []string{"resolve", "does-not-exist", "--keep", "server"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.name != "missing keep" {
				assert.Equal(t, ExitCommandError, GetExitCode(err))
			}
		})
	}
}

func TestResetCommand(t *testing.T) {
	dir := setupEnv(t, "http://localhost:8080")
	seed(t, dir, func(ctx context.Context, svc *ledger.Service) {
		require.NoError(t, svc.Create(ctx, &models.Customer{Party: models.Party{Name: "Asha"}}))
	})

	t.Run("requires force", func(t *testing.T) {
		_, err := execute(t, "reset", "--table", "customers")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("requires a target", func(t *testing.T) {
		_, err := execute(t, "reset", "--force")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("rejects unknown table", func(t *testing.T) {
		_, err := execute(t, "reset", "--table", "widgets", "--force")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("clears tables", func(t *testing.T) {
		out, err := execute(t, "reset", "--table", "customers", "--table", "sync_queue", "--force")
		require.NoError(t, err)
		assert.Equal(t, "cleared customers\ncleared sync_queue\n", out)

		out, err = execute(t, "records", "customers")
		require.NoError(t, err)
		assert.Equal(t, "no customers\n", out)

		out, err = execute(t, "queue", "--all")
		require.NoError(t, err)
		assert.Equal(t, "queue is empty\n", out)
	})
}

func TestQueuePruneCommand(t *testing.T) {
	_, url := startAuthority(t)
	dir := setupEnv(t, url)
	seed(t, dir, func(ctx context.Context, svc *ledger.Service) {
		require.NoError(t, svc.Create(ctx, &models.Customer{Party: models.Party{Name: "Asha"}}))
		require.NoError(t, svc.Create(ctx, &models.Customer{Party: models.Party{Name: "Ravi"}}))
	})

	// Nothing is acknowledged yet, so nothing is removed.
	out, err := execute(t, "queue", "prune", "--older-than", "0s", "--format", "json")
	require.NoError(t, err)
	var view struct {
		Removed int64 `json:"removed"`
	}
	decode(t, out, &view)
	assert.Zero(t, view.Removed)

	_, err = execute(t, "push")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	out, err = execute(t, "queue", "prune", "--older-than", "0s", "--format", "json")
	require.NoError(t, err)
	decode(t, out, &view)
	assert.Equal(t, int64(2), view.Removed)

	_, err = execute(t, "queue", "prune", "--older-than", "-1h")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t, "http://localhost:8080")

	t.Run("requires a secret", func(t *testing.T) {
		t.Setenv("AUTHORITY_JWT_SECRET", "")
		_, err := execute(t, "token")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("issues a signed token", func(t *testing.T) {
		t.Setenv("AUTHORITY_JWT_SECRET", testSecret)
		out, err := execute(t, "token", "--subject", "tablet-1", "--format", "json")
		require.NoError(t, err)

		var view struct {
			Token     string     `json:"token"`
			Subject   string     `json:"subject"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		decode(t, out, &view)
		assert.Equal(t, "tablet-1", view.Subject)
		require.NotNil(t, view.ExpiresAt)

		var claims jwt.RegisteredClaims
		_, err = jwt.ParseWithClaims(view.Token, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "tablet-1", claims.Subject)
	})
}

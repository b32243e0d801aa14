package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tolelom/tolbracket/config"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/indexer"
	"github.com/tolelom/tolbracket/internal/testutil"
	"github.com/tolelom/tolbracket/rpc"
	"github.com/tolelom/tolbracket/storage"
	"github.com/tolelom/tolbracket/vm"

	_ "github.com/tolelom/tolbracket/vm/modules/economy"
	_ "github.com/tolelom/tolbracket/vm/modules/tournament"
)

// run executes the command tree with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func keygen(t *testing.T, path string) string {
	t.Helper()
	out, err := run(t, "keygen", "--key", path)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if addr, ok := strings.CutPrefix(line, "address: "); ok {
			return addr
		}
	}
	t.Fatalf("keygen printed no address: %q", out)
	return ""
}

func TestConfigInit(t *testing.T) {
	t.Setenv(envPassword, "pw")
	dir := t.TempDir()
	addr := keygen(t, filepath.Join(dir, "creator.key"))
	path := filepath.Join(dir, "config.json")

	if _, err := run(t, "config", "init", "--config", path, "--creator", addr, "--alloc", "500"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config is invalid: %v", err)
	}
	if cfg.Creator != addr || cfg.Genesis.Alloc[addr] != 500 {
		t.Errorf("config: %+v", cfg)
	}

	if _, err := run(t, "config", "init", "--config", path); err == nil {
		t.Error("config init overwrote an existing file without --force")
	}
	if _, err := run(t, "config", "init", "--config", path, "--creator", "alice", "--force"); err == nil {
		t.Error("config init accepted a creator that is not a key")
	}
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	t.Setenv(envPassword, "pw")
	path := filepath.Join(t.TempDir(), "k.key")
	keygen(t, path)
	if _, err := run(t, "keygen", "--key", path); err == nil {
		t.Error("keygen overwrote an existing keystore without --force")
	}
}

func TestTxAndQueryAgainstNode(t *testing.T) {
	t.Setenv(envPassword, "pw")
	t.Setenv(envRPCToken, "")
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "creator.key")
	creator := keygen(t, keyPath)

	cfg := config.DefaultConfig()
	cfg.Creator = creator
	cfg.Genesis.Alloc[creator] = 300
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	if _, err := config.ApplyGenesis(cfg, state); err != nil {
		t.Fatal(err)
	}
	emitter := events.NewEmitter()
	exec := vm.NewExecutor(state, emitter, cfg.Genesis.ChainID)
	srv := rpc.NewServer("127.0.0.1:0", rpc.NewHandler(exec, indexer.New(db, emitter)), nil, "", nil)
	ts := httptest.NewServer(srv.Routes(nil))
	defer ts.Close()

	out, err := run(t, "tx", "create", "4", "120", "--key", keyPath, "--rpc", ts.URL)
	if err != nil {
		t.Fatalf("tx create: %v", err)
	}
	var rcpt vm.Receipt
	if err := json.Unmarshal([]byte(out), &rcpt); err != nil || rcpt.Seq != 1 {
		t.Fatalf("receipt %q: %v", out, err)
	}

	out, err = run(t, "query", "game", "0", "--rpc", ts.URL)
	if err != nil {
		t.Fatalf("query game: %v", err)
	}
	var g core.Game
	if err := json.Unmarshal([]byte(out), &g); err != nil {
		t.Fatal(err)
	}
	if g.Capacity != 4 || g.RewardPool != 120 {
		t.Errorf("game: %+v", g)
	}

	out, err = run(t, "query", "balance", creator, "--rpc", ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	var acc core.Account
	if err := json.Unmarshal([]byte(out), &acc); err != nil || acc.Balance != 180 || acc.Nonce != 1 {
		t.Errorf("balance %q: %v", out, err)
	}

	if _, err := run(t, "tx", "status", "0", "--started", "--key", keyPath, "--rpc", ts.URL); err != nil {
		t.Fatalf("tx status: %v", err)
	}
	_, err = run(t, "tx", "register", "0", "--key", keyPath, "--rpc", ts.URL)
	if err == nil || !strings.Contains(err.Error(), "RegistrationClosed") {
		t.Errorf("register after start: got %v", err)
	}
}

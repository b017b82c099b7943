package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-market/internal/config"
	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/services/market"
	"github.com/archon-research/stl-market/internal/testutil"
)

// run executes marketctl with args and returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return runContext(t, context.Background(), strings.NewReader(stdin), args...)
}

func runContext(t *testing.T, ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(stdin, &out, io.Discard)
	err := app.RunContext(ctx, append([]string{"marketctl"}, args...))
	return out.String(), err
}

func TestCollectionAddress(t *testing.T) {
	out, err := run(t, "", "collection-address", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := bridge.CollectionAddress(7)
	if strings.TrimSpace(out) != want.Hex() {
		t.Errorf("output = %q, want %s", out, want.Hex())
	}

	if _, err := run(t, "", "collection-address", "-1"); err == nil {
		t.Error("expected error for negative collection id")
	}
}

func TestDeriveAddress(t *testing.T) {
	out, err := run(t, "", "derive-address", testutil.AlicePublicKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "primary: "+testutil.Alice) {
		t.Errorf("output should contain the SS58 address, got %q", out)
	}
	if !strings.Contains(out, common.HexToAddress(testutil.AliceShim).Hex()) {
		t.Errorf("output should contain the shim address, got %q", out)
	}

	if _, err := run(t, "", "derive-address", "nobody"); !errors.Is(err, entity.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	out, err := run(t, "", "format-amount", "1500000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "1.5 KSM" {
		t.Errorf("output = %q, want 1.5 KSM", out)
	}

	if _, err := run(t, "", "format-amount", "1.5"); err == nil {
		t.Error("expected error for a fractional smallest-unit amount")
	}
}

func TestNetworks(t *testing.T) {
	t.Setenv("NET_MARKETCTLTEST_NAME", "Marketctl Test")
	t.Setenv("NET_MARKETCTLTEST_API", "wss://marketctl.example/ws")

	out, err := run(t, "", "networks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "MARKETCTLTEST\tMarketctl Test\twss://marketctl.example/ws") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSimulatedSell(t *testing.T) {
	out, err := run(t, "", "--simulate", "--yes", "sell",
		"--account", testutil.Alice, "--collection", "7", "--token", "1", "--price", "0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{
		"[1/4] Register sponsorship: success",
		"[2/4] Prepare NFT for sale: success",
		"[4/4] Put on sale: success",
		"sell flow completed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulatedBuy(t *testing.T) {
	out, err := run(t, "", "--simulate", "--yes", "buy",
		"--account", testutil.Bob, "--collection", "7", "--token", "1", "--sim-price", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[3/4] Buy NFT: success") || !strings.Contains(out, "buy flow completed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSimulatedBuy_InsufficientBalance(t *testing.T) {
	out, err := run(t, "", "--simulate", "--yes", "--sim-balance", "0.5", "buy",
		"--account", testutil.Bob, "--collection", "7", "--token", "1", "--sim-price", "1")
	if !errors.Is(err, entity.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !strings.Contains(out, "[2/4] Add deposit: error: your KSM balance is too low") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "[3/4] Buy NFT: loading") {
		t.Error("stages after a failure must not run")
	}
}

func TestSimulatedCancelAndTransfer(t *testing.T) {
	out, err := run(t, "", "--simulate", "--yes", "cancel",
		"--account", testutil.Alice, "--collection", "7", "--token", "1")
	if err != nil || !strings.Contains(out, "cancel_sell flow completed") {
		t.Errorf("cancel: err=%v output:\n%s", err, out)
	}

	out, err = run(t, "", "--simulate", "--yes", "transfer",
		"--account", testutil.Alice, "--to", testutil.Bob, "--collection", "7", "--token", "1")
	if err != nil || !strings.Contains(out, "transfer flow completed") {
		t.Errorf("transfer: err=%v output:\n%s", err, out)
	}
}

func TestSimulatedPromptDecline(t *testing.T) {
	out, err := run(t, "\n", "--simulate", "whitelist", "--account", testutil.Alice)
	if !errors.Is(err, entity.ErrSigningCancelled) {
		t.Fatalf("expected ErrSigningCancelled, got %v", err)
	}
	if !strings.Contains(out, "Signed extrinsic") {
		t.Errorf("the prompt should have been shown, got:\n%s", out)
	}
}

func TestCancelledContextStopsFlow(t *testing.T) {
	// Nothing is ever typed at the prompt.
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, err := runContext(t, ctx, r, "--simulate", "whitelist", "--account", testutil.Alice)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "[1/1] Register sponsorship: error:") {
		t.Errorf("the running stage should be marked as failed, got:\n%s", out)
	}
}

func TestSignMessage(t *testing.T) {
	out, err := run(t, "", "--simulate", "--yes", "sign-message",
		"--account", testutil.Alice, "--message", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := strings.TrimSpace(out)
	if !strings.HasPrefix(line, "signature: 0x") || len(line) != len("signature: 0x")+64 {
		t.Errorf("unexpected output %q", out)
	}
}

func TestYesRequiresSimulate(t *testing.T) {
	_, err := run(t, "", "--yes", "whitelist", "--account", testutil.Alice)
	if err == nil || !strings.Contains(err.Error(), "--simulate") {
		t.Errorf("expected --yes to be rejected, got %v", err)
	}
}

func TestWhiteList_AgainstRPCNodes(t *testing.T) {
	node := testutil.StartMockRPC(t)
	node.Handle("eth_call", func(params json.RawMessage) (any, *testutil.RPCError) {
		// allowed(contract, account) = true
		return "0x" + strings.Repeat("0", 63) + "1", nil
	})

	path := filepath.Join(t.TempDir(), "market.yaml")
	yaml := fmt.Sprintf(`
asset:
  rpc_url: %[1]s
  evm_rpc_url: %[1]s
settlement:
  rpc_url: %[1]s
  existential_deposit: "333333333"
market:
  contract_address: "%[2]s"
  escrow_address: %[3]s
`, node.URL, testutil.MarketContract, testutil.Escrow)
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := run(t, "", "--config", path, "whitelist", "--account", testutil.Alice)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[1/1] Register sponsorship: success") {
		t.Errorf("unexpected output:\n%s", out)
	}

	var calls int
	for _, req := range node.Requests() {
		if req.Method == "eth_call" {
			calls++
		}
	}
	if calls == 0 {
		t.Error("expected the allow-list to be read over eth_call")
	}
}

func TestConfirmOverrides(t *testing.T) {
	got, err := confirmOverrides(map[string]config.ConfirmLimit{
		"buy_token": {MaxAttempts: 60, Delay: 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[market.OpBuyToken].MaxAttempts != 60 {
		t.Errorf("unexpected overrides %+v", got)
	}

	if _, err := confirmOverrides(map[string]config.ConfirmLimit{"buy": {MaxAttempts: 1}}); err == nil {
		t.Error("expected error for unknown operation")
	}
	if got, err := confirmOverrides(nil); err != nil || got != nil {
		t.Errorf("confirmOverrides(nil) = %v, %v", got, err)
	}
}

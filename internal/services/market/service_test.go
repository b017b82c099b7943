package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-market/internal/adapters/outbound/memory"
	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/pkg/confirm"
	"github.com/archon-research/stl-market/internal/ports/outbound"
	"github.com/archon-research/stl-market/internal/testutil"
)

var token71 = entity.TokenRef{CollectionID: 7, TokenID: 1}

type fixture struct {
	svc       *Service
	ledger    *memory.Ledger
	bridge    *bridge.Bridge
	signer    *testutil.MockSigner
	metrics   *testutil.MockMetrics
	opts      outbound.TxOptions
	contract  common.Address
	aliceShim common.Address
	bobShim   common.Address
}

type fixtureOption func(cfg *Config, nft *outbound.NFTReader)

func withoutNFTReader() fixtureOption {
	return func(cfg *Config, nft *outbound.NFTReader) { *nft = nil }
}

func withConfirm(op Operation, c confirm.Config) fixtureOption {
	return func(cfg *Config, nft *outbound.NFTReader) {
		if cfg.ConfirmByOperation == nil {
			cfg.ConfirmByOperation = make(map[Operation]confirm.Config)
		}
		cfg.ConfirmByOperation[op] = c
	}
}

func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	b, err := bridge.New(42)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	contract := common.HexToAddress(testutil.MarketContract)
	ledger, err := memory.NewLedger(memory.LedgerConfig{
		Bridge:             b,
		ContractAddress:    contract,
		EscrowAddress:      testutil.Escrow,
		ExistentialDeposit: big.NewInt(10),
		GasPrice:           big.NewInt(1_000_000_000),
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	metrics := testutil.NewMockMetrics()
	cfg := Config{
		ContractAddress: contract,
		EscrowAddress:   testutil.Escrow,
		Confirm:         confirm.Config{MaxAttempts: 3, Delay: time.Millisecond},
		Metrics:         metrics,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	var nft outbound.NFTReader = ledger
	for _, opt := range options {
		opt(&cfg, &nft)
	}

	svc, err := NewService(cfg, b, ledger, ledger, ledger, nft)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	aliceShim, _ := b.DeriveShimAddress(testutil.Alice)
	bobShim, _ := b.DeriveShimAddress(testutil.Bob)
	signer := testutil.NewMockSigner()
	return &fixture{
		svc:       svc,
		ledger:    ledger,
		bridge:    b,
		signer:    signer,
		metrics:   metrics,
		opts:      outbound.TxOptions{Signer: signer},
		contract:  contract,
		aliceShim: aliceShim,
		bobShim:   bobShim,
	}
}

func (f *fixture) owner(t *testing.T, ref entity.TokenRef) entity.CrossAccountID {
	t.Helper()
	token, err := f.ledger.GetToken(context.Background(), ref)
	if err != nil || token == nil {
		t.Fatalf("GetToken(%s) = %v, %v", ref, token, err)
	}
	return token.Owner
}

func (f *fixture) assertSubmissions(t *testing.T, want int) []entity.SignedTx {
	t.Helper()
	subs := f.ledger.Submissions()
	if len(subs) != want {
		t.Fatalf("expected %d submissions, got %d", want, len(subs))
	}
	return subs
}

func TestNewService_RequiresDependencies(t *testing.T) {
	b, _ := bridge.New(42)
	ledger, err := memory.NewLedger(memory.LedgerConfig{
		Bridge:          b,
		ContractAddress: common.HexToAddress(testutil.MarketContract),
		EscrowAddress:   testutil.Escrow,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	valid := Config{ContractAddress: common.HexToAddress(testutil.MarketContract), EscrowAddress: testutil.Escrow}

	tests := []struct {
		name string
		fn   func() (*Service, error)
	}{
		{name: "bridge", fn: func() (*Service, error) { return NewService(valid, nil, ledger, ledger, ledger, ledger) }},
		{name: "asset", fn: func() (*Service, error) { return NewService(valid, b, nil, ledger, ledger, ledger) }},
		{name: "settlement", fn: func() (*Service, error) { return NewService(valid, b, ledger, nil, ledger, ledger) }},
		{name: "contract", fn: func() (*Service, error) { return NewService(valid, b, ledger, ledger, nil, ledger) }},
		{name: "contract address", fn: func() (*Service, error) {
			return NewService(Config{EscrowAddress: testutil.Escrow}, b, ledger, ledger, ledger, ledger)
		}},
		{name: "escrow", fn: func() (*Service, error) {
			return NewService(Config{ContractAddress: valid.ContractAddress}, b, ledger, ledger, ledger, ledger)
		}},
	}
	for _, tt := range tests {
		if _, err := tt.fn(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	svc, err := NewService(valid, b, ledger, ledger, ledger, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.config.GasLimit != 2_500_000 || svc.config.Decimals != 12 || svc.config.Symbol != "KSM" {
		t.Errorf("defaults not applied: %+v", svc.config)
	}
	if svc.config.Confirm.MaxAttempts != 100 || svc.config.Confirm.Delay != 2*time.Second {
		t.Errorf("confirmation defaults not applied: %+v", svc.config.Confirm)
	}
}

func TestAddToWhiteList_AlreadyListedSubmitsNothing(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetAllowListed(f.aliceShim, true)

	if err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, f.opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.assertSubmissions(t, 0)
	if f.signer.SignCount() != 0 {
		t.Errorf("signer was asked to sign %d transactions", f.signer.SignCount())
	}
	if got := f.metrics.Recorded(); len(got) != 1 || got[0] != "add_to_whitelist:noop" {
		t.Errorf("metrics = %v", got)
	}
}

func TestAddToWhiteList_PaysExistentialDepositToEscrow(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(testutil.Alice, big.NewInt(1000))

	if err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, f.opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subs := f.assertSubmissions(t, 1)
	tx := subs[0].Tx
	if tx.Chain != entity.ChainSettlement || tx.Origin != testutil.Alice {
		t.Errorf("unexpected tx routing: %+v", tx)
	}
	args, ok := tx.Call.Args.(entity.BalancesTransferArgs)
	if !ok {
		t.Fatalf("unexpected call args %T", tx.Call.Args)
	}
	if args.Dest != testutil.Escrow || args.Value.Int64() != 10 {
		t.Errorf("unexpected transfer %+v", args)
	}

	listed, err := f.svc.CheckWhiteListed(context.Background(), testutil.Alice)
	if err != nil || !listed {
		t.Errorf("CheckWhiteListed = %v, %v", listed, err)
	}
	if got := f.metrics.Recorded(); len(got) != 1 || got[0] != "add_to_whitelist:submitted" {
		t.Errorf("metrics = %v", got)
	}
}

func TestAddToWhiteList_RejectsZeroExistentialDeposit(t *testing.T) {
	b, _ := bridge.New(42)
	contract := common.HexToAddress(testutil.MarketContract)
	ledger, err := memory.NewLedger(memory.LedgerConfig{
		Bridge:             b,
		ContractAddress:    contract,
		EscrowAddress:      testutil.Escrow,
		ExistentialDeposit: big.NewInt(0),
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	ledger.SetBalance(testutil.Alice, big.NewInt(1000))
	svc, err := NewService(Config{ContractAddress: contract, EscrowAddress: testutil.Escrow}, b, ledger, ledger, ledger, ledger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.AddToWhiteList(context.Background(), testutil.Alice, outbound.TxOptions{Signer: testutil.NewMockSigner()})
	if !errors.Is(err, entity.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if len(ledger.Submissions()) != 0 {
		t.Error("a zero deposit must not be paid to escrow")
	}
}

func TestCheckWhiteListed_EmptyAccount(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CheckWhiteListed(context.Background(), ""); !errors.Is(err, entity.ErrAccountNotProvided) {
		t.Errorf("expected ErrAccountNotProvided, got %v", err)
	}
	if err := f.svc.AddToWhiteList(context.Background(), "", f.opts); !errors.Is(err, entity.ErrAccountNotProvided) {
		t.Errorf("expected ErrAccountNotProvided, got %v", err)
	}
}

func TestExecute_SigningDeclined(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(testutil.Alice, big.NewInt(1000))

	err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, outbound.TxOptions{Signer: testutil.NewDecliningSigner()})
	if !errors.Is(err, entity.ErrSigningCancelled) {
		t.Fatalf("expected ErrSigningCancelled, got %v", err)
	}
	f.assertSubmissions(t, 0)
}

func TestExecute_MissingSigner(t *testing.T) {
	f := newFixture(t)
	err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, outbound.TxOptions{})
	if !errors.Is(err, entity.ErrDependencyMissing) {
		t.Fatalf("expected ErrDependencyMissing, got %v", err)
	}
}

func TestExecute_SignerErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	walletErr := errors.New("wallet disconnected")
	signer := &testutil.MockSigner{SignFn: func(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error) {
		return nil, walletErr
	}}

	err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, outbound.TxOptions{Signer: signer})
	if err != walletErr {
		t.Fatalf("expected signer error unchanged, got %v", err)
	}
}

func TestExecute_SubmissionErrorUnmodified(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(testutil.Alice, big.NewInt(1000))
	rpcErr := errors.New("1010: invalid transaction")
	f.ledger.SetSubmitError(rpcErr)

	err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, f.opts)
	if err != rpcErr {
		t.Fatalf("expected submission error unchanged, got %v", err)
	}
	if got := f.metrics.Recorded(); len(got) != 1 || got[0] != "add_to_whitelist:error" {
		t.Errorf("metrics = %v", got)
	}
}

func TestExecute_CustomSenderIsUsed(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(testutil.Alice, big.NewInt(1000))
	sent := 0
	sender := outbound.SubmitterFunc(func(ctx context.Context, tx *entity.SignedTx) (entity.Receipt, error) {
		sent++
		return f.ledger.Submit(ctx, tx)
	})

	err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, outbound.TxOptions{Signer: f.signer, Sender: sender})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 {
		t.Errorf("expected custom sender to be used once, got %d", sent)
	}
}

func TestExecute_TimeoutDoesNotResubmit(t *testing.T) {
	f := newFixture(t, withConfirm(OpAddToWhiteList, confirm.Config{MaxAttempts: 2, Delay: time.Millisecond}))
	f.ledger.SetBalance(testutil.Alice, big.NewInt(1000))
	f.ledger.Hold()

	err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, f.opts)
	if !errors.Is(err, entity.ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout, got %v", err)
	}
	f.assertSubmissions(t, 1)
	if f.metrics.Attempts[string(OpAddToWhiteList)] != 2 {
		t.Errorf("expected 2 confirmation attempts, got %d", f.metrics.Attempts[string(OpAddToWhiteList)])
	}

	// The held transaction lands later; re-running is a no-op.
	if err := f.ledger.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := f.svc.AddToWhiteList(context.Background(), testutil.Alice, f.opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.assertSubmissions(t, 1)
}

type failingContract struct {
	*memory.Ledger
	err error
}

func (c failingContract) IsAllowListed(ctx context.Context, account common.Address) (bool, error) {
	return false, c.err
}

func TestAddToWhiteList_ReadErrorPropagates(t *testing.T) {
	b, _ := bridge.New(42)
	contract := common.HexToAddress(testutil.MarketContract)
	ledger, err := memory.NewLedger(memory.LedgerConfig{Bridge: b, ContractAddress: contract, EscrowAddress: testutil.Escrow})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	readErr := errors.New("connection reset")
	svc, err := NewService(Config{ContractAddress: contract, EscrowAddress: testutil.Escrow},
		b, ledger, ledger, failingContract{Ledger: ledger, err: readErr}, ledger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.AddToWhiteList(context.Background(), testutil.Alice, outbound.TxOptions{Signer: testutil.NewMockSigner()})
	if err != readErr {
		t.Fatalf("expected read error unchanged, got %v", err)
	}
	if len(ledger.Submissions()) != 0 {
		t.Error("nothing should be submitted when the precondition read fails")
	}
}

func TestAmountHelpers(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.ParseAmount("0.5")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if v.String() != "500000000000" {
		t.Errorf("ParseAmount = %s", v)
	}
	if got := f.svc.FormatAmount(big.NewInt(3)); got != "0.000001" {
		t.Errorf("FormatAmount = %q", got)
	}
	shim, err := f.svc.ShimAddress(testutil.Alice)
	if err != nil || shim != common.HexToAddress(testutil.AliceShim) {
		t.Errorf("ShimAddress = %s, %v", shim.Hex(), err)
	}
}

package stages

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-market/internal/adapters/outbound/memory"
	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/pkg/confirm"
	"github.com/archon-research/stl-market/internal/ports/outbound"
	"github.com/archon-research/stl-market/internal/services/market"
	"github.com/archon-research/stl-market/internal/testutil"
)

var token71 = entity.TokenRef{CollectionID: 7, TokenID: 1}

type flowFixture struct {
	svc    *market.Service
	ledger *memory.Ledger
	bridge *bridge.Bridge
	sink   *memory.EventSink
	alice  Session
	bob    Session
}

func newFlowFixture(t *testing.T) *flowFixture {
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
	svc, err := market.NewService(market.Config{
		ContractAddress: contract,
		EscrowAddress:   testutil.Escrow,
		Confirm:         confirm.Config{MaxAttempts: 3, Delay: time.Millisecond},
		Logger:          discardLogger(),
	}, b, ledger, ledger, ledger, ledger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &flowFixture{
		svc:    svc,
		ledger: ledger,
		bridge: b,
		sink:   memory.NewEventSink(),
		alice:  Session{Account: testutil.Alice, Options: outbound.TxOptions{Signer: testutil.NewMockSigner()}},
		bob:    Session{Account: testutil.Bob, Options: outbound.TxOptions{Signer: testutil.NewMockSigner()}},
	}
}

func (f *flowFixture) run(t *testing.T, name string, stages []Stage) *Pipeline {
	t.Helper()
	p, err := New(Config{Name: name, Sink: f.sink, Logger: discardLogger()}, stages)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Initiate(context.Background()); err != nil {
		t.Fatalf("%s flow failed: %v (stages %v)", name, err, statuses(p.Stages()))
	}
	return p
}

func (f *flowFixture) owner(t *testing.T) entity.CrossAccountID {
	t.Helper()
	token, err := f.ledger.GetToken(context.Background(), token71)
	if err != nil || token == nil {
		t.Fatalf("GetToken = %v, %v", token, err)
	}
	return token.Owner
}

func TestSellThenBuy(t *testing.T) {
	f := newFlowFixture(t)
	f.ledger.SetToken(token71, entity.SubstrateAccount(testutil.Alice))
	f.ledger.SetBalance(testutil.Alice, big.NewInt(100))
	f.ledger.SetBalance(testutil.Bob, big.NewInt(100))
	price := big.NewInt(80)

	sell := f.run(t, FlowSell, SellStages(f.svc, f.alice, token71, price))
	assertStatuses(t, sell, StatusSuccess, StatusSuccess, StatusSuccess, StatusSuccess)
	if got := len(f.ledger.Submissions()); got != 4 {
		t.Fatalf("sell submitted %d transactions, want 4", got)
	}

	buy := f.run(t, FlowBuy, BuyStages(f.svc, f.bob, token71))
	assertStatuses(t, buy, StatusSuccess, StatusSuccess, StatusSuccess, StatusSuccess)

	if owner := f.owner(t); !f.bridge.IsOwnedBy(owner, testutil.Bob) || !owner.IsSubstrate() {
		t.Errorf("owner = %v, want bob's primary account", owner)
	}
	aliceShim, _ := f.bridge.DeriveShimAddress(testutil.Alice)
	deposit, _ := f.ledger.DepositOf(context.Background(), aliceShim)
	// Whitelisting deposit plus sale proceeds.
	if deposit.Int64() != 90 {
		t.Errorf("seller deposit = %s, want 90", deposit)
	}
	if balance := f.ledger.Balance(testutil.Bob); balance.Int64() != 20 {
		t.Errorf("buyer balance = %s, want 20", balance)
	}

	if n := len(f.sink.GetEventsByFlow(buy.ID())); n != 10 {
		t.Errorf("buy flow published %d events, want 10", n)
	}
}

func TestSellStages_RestartAfterFailureSkipsDoneStages(t *testing.T) {
	f := newFlowFixture(t)
	f.ledger.SetToken(token71, entity.SubstrateAccount(testutil.Alice))
	f.ledger.SetBalance(testutil.Alice, big.NewInt(100))

	declining := Session{Account: testutil.Alice, Options: outbound.TxOptions{Signer: testutil.NewDecliningSigner()}}
	p, err := New(Config{Name: FlowSell, Logger: discardLogger()}, SellStages(f.svc, declining, token71, big.NewInt(5)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Initiate(context.Background()); !errors.Is(err, entity.ErrSigningCancelled) {
		t.Fatalf("expected ErrSigningCancelled, got %v", err)
	}
	assertStatuses(t, p, StatusError, StatusDefault, StatusDefault, StatusDefault)

	f.ledger.SetAllowListed(mustShim(t, f.bridge, testutil.Alice), true)
	f.ledger.SetToken(token71, entity.EthereumAccount(mustShim(t, f.bridge, testutil.Alice)))

	// Whitelist and lock already hold, so only approve and list submit.
	f.run(t, FlowSell, SellStages(f.svc, f.alice, token71, big.NewInt(5)))
	if got := len(f.ledger.Submissions()); got != 2 {
		t.Errorf("restart submitted %d transactions, want 2", got)
	}
}

func TestCancelSellStages(t *testing.T) {
	f := newFlowFixture(t)
	f.ledger.SetToken(token71, entity.SubstrateAccount(testutil.Alice))
	f.ledger.SetBalance(testutil.Alice, big.NewInt(100))
	f.run(t, FlowSell, SellStages(f.svc, f.alice, token71, big.NewInt(80)))

	p := f.run(t, FlowCancelSell, CancelSellStages(f.svc, f.alice, token71))
	assertStatuses(t, p, StatusSuccess, StatusSuccess)

	if owner := f.owner(t); owner.Substrate() != testutil.Alice {
		t.Errorf("owner = %v, want alice", owner)
	}
	collection, _ := bridge.CollectionAddress(7)
	order, _ := f.ledger.GetOrder(context.Background(), collection, 1)
	if order.Active {
		t.Error("order should be cancelled")
	}
}

func TestTransferStages(t *testing.T) {
	f := newFlowFixture(t)
	f.ledger.SetToken(token71, entity.SubstrateAccount(testutil.Alice))

	stages := TransferStages(f.svc, f.alice, testutil.Bob, token71)
	if len(stages) != 1 {
		t.Fatalf("got %d stages, want 1", len(stages))
	}
	f.run(t, FlowTransfer, stages)

	if owner := f.owner(t); owner.Substrate() != testutil.Bob {
		t.Errorf("owner = %v, want bob", owner)
	}
}

func TestWhiteListStages(t *testing.T) {
	f := newFlowFixture(t)
	f.ledger.SetBalance(testutil.Alice, big.NewInt(100))

	f.run(t, FlowWhiteList, WhiteListStages(f.svc, f.alice))

	listed, err := f.svc.CheckWhiteListed(context.Background(), testutil.Alice)
	if err != nil || !listed {
		t.Errorf("CheckWhiteListed = %v, %v", listed, err)
	}
}

func mustShim(t *testing.T, b *bridge.Bridge, account string) common.Address {
	t.Helper()
	shim, err := b.DeriveShimAddress(account)
	if err != nil {
		t.Fatalf("DeriveShimAddress: %v", err)
	}
	return shim
}

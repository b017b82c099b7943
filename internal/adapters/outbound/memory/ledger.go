// ledger.go provides an in-memory implementation of both chains and the
// market contract.
//
// Submitted transactions are applied immediately with the same effects the
// real runtime and contract would have:
//   - balances.transfer to the escrow account credits the sender's shim deposit
//     and allow-lists the shim address
//   - unique.transfer / unique.transferFrom move token ownership
//   - evm.call decodes approve, addAsk, cancelAsk and buyKSM
//
// It is used by tests and by the CLI's simulate mode. All operations are
// thread-safe.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

var (
	_ outbound.AssetChain      = (*Ledger)(nil)
	_ outbound.SettlementChain = (*Ledger)(nil)
	_ outbound.MarketContract  = (*Ledger)(nil)
	_ outbound.NFTReader       = (*Ledger)(nil)
)

// ErrRejected is returned by Submit when a transaction would fail on chain.
var ErrRejected = errors.New("transaction rejected")

// LedgerConfig configures the simulated chains.
type LedgerConfig struct {
	Bridge             *bridge.Bridge
	ContractAddress    common.Address
	EscrowAddress      string
	ExistentialDeposit *big.Int
	GasPrice           *big.Int
}

type orderKey struct {
	collection common.Address
	tokenID    uint32
}

// Ledger is an in-memory asset chain, settlement chain and market contract.
type Ledger struct {
	mu sync.Mutex

	bridge             *bridge.Bridge
	contract           common.Address
	escrow             string
	existentialDeposit *big.Int
	gasPrice           *big.Int
	marketABI          *abi.ABI
	nonFungible        *abi.ABI

	tokens    map[entity.TokenRef]entity.CrossAccountID
	approvals map[entity.TokenRef]common.Address
	orders    map[orderKey]entity.Order
	deposits  map[common.Address]*big.Int
	balances  map[string]*big.Int
	allowList map[common.Address]bool

	submissions []entity.SignedTx
	submitErr   error
	hold        bool
	held        []entity.UnsignedTx
}

// NewLedger creates an empty simulated ledger.
func NewLedger(config LedgerConfig) (*Ledger, error) {
	if config.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if config.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	if config.EscrowAddress == "" {
		return nil, fmt.Errorf("escrow address is required")
	}
	if config.ExistentialDeposit == nil {
		config.ExistentialDeposit = big.NewInt(1)
	}
	if config.GasPrice == nil {
		config.GasPrice = big.NewInt(1)
	}

	marketABI, err := abis.GetMarketplaceABI()
	if err != nil {
		return nil, fmt.Errorf("loading marketplace ABI: %w", err)
	}
	nonFungible, err := abis.GetNonFungibleABI()
	if err != nil {
		return nil, fmt.Errorf("loading non-fungible ABI: %w", err)
	}

	return &Ledger{
		bridge:             config.Bridge,
		contract:           config.ContractAddress,
		escrow:             config.EscrowAddress,
		existentialDeposit: new(big.Int).Set(config.ExistentialDeposit),
		gasPrice:           new(big.Int).Set(config.GasPrice),
		marketABI:          marketABI,
		nonFungible:        nonFungible,
		tokens:             make(map[entity.TokenRef]entity.CrossAccountID),
		approvals:          make(map[entity.TokenRef]common.Address),
		orders:             make(map[orderKey]entity.Order),
		deposits:           make(map[common.Address]*big.Int),
		balances:           make(map[string]*big.Int),
		allowList:          make(map[common.Address]bool),
	}, nil
}

// --- seeding and inspection ---

// SetToken mints or reassigns ref.
func (l *Ledger) SetToken(ref entity.TokenRef, owner entity.CrossAccountID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[ref] = owner
}

// SetBalance sets the available settlement balance of a primary account.
func (l *Ledger) SetBalance(account string, value *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[l.accountKey(account)] = new(big.Int).Set(value)
}

// SetDeposit sets the escrowed deposit of a shim address.
func (l *Ledger) SetDeposit(account common.Address, value *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deposits[account] = new(big.Int).Set(value)
}

// SetOrder stores an ask directly, bypassing addAsk.
func (l *Ledger) SetOrder(ref entity.TokenRef, order entity.Order) error {
	collection, err := bridge.CollectionAddress(int64(ref.CollectionID))
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders[orderKey{collection: collection, tokenID: ref.TokenID}] = order
	return nil
}

// SetAllowListed adds or removes a shim address from the allow-list.
func (l *Ledger) SetAllowListed(account common.Address, listed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowList[account] = listed
}

// SetApproval records spender as approved for ref.
func (l *Ledger) SetApproval(ref entity.TokenRef, spender common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.approvals[ref] = spender
}

// SetSubmitError makes every following Submit fail with err. nil clears it.
func (l *Ledger) SetSubmitError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitErr = err
}

// Hold makes following submissions succeed without taking effect until
// Release is called, like transactions stuck in the pool.
func (l *Ledger) Hold() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hold = true
}

// Release applies every held transaction in submission order.
func (l *Ledger) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hold = false
	held := l.held
	l.held = nil
	for _, tx := range held {
		if err := l.apply(tx); err != nil {
			return err
		}
	}
	return nil
}

// Submissions returns every accepted signed transaction.
func (l *Ledger) Submissions() []entity.SignedTx {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entity.SignedTx, len(l.submissions))
	copy(out, l.submissions)
	return out
}

// Balance returns the settlement balance of a primary account.
func (l *Ledger) Balance(account string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(l.accountKey(account))
}

// --- outbound.NFTReader ---

func (l *Ledger) GetToken(ctx context.Context, ref entity.TokenRef) (*entity.Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.tokens[ref]
	if !ok {
		return nil, nil
	}
	return &entity.Token{Ref: ref, Owner: owner}, nil
}

// --- outbound.AssetChain ---

func (l *Ledger) Allowance(ctx context.Context, ref entity.TokenRef, owner, spender entity.CrossAccountID) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.tokens[ref]
	if !ok || !l.sameAccount(current, owner) || !spender.IsEthereum() {
		return new(big.Int), nil
	}
	if approved, ok := l.approvals[ref]; ok && approved == spender.Ethereum() {
		return big.NewInt(1), nil
	}
	return new(big.Int), nil
}

// Submit records tx and applies its effects.
func (l *Ledger) Submit(ctx context.Context, tx *entity.SignedTx) (entity.Receipt, error) {
	if tx == nil {
		return entity.Receipt{}, fmt.Errorf("%w: nil transaction", ErrRejected)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return entity.Receipt{}, l.submitErr
	}
	if l.hold {
		l.held = append(l.held, tx.Tx)
	} else if err := l.apply(tx.Tx); err != nil {
		return entity.Receipt{}, err
	}
	l.submissions = append(l.submissions, *tx)
	return entity.Receipt{Hash: "0x" + uuid.NewString()}, nil
}

// --- outbound.SettlementChain ---

func (l *Ledger) ExistentialDeposit(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.existentialDeposit), nil
}

func (l *Ledger) AvailableBalance(ctx context.Context, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(l.accountKey(account)), nil
}

// --- outbound.MarketContract ---

func (l *Ledger) GetOrder(ctx context.Context, collection common.Address, tokenID uint32) (entity.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderKey{collection: collection, tokenID: tokenID}]
	if !ok {
		return entity.Order{Price: new(big.Int)}, nil
	}
	order.Price = new(big.Int).Set(order.Price)
	return order, nil
}

func (l *Ledger) DepositOf(ctx context.Context, account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deposit(account), nil
}

func (l *Ledger) IsAllowListed(ctx context.Context, account common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowList[account], nil
}

func (l *Ledger) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.gasPrice), nil
}

// --- effects; callers hold l.mu ---

func (l *Ledger) apply(tx entity.UnsignedTx) error {
	switch args := tx.Call.Args.(type) {
	case entity.BalancesTransferArgs:
		return l.applyBalancesTransfer(tx.Origin, args)
	case entity.UniqueTransferArgs:
		ref := entity.TokenRef{CollectionID: args.CollectionID, TokenID: args.TokenID}
		return l.moveToken(ref, entity.SubstrateAccount(tx.Origin), args.Recipient)
	case entity.UniqueTransferFromArgs:
		ref := entity.TokenRef{CollectionID: args.CollectionID, TokenID: args.TokenID}
		if !l.controls(tx.Origin, args.From) {
			return fmt.Errorf("%w: %s cannot spend from %s", ErrRejected, tx.Origin, args.From)
		}
		return l.moveToken(ref, args.From, args.Recipient)
	case entity.EVMCallArgs:
		return l.applyEVMCall(tx.Origin, args)
	default:
		return fmt.Errorf("%w: unsupported call %s.%s", ErrRejected, tx.Call.Pallet, tx.Call.Method)
	}
}

func (l *Ledger) applyBalancesTransfer(origin string, args entity.BalancesTransferArgs) error {
	from := l.accountKey(origin)
	balance := l.balance(from)
	if balance.Cmp(args.Value) < 0 {
		return fmt.Errorf("%w: balance %s below transfer %s", ErrRejected, balance, args.Value)
	}
	l.balances[from] = balance.Sub(balance, args.Value)

	if !l.bridge.SamePrimary(args.Dest, l.escrow) {
		to := l.accountKey(args.Dest)
		l.balances[to] = new(big.Int).Add(l.balance(to), args.Value)
		return nil
	}

	shim, err := l.bridge.DeriveShimAddress(origin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	l.deposits[shim] = new(big.Int).Add(l.deposit(shim), args.Value)
	l.allowList[shim] = true
	return nil
}

func (l *Ledger) moveToken(ref entity.TokenRef, from, to entity.CrossAccountID) error {
	owner, ok := l.tokens[ref]
	if !ok {
		return fmt.Errorf("%w: token %s does not exist", ErrRejected, ref)
	}
	if !l.sameAccount(owner, from) {
		return fmt.Errorf("%w: token %s is owned by %s, not %s", ErrRejected, ref, owner, from)
	}
	l.tokens[ref] = to
	delete(l.approvals, ref)
	return nil
}

func (l *Ledger) applyEVMCall(origin string, args entity.EVMCallArgs) error {
	shim, err := l.bridge.DeriveShimAddress(origin)
	if err != nil || shim != args.Source {
		return fmt.Errorf("%w: evm source %s does not belong to %s", ErrRejected, args.Source.Hex(), origin)
	}
	if len(args.Input) < 4 {
		return fmt.Errorf("%w: empty call data", ErrRejected)
	}

	if _, ok := bridge.CollectionIDFromAddress(args.Target); ok {
		method, values, err := decode(l.nonFungible, args.Input)
		if err != nil || method != "approve" {
			return fmt.Errorf("%w: unsupported collection call", ErrRejected)
		}
		_, ref, err := l.orderKey(args.Target, values[1].(*big.Int))
		if err != nil {
			return err
		}
		if owner, ok := l.tokens[ref]; !ok || !l.sameAccount(owner, entity.EthereumAccount(shim)) {
			return fmt.Errorf("%w: %s does not own %s", ErrRejected, shim.Hex(), ref)
		}
		l.approvals[ref] = values[0].(common.Address)
		return nil
	}

	if args.Target != l.contract {
		return fmt.Errorf("%w: unknown contract %s", ErrRejected, args.Target.Hex())
	}
	method, values, err := decode(l.marketABI, args.Input)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	switch method {
	case "addAsk":
		price := values[0].(*big.Int)
		key, ref, err := l.orderKey(values[2].(common.Address), values[3].(*big.Int))
		if err != nil {
			return err
		}
		if l.approvals[ref] != l.contract {
			return fmt.Errorf("%w: market is not approved for %s", ErrRejected, ref)
		}
		if err := l.moveToken(ref, entity.EthereumAccount(shim), entity.EthereumAccount(l.contract)); err != nil {
			return err
		}
		l.orders[key] = entity.Order{Owner: shim, Price: new(big.Int).Set(price), Active: true}
		return nil

	case "cancelAsk":
		key, ref, err := l.orderKey(values[0].(common.Address), values[1].(*big.Int))
		if err != nil {
			return err
		}
		order, ok := l.orders[key]
		if !ok || !order.Active || order.Owner != shim {
			return fmt.Errorf("%w: no active ask of %s for %s", ErrRejected, shim.Hex(), ref)
		}
		order.Active = false
		l.orders[key] = order
		l.tokens[ref] = entity.EthereumAccount(shim)
		return nil

	case "buyKSM":
		key, ref, err := l.orderKey(values[0].(common.Address), values[1].(*big.Int))
		if err != nil {
			return err
		}
		buyer := values[2].(common.Address)
		receiver := values[3].(common.Address)
		order, ok := l.orders[key]
		if !ok || !order.Active {
			return fmt.Errorf("%w: %s is not for sale", ErrRejected, ref)
		}
		deposit := l.deposit(buyer)
		if deposit.Cmp(order.Price) < 0 {
			return fmt.Errorf("%w: deposit %s below price %s", ErrRejected, deposit, order.Price)
		}
		l.deposits[buyer] = deposit.Sub(deposit, order.Price)
		l.deposits[order.Owner] = new(big.Int).Add(l.deposit(order.Owner), order.Price)
		order.Active = false
		l.orders[key] = order
		l.tokens[ref] = entity.EthereumAccount(receiver)
		return nil

	default:
		return fmt.Errorf("%w: unsupported market call %s", ErrRejected, method)
	}
}

func (l *Ledger) orderKey(collection common.Address, id *big.Int) (orderKey, entity.TokenRef, error) {
	collectionID, ok := bridge.CollectionIDFromAddress(collection)
	if !ok || !id.IsUint64() || id.Uint64() > uint64(^uint32(0)) {
		return orderKey{}, entity.TokenRef{}, fmt.Errorf("%w: bad token reference", ErrRejected)
	}
	ref := entity.TokenRef{CollectionID: collectionID, TokenID: uint32(id.Uint64())}
	return orderKey{collection: collection, tokenID: ref.TokenID}, ref, nil
}

// controls reports whether origin may move tokens held by account.
func (l *Ledger) controls(origin string, account entity.CrossAccountID) bool {
	return l.bridge.IsOwnedBy(account, origin)
}

func (l *Ledger) sameAccount(a, b entity.CrossAccountID) bool {
	switch {
	case a.IsEthereum() && b.IsEthereum():
		return a.Ethereum() == b.Ethereum()
	case a.IsSubstrate() && b.IsSubstrate():
		return l.bridge.SamePrimary(a.Substrate(), b.Substrate())
	default:
		return false
	}
}

func (l *Ledger) accountKey(account string) string {
	id, err := l.bridge.NormalizeCrossAccountID(entity.SubstrateAccount(account))
	if err != nil {
		return account
	}
	return id.Substrate()
}

func (l *Ledger) balance(key string) *big.Int {
	if v, ok := l.balances[key]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) deposit(account common.Address) *big.Int {
	if v, ok := l.deposits[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func decode(contract *abi.ABI, input []byte) (string, []any, error) {
	method, err := contract.MethodById(input[:4])
	if err != nil {
		return "", nil, err
	}
	values, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return "", nil, err
	}
	return method.Name, values, nil
}

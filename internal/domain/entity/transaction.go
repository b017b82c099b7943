package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Chain names the ledger a transaction is destined for.
type Chain string

const (
	ChainAsset      Chain = "asset"
	ChainSettlement Chain = "settlement"
)

// Call is a runtime call description. Args holds one of the *Args types below.
type Call struct {
	Pallet string `json:"pallet"`
	Method string `json:"method"`
	Args   any    `json:"args"`
}

// UnsignedTx is what the core hands to the signing gateway. The gateway turns
// it into a signed extrinsic for Origin.
type UnsignedTx struct {
	Chain  Chain  `json:"chain"`
	Origin string `json:"origin"`
	Call   Call   `json:"call"`
}

// SignedTx carries the wallet-produced extrinsic bytes alongside the
// description they were produced from.
type SignedTx struct {
	Tx  UnsignedTx
	Raw []byte
}

// Receipt is returned by a successful submission. Inclusion is not implied.
type Receipt struct {
	Hash string
}

type BalancesTransferArgs struct {
	Dest  string   `json:"dest"`
	Value *big.Int `json:"value"`
}

type UniqueTransferArgs struct {
	Recipient    CrossAccountID `json:"recipient"`
	CollectionID uint32         `json:"collectionId"`
	TokenID      uint32         `json:"itemId"`
	Value        uint64         `json:"value"`
}

type UniqueTransferFromArgs struct {
	From         CrossAccountID `json:"from"`
	Recipient    CrossAccountID `json:"recipient"`
	CollectionID uint32         `json:"collectionId"`
	TokenID      uint32         `json:"itemId"`
	Value        uint64         `json:"value"`
}

type EVMCallArgs struct {
	Source       common.Address `json:"source"`
	Target       common.Address `json:"target"`
	Input        hexutil.Bytes  `json:"input"`
	Value        *big.Int       `json:"value"`
	GasLimit     uint64         `json:"gasLimit"`
	MaxFeePerGas *big.Int       `json:"maxFeePerGas"`
}

// BalancesTransfer builds balances.transfer(dest, value).
func BalancesTransfer(dest string, value *big.Int) Call {
	return Call{Pallet: "balances", Method: "transfer", Args: BalancesTransferArgs{Dest: dest, Value: value}}
}

// UniqueTransfer builds unique.transfer(recipient, collection, item, value).
func UniqueTransfer(recipient CrossAccountID, ref TokenRef, value uint64) Call {
	return Call{Pallet: "unique", Method: "transfer", Args: UniqueTransferArgs{
		Recipient:    recipient,
		CollectionID: ref.CollectionID,
		TokenID:      ref.TokenID,
		Value:        value,
	}}
}

// UniqueTransferFrom builds unique.transferFrom(from, recipient, collection, item, value).
func UniqueTransferFrom(from, recipient CrossAccountID, ref TokenRef, value uint64) Call {
	return Call{Pallet: "unique", Method: "transferFrom", Args: UniqueTransferFromArgs{
		From:         from,
		Recipient:    recipient,
		CollectionID: ref.CollectionID,
		TokenID:      ref.TokenID,
		Value:        value,
	}}
}

// EVMCall builds evm.call for an ABI-encoded input.
func EVMCall(source, target common.Address, input []byte, gasLimit uint64, maxFeePerGas *big.Int) Call {
	return Call{Pallet: "evm", Method: "call", Args: EVMCallArgs{
		Source:       source,
		Target:       target,
		Input:        input,
		Value:        new(big.Int),
		GasLimit:     gasLimit,
		MaxFeePerGas: maxFeePerGas,
	}}
}

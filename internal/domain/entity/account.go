package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountKind tags which address space a CrossAccountID lives in.
type AccountKind uint8

const (
	AccountNone AccountKind = iota
	AccountSubstrate
	AccountEthereum
)

func (k AccountKind) String() string {
	switch k {
	case AccountSubstrate:
		return "substrate"
	case AccountEthereum:
		return "ethereum"
	default:
		return "none"
	}
}

// CrossAccountID identifies an owner either by its primary (SS58) address or
// by its execution-shim (H160) address. Exactly one side is set.
type CrossAccountID struct {
	kind      AccountKind
	substrate string
	ethereum  common.Address
}

// SubstrateAccount returns a CrossAccountID for a primary-ledger address.
func SubstrateAccount(address string) CrossAccountID {
	return CrossAccountID{kind: AccountSubstrate, substrate: address}
}

// EthereumAccount returns a CrossAccountID for an execution-shim address.
func EthereumAccount(address common.Address) CrossAccountID {
	return CrossAccountID{kind: AccountEthereum, ethereum: address}
}

func (c CrossAccountID) Kind() AccountKind { return c.kind }
func (c CrossAccountID) IsZero() bool      { return c.kind == AccountNone }
func (c CrossAccountID) IsSubstrate() bool { return c.kind == AccountSubstrate }
func (c CrossAccountID) IsEthereum() bool  { return c.kind == AccountEthereum }

// Substrate returns the primary address, or "" for an ethereum identity.
func (c CrossAccountID) Substrate() string {
	if c.kind != AccountSubstrate {
		return ""
	}
	return c.substrate
}

// Ethereum returns the shim address, or the zero address for a substrate identity.
func (c CrossAccountID) Ethereum() common.Address {
	if c.kind != AccountEthereum {
		return common.Address{}
	}
	return c.ethereum
}

func (c CrossAccountID) String() string {
	switch c.kind {
	case AccountSubstrate:
		return "substrate:" + c.substrate
	case AccountEthereum:
		return "ethereum:" + c.ethereum.Hex()
	default:
		return "none"
	}
}

// MarshalJSON encodes the ledger-call form: {"substrate": "..."} or {"ethereum": "0x..."}.
func (c CrossAccountID) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case AccountSubstrate:
		return json.Marshal(map[string]string{"substrate": c.substrate})
	case AccountEthereum:
		return json.Marshal(map[string]string{"ethereum": c.ethereum.Hex()})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts either tag in any letter case, as returned by the
// different runtime versions of the asset chain.
func (c *CrossAccountID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = CrossAccountID{}
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding cross account id: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("cross account id must have exactly one key, got %d", len(raw))
	}
	for key, value := range raw {
		switch strings.ToLower(key) {
		case "substrate":
			*c = SubstrateAccount(value)
		case "ethereum":
			if !common.IsHexAddress(value) {
				return fmt.Errorf("%w: %q", ErrInvalidAddress, value)
			}
			*c = EthereumAccount(common.HexToAddress(value))
		default:
			return fmt.Errorf("unknown cross account id key %q", key)
		}
	}
	return nil
}

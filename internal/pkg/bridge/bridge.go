// Package bridge maps identities between the asset chain's SS58 address space
// and the EVM execution shim's H160 address space.
//
// Every mapping here is a pure function of its input. Nothing is cached, so a
// derived address can never drift from the primary address it came from.
package bridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/ss58"
)

// collectionAddressPrefix is the fixed head of every collection's shim address;
// the last four bytes are the big-endian collection id.
var collectionAddressPrefix = [16]byte{
	0x17, 0xc4, 0xe6, 0x45, 0x3c, 0xc4, 0x9a, 0xaa,
	0xae, 0xac, 0xa8, 0x94, 0xe6, 0xd9, 0x68, 0x3e,
}

// Bridge converts addresses for one asset-chain network.
type Bridge struct {
	prefix uint16
}

// New returns a Bridge that encodes primary addresses with the given SS58 prefix.
func New(ss58Prefix uint16) (*Bridge, error) {
	if ss58Prefix > ss58.MaxPrefix {
		return nil, fmt.Errorf("ss58 prefix %d: %w", ss58Prefix, entity.ErrOutOfRange)
	}
	return &Bridge{prefix: ss58Prefix}, nil
}

// Prefix returns the SS58 network prefix used for encoding.
func (b *Bridge) Prefix() uint16 { return b.prefix }

// PublicKey decodes a primary address. Both SS58 and 0x-prefixed 32-byte hex
// public keys are accepted.
func (b *Bridge) PublicKey(primary string) ([]byte, error) {
	if primary == "" {
		return nil, entity.ErrAccountNotProvided
	}
	if strings.HasPrefix(primary, "0x") || strings.HasPrefix(primary, "0X") {
		key, err := hexutil.Decode("0x" + primary[2:])
		if err != nil || len(key) != ss58.PublicKeyLength {
			return nil, fmt.Errorf("%w: %q is not a 32-byte public key", entity.ErrInvalidAddress, primary)
		}
		return key, nil
	}
	key, _, err := ss58.Decode(primary)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", entity.ErrInvalidAddress, primary, err)
	}
	return key, nil
}

// DeriveShimAddress returns the execution-shim address owned by a primary
// account: the first 20 bytes of its public key. Address.Hex yields the
// EIP-55 checksummed form.
func (b *Bridge) DeriveShimAddress(primary string) (common.Address, error) {
	key, err := b.PublicKey(primary)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(key[:common.AddressLength]), nil
}

// PrimaryAddress encodes a public key as an SS58 address on this network.
func (b *Bridge) PrimaryAddress(publicKey []byte) (string, error) {
	addr, err := ss58.Encode(publicKey, b.prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrInvalidAddress, err)
	}
	return addr, nil
}

// SamePrimary reports whether two primary addresses name the same public key,
// regardless of the network prefix they were encoded with.
func (b *Bridge) SamePrimary(a, c string) bool {
	if a == "" || c == "" {
		return false
	}
	if a == c {
		return true
	}
	ka, err := b.PublicKey(a)
	if err != nil {
		return false
	}
	kc, err := b.PublicKey(c)
	if err != nil {
		return false
	}
	return bytes.Equal(ka, kc)
}

// NormalizeCrossAccountID returns id in ledger-call form: substrate addresses
// are re-encoded with this network's prefix, ethereum addresses pass through
// and are checksummed on encoding. The tag is never changed and the missing
// side is never derived.
func (b *Bridge) NormalizeCrossAccountID(id entity.CrossAccountID) (entity.CrossAccountID, error) {
	switch id.Kind() {
	case entity.AccountSubstrate:
		key, err := b.PublicKey(id.Substrate())
		if err != nil {
			return entity.CrossAccountID{}, err
		}
		addr, err := b.PrimaryAddress(key)
		if err != nil {
			return entity.CrossAccountID{}, err
		}
		return entity.SubstrateAccount(addr), nil
	case entity.AccountEthereum:
		return id, nil
	default:
		return entity.CrossAccountID{}, entity.ErrAccountNotProvided
	}
}

// ParseCrossAccountID accepts either textual representation: a 0x-prefixed
// 20-byte hex address becomes an ethereum identity, anything else must be a
// primary address.
func (b *Bridge) ParseCrossAccountID(value string) (entity.CrossAccountID, error) {
	if value == "" {
		return entity.CrossAccountID{}, entity.ErrAccountNotProvided
	}
	if len(value) == 2+2*common.AddressLength && common.IsHexAddress(value) {
		return entity.EthereumAccount(common.HexToAddress(value)), nil
	}
	return b.NormalizeCrossAccountID(entity.SubstrateAccount(value))
}

// IsOwnedBy reports whether owner resolves to the primary account, either
// directly or through its derived shim address.
func (b *Bridge) IsOwnedBy(owner entity.CrossAccountID, primary string) bool {
	switch owner.Kind() {
	case entity.AccountSubstrate:
		return b.SamePrimary(owner.Substrate(), primary)
	case entity.AccountEthereum:
		shim, err := b.DeriveShimAddress(primary)
		return err == nil && owner.Ethereum() == shim
	default:
		return false
	}
}

// CollectionAddress returns the shim address of an asset-chain collection.
func CollectionAddress(collectionID int64) (common.Address, error) {
	if collectionID < 0 || collectionID > math.MaxUint32 {
		return common.Address{}, fmt.Errorf("collection id %d: %w", collectionID, entity.ErrOutOfRange)
	}
	var raw [common.AddressLength]byte
	copy(raw[:], collectionAddressPrefix[:])
	binary.BigEndian.PutUint32(raw[16:], uint32(collectionID))
	return common.Address(raw), nil
}

// CollectionIDFromAddress is the inverse of CollectionAddress. ok is false
// when addr does not carry the collection prefix.
func CollectionIDFromAddress(addr common.Address) (id uint32, ok bool) {
	if !bytes.Equal(addr[:16], collectionAddressPrefix[:]) {
		return 0, false
	}
	return binary.BigEndian.Uint32(addr[16:]), true
}

package entity

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// TokenRef identifies an NFT on the asset chain.
type TokenRef struct {
	CollectionID uint32
	TokenID      uint32
}

func (r TokenRef) String() string {
	return fmt.Sprintf("%d/%d", r.CollectionID, r.TokenID)
}

// ParseTokenRef parses decimal collection and token ids.
func ParseTokenRef(collectionID, tokenID string) (TokenRef, error) {
	c, err := parseID("collection id", collectionID)
	if err != nil {
		return TokenRef{}, err
	}
	t, err := parseID("token id", tokenID)
	if err != nil {
		return TokenRef{}, err
	}
	return TokenRef{CollectionID: c, TokenID: t}, nil
}

func parseID(name, s string) (uint32, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", name, s, err)
	}
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%s %d: %w", name, v, ErrOutOfRange)
	}
	return uint32(v), nil
}

// Token is the projection of an asset-chain NFT the market reads.
type Token struct {
	Ref   TokenRef
	Owner CrossAccountID
}

// Order is an ask stored in the market contract, keyed by
// (collection shim address, token id).
type Order struct {
	Owner  common.Address
	Price  *big.Int
	Active bool
}

package substrate

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"
)

// Twox128 is the storage hasher used for pallet and item prefixes: two
// xxHash64 digests with seeds 0 and 1, each little-endian.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:], d.Sum64())
	}
	return out
}

// Blake2_128Concat hashes data with a 128-bit blake2b and appends data itself.
func Blake2_128Concat(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	_, _ = h.Write(data)
	return append(h.Sum(nil), data...)
}

// SystemAccountKey is the storage key of System.Account for a public key.
func SystemAccountKey(publicKey []byte) []byte {
	key := append(Twox128([]byte("System")), Twox128([]byte("Account"))...)
	return append(key, Blake2_128Concat(publicKey)...)
}

// accountInfoSize covers nonce, consumers, providers, sufficients and the
// free, reserved and frozen balances.
const accountInfoSize = 4*4 + 3*16

// decodeAvailable reads the SCALE-encoded AccountInfo and returns free minus
// frozen, floored at zero.
func decodeAvailable(raw []byte) (*big.Int, error) {
	if len(raw) < accountInfoSize {
		return nil, fmt.Errorf("account info too short: %d bytes", len(raw))
	}
	free := decodeU128(raw[16:32])
	frozen := decodeU128(raw[48:64])
	if frozen.Gt(free) {
		return new(big.Int), nil
	}
	return new(uint256.Int).Sub(free, frozen).ToBig(), nil
}

func decodeU128(le []byte) *uint256.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	return new(uint256.Int).SetBytes(be)
}

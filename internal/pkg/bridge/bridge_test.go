package bridge

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-market/internal/domain/entity"
)

const (
	aliceGeneric = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceKusama  = "HNZata7iMYWmk5RvZRTiAsSDhV8366zq2YGb3tLH5Upf74F"
	aliceHexKey  = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	bobGeneric   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func newBridge(t *testing.T, prefix uint16) *Bridge {
	t.Helper()
	b, err := New(prefix)
	if err != nil {
		t.Fatalf("New(%d): %v", prefix, err)
	}
	return b
}

func TestDeriveShimAddress_Deterministic(t *testing.T) {
	b := newBridge(t, 42)

	first, err := b.DeriveShimAddress(aliceGeneric)
	if err != nil {
		t.Fatalf("DeriveShimAddress: %v", err)
	}
	second, err := b.DeriveShimAddress(aliceGeneric)
	if err != nil {
		t.Fatalf("DeriveShimAddress: %v", err)
	}

	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("derived bytes differ between calls")
	}
	if first.Hex() != second.Hex() {
		t.Errorf("checksum encoding differs: %s vs %s", first.Hex(), second.Hex())
	}

	want := common.HexToAddress("0xd43593c715fdd31c61141abd04a99fd6822c8558")
	if first != want {
		t.Errorf("derived %s, want %s", first.Hex(), want.Hex())
	}
}

func TestDeriveShimAddress_AcceptsAnyEncodingOfSameKey(t *testing.T) {
	b := newBridge(t, 2)

	want, err := b.DeriveShimAddress(aliceGeneric)
	if err != nil {
		t.Fatalf("DeriveShimAddress: %v", err)
	}
	for _, in := range []string{aliceKusama, aliceHexKey} {
		got, err := b.DeriveShimAddress(in)
		if err != nil {
			t.Fatalf("DeriveShimAddress(%s): %v", in, err)
		}
		if got != want {
			t.Errorf("DeriveShimAddress(%s) = %s, want %s", in, got.Hex(), want.Hex())
		}
	}
}

func TestDeriveShimAddress_InvalidInput(t *testing.T) {
	b := newBridge(t, 42)

	for _, in := range []string{"not-an-address", "0x1234", aliceGeneric[:len(aliceGeneric)-1] + "Z"} {
		if _, err := b.DeriveShimAddress(in); !errors.Is(err, entity.ErrInvalidAddress) {
			t.Errorf("DeriveShimAddress(%q): expected ErrInvalidAddress, got %v", in, err)
		}
	}
	if _, err := b.DeriveShimAddress(""); !errors.Is(err, entity.ErrAccountNotProvided) {
		t.Errorf("expected ErrAccountNotProvided for empty input, got %v", err)
	}
}

func TestCollectionAddress_Range(t *testing.T) {
	tests := []struct {
		id      int64
		wantErr bool
	}{
		{id: 0},
		{id: 7},
		{id: math.MaxUint32},
		{id: -1, wantErr: true},
		{id: math.MaxUint32 + 1, wantErr: true},
	}

	for _, tt := range tests {
		addr, err := CollectionAddress(tt.id)
		if tt.wantErr {
			if !errors.Is(err, entity.ErrOutOfRange) {
				t.Errorf("CollectionAddress(%d): expected ErrOutOfRange, got %v", tt.id, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CollectionAddress(%d): %v", tt.id, err)
		}
		id, ok := CollectionIDFromAddress(addr)
		if !ok || int64(id) != tt.id {
			t.Errorf("CollectionIDFromAddress(%s) = %d, %v; want %d", addr.Hex(), id, ok, tt.id)
		}
	}
}

func TestCollectionAddress_Layout(t *testing.T) {
	addr, err := CollectionAddress(7)
	if err != nil {
		t.Fatalf("CollectionAddress: %v", err)
	}
	want := common.HexToAddress("0x17c4e6453cc49aaaaeaca894e6d9683e00000007")
	if addr != want {
		t.Errorf("CollectionAddress(7) = %s, want %s", addr.Hex(), want.Hex())
	}

	if _, ok := CollectionIDFromAddress(common.HexToAddress("0x01")); ok {
		t.Error("expected non-collection address to be rejected")
	}
}

func TestNormalizeCrossAccountID_KeepsTag(t *testing.T) {
	b := newBridge(t, 2)

	sub, err := b.NormalizeCrossAccountID(entity.SubstrateAccount(aliceGeneric))
	if err != nil {
		t.Fatalf("normalize substrate: %v", err)
	}
	if !sub.IsSubstrate() || sub.Substrate() != aliceKusama {
		t.Errorf("normalized substrate = %v, want substrate:%s", sub, aliceKusama)
	}

	shim := common.HexToAddress("0xd43593c715fdd31c61141abd04a99fd6822c8558")
	eth, err := b.NormalizeCrossAccountID(entity.EthereumAccount(shim))
	if err != nil {
		t.Fatalf("normalize ethereum: %v", err)
	}
	if !eth.IsEthereum() || eth.Ethereum() != shim {
		t.Errorf("normalized ethereum = %v", eth)
	}

	if _, err := b.NormalizeCrossAccountID(entity.CrossAccountID{}); !errors.Is(err, entity.ErrAccountNotProvided) {
		t.Errorf("expected ErrAccountNotProvided, got %v", err)
	}
}

func TestParseCrossAccountID(t *testing.T) {
	b := newBridge(t, 42)

	eth, err := b.ParseCrossAccountID("0xd43593c715fdd31c61141abd04a99fd6822c8558")
	if err != nil {
		t.Fatalf("parse ethereum: %v", err)
	}
	if !eth.IsEthereum() {
		t.Errorf("expected ethereum identity, got %v", eth)
	}

	sub, err := b.ParseCrossAccountID(aliceKusama)
	if err != nil {
		t.Fatalf("parse substrate: %v", err)
	}
	if sub.Substrate() != aliceGeneric {
		t.Errorf("expected re-encoded %s, got %s", aliceGeneric, sub.Substrate())
	}

	if _, err := b.ParseCrossAccountID("0x1234"); !errors.Is(err, entity.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestSamePrimaryAndIsOwnedBy(t *testing.T) {
	b := newBridge(t, 42)

	if !b.SamePrimary(aliceGeneric, aliceKusama) {
		t.Error("same key under different prefixes should match")
	}
	if b.SamePrimary(aliceGeneric, bobGeneric) {
		t.Error("different keys should not match")
	}
	if b.SamePrimary("", "") {
		t.Error("empty addresses should never match")
	}

	shim, _ := b.DeriveShimAddress(aliceGeneric)
	if !b.IsOwnedBy(entity.EthereumAccount(shim), aliceKusama) {
		t.Error("shim owner should resolve to alice")
	}
	if !b.IsOwnedBy(entity.SubstrateAccount(aliceKusama), aliceGeneric) {
		t.Error("primary owner should resolve to alice")
	}
	if b.IsOwnedBy(entity.EthereumAccount(shim), bobGeneric) {
		t.Error("alice's shim must not resolve to bob")
	}
}

func TestNew_RejectsOversizedPrefix(t *testing.T) {
	if _, err := New(16384); !errors.Is(err, entity.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

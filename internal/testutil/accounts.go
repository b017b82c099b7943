// Package testutil holds fixtures and hand-written mocks shared by tests.
package testutil

// Well-known development accounts, SS58 generic prefix (42).
const (
	Alice   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	Bob     = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	Charlie = "5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y"

	// AlicePublicKey is Alice's sr25519 public key.
	AlicePublicKey = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

	// AliceShim is the first 20 bytes of Alice's public key.
	AliceShim = "0xd43593c715fdd31c61141abd04a99fd6822c8558"

	// Escrow is the settlement escrow account in tests.
	Escrow = Charlie
)

// MarketContract is an arbitrary market contract address for tests.
const MarketContract = "0x5c03d3976ad16f50451d95113728e0229c50cab8"

package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetNonFungibleABI returns the approval surface every collection exposes at
// its shim address.
func GetNonFungibleABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "approved", "type": "address"},
				{"name": "tokenId", "type": "uint256"}
			],
			"name": "approve",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"name": "getApproved",
			"outputs": [{"name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}

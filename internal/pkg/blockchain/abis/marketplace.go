package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetMarketplaceABI returns the subset of the market contract used for fixed
// price asks settled in the settlement chain's native currency.
func GetMarketplaceABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "price", "type": "uint256"},
				{"name": "currencyCode", "type": "address"},
				{"name": "idCollection", "type": "address"},
				{"name": "idNFT", "type": "uint256"}
			],
			"name": "addAsk",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "idCollection", "type": "address"},
				{"name": "idNFT", "type": "uint256"}
			],
			"name": "cancelAsk",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "idCollection", "type": "address"},
				{"name": "idNFT", "type": "uint256"},
				{"name": "buyer", "type": "address"},
				{"name": "receiver", "type": "address"}
			],
			"name": "buyKSM",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [{"name": "", "type": "address"}],
			"name": "balanceKSM",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "idCollection", "type": "address"},
				{"name": "idNFT", "type": "uint256"}
			],
			"name": "getOrder",
			"outputs": [
				{"name": "idNFT", "type": "uint256"},
				{"name": "currencyCode", "type": "address"},
				{"name": "price", "type": "uint256"},
				{"name": "time", "type": "uint256"},
				{"name": "idCollection", "type": "address"},
				{"name": "ownerAddr", "type": "address"},
				{"name": "flagActive", "type": "uint8"}
			],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}

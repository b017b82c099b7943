package abis

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractHelpersAddress is the precompile that exposes per-contract
// allow-lists on the asset chain.
var ContractHelpersAddress = common.HexToAddress("0x842899ECF380553E8a4de75bF534cdf6fBF64049")

func GetContractHelpersABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "contractAddress", "type": "address"},
				{"name": "user", "type": "address"}
			],
			"name": "allowed",
			"outputs": [{"name": "", "type": "bool"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}

package dex

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Uniswap V3 mainnet deployment defaults.
var (
	DefaultFactory          = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	DefaultPositionManager  = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	DefaultPoolInitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")
)

// SortTokens orders two token addresses the way the factory does.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// ComputePoolAddress derives the CREATE2 address of the pool for a token pair and fee tier.
func ComputePoolAddress(factory, tokenA, tokenB common.Address, fee uint32, initCodeHash common.Hash) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	encoded := make([]byte, 0, 96)
	encoded = append(encoded, common.LeftPadBytes(token0.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(token1.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32)...)
	salt := crypto.Keccak256Hash(encoded)
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}

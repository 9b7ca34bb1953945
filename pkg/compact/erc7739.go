package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TypedDataSignType returns the ERC-7739 TypedDataSign type string wrapping contentsType,
// whose leading struct is contentsName.
func TypedDataSignType(contentsName, contentsType string) string {
	return "TypedDataSign(" + contentsName + " contents,string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)" + contentsType
}

// TypedDataSignHash hashes the TypedDataSign envelope over contentsHash with the
// fields of the account's own EIP-712 domain.
func TypedDataSignHash(contentsName, contentsType string, contentsHash common.Hash, account Domain) common.Hash {
	return crypto.Keccak256Hash(
		crypto.Keccak256([]byte(TypedDataSignType(contentsName, contentsType))),
		contentsHash.Bytes(),
		crypto.Keccak256([]byte(account.Name)),
		crypto.Keccak256([]byte(account.Version)),
		uint64Word(account.ChainID),
		addressWord(account.VerifyingContract),
		account.Salt.Bytes(),
	)
}

// TypedDataSignDigest binds the envelope hash to appSeparator, the separator of
// the application domain that is appended to the wrapped signature. The account's
// own domain only enters through the envelope fields.
func TypedDataSignDigest(contentsName, contentsType string, contentsHash common.Hash, account Domain, appSeparator common.Hash) common.Hash {
	return TypedDataHash(appSeparator, TypedDataSignHash(contentsName, contentsType, contentsHash, account))
}

// BundleTypedDataSignDigest wraps the struct hash of a bundle notarized on chainID for an account
func BundleTypedDataSignDigest(h Hasher, chainID uint64, structHash common.Hash, account Domain) common.Hash {
	return TypedDataSignDigest(PrimaryType, h.EncodeType(), structHash, account, h.DomainSeparator(chainID))
}

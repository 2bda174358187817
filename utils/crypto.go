package utils

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/x402core/types"
)

// RecoverAddress recovers the address that produced signature over digest.
// The signature is r || s || v where v is 0/1 or the legacy 27/28. The
// result is only a claim until the caller compares it with an expected
// address. Signatures with s in the upper half of the curve order are
// rejected, so each payment has exactly one valid encoding.
func RecoverAddress(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != types.SignatureLength {
		return common.Address{}, types.NewInvalidSignatureError(
			fmt.Sprintf("signature must be %d bytes, got %d", types.SignatureLength, len(signature)), nil)
	}
	if len(digest) != common.HashLength {
		return common.Address{}, types.NewInvalidSignatureError(
			fmt.Sprintf("digest must be %d bytes, got %d", common.HashLength, len(digest)), nil)
	}

	recID, err := RecoveryID(types.Signature(signature).V())
	if err != nil {
		return common.Address{}, err
	}

	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if !crypto.ValidateSignatureValues(recID, r, s, true) {
		return common.Address{}, types.NewInvalidSignatureError("invalid signature values", nil)
	}

	// Copy so the caller's buffer keeps its original v.
	sig := make([]byte, types.SignatureLength)
	copy(sig, signature)
	sig[64] = recID

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, types.NewInvalidSignatureError("failed to recover public key", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// RecoveryID normalizes the v byte of a signature to 0 or 1.
func RecoveryID(v byte) (byte, error) {
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return 0, types.NewInvalidSignatureError("invalid recovery id", nil)
	}
	return v, nil
}

// PrivateKeyFromHex creates a private key from hex string
func PrivateKeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	// Remove 0x prefix if present
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")

	return crypto.HexToECDSA(hexKey)
}

// AddressFromPrivateKey derives the Ethereum address from a private key
func AddressFromPrivateKey(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// SignHash signs a 32-byte digest and returns r || s || v with v in the
// legacy 27/28 form.
func SignHash(hash []byte, privateKey *ecdsa.PrivateKey) (types.Signature, error) {
	signature, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}
	signature[64] += 27

	return signature, nil
}

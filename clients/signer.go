package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
)

// DefaultKeyEnv is the environment variable read by LocalSignerFromEnv.
const DefaultKeyEnv = "X402_PRIVATE_KEY"

// Signer produces payment signatures. Implementations backed by a KMS or
// hardware wallet never expose the key; only signing and the address are
// part of the contract.
type Signer interface {
	Address() common.Address
	// SignPayment returns a 65-byte r || s || v signature over the
	// payload's MessageHash, with v in {27, 28}.
	SignPayment(ctx context.Context, payload *types.PaymentPayload) (types.Signature, error)
}

var _ Signer = (*LocalSigner)(nil)

// LocalSigner signs with an in-memory private key. Intended for
// development and tests.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner creates a signer from a hex private key, with or without
// the 0x prefix.
func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := utils.PrivateKeyFromHex(hexKey)
	if err != nil {
		return nil, &types.X402Error{
			Code:    ErrSignerUnavailable,
			Message: "invalid private key",
			Err:     err,
		}
	}
	return newLocalSigner(key), nil
}

// LocalSignerFromEnv reads the private key from envVar, or from
// DefaultKeyEnv when envVar is empty.
func LocalSignerFromEnv(envVar string) (*LocalSigner, error) {
	if envVar == "" {
		envVar = DefaultKeyEnv
	}
	hexKey := strings.TrimSpace(os.Getenv(envVar))
	if hexKey == "" {
		return nil, &types.X402Error{
			Code:    ErrSignerUnavailable,
			Message: fmt.Sprintf("environment variable %s is not set", envVar),
		}
	}
	return NewLocalSigner(hexKey)
}

// LocalSignerFromKeystore decrypts a go-ethereum keystore JSON file.
func LocalSignerFromKeystore(path, password string) (*LocalSigner, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.X402Error{Code: ErrSignerUnavailable, Message: "failed to read keystore", Err: err}
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, &types.X402Error{Code: ErrSignerUnavailable, Message: "failed to decrypt keystore", Err: err}
	}
	return newLocalSigner(key.PrivateKey), nil
}

// GenerateLocalSigner creates a signer with a fresh random key.
func GenerateLocalSigner() (*LocalSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, &types.X402Error{Code: ErrSignerUnavailable, Message: "failed to generate key", Err: err}
	}
	return newLocalSigner(key), nil
}

func newLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key, address: utils.AddressFromPrivateKey(key)}
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignPayment signs payload. The payload's payer must be this signer.
func (s *LocalSigner) SignPayment(ctx context.Context, payload *types.PaymentPayload) (types.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, &types.X402Error{Code: types.ErrInvalidPayload, Message: "Invalid payload: nil payment payload"}
	}
	if payload.Payer != s.address {
		return nil, &types.X402Error{
			Code:    ErrPayerMismatch,
			Message: fmt.Sprintf("payload payer %s is not the signer %s", payload.Payer.Hex(), s.address.Hex()),
		}
	}

	hash := payload.MessageHash()
	return utils.SignHash(hash.Bytes(), s.key)
}

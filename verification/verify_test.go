package verification

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
)

const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testPayer      = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testRecipient  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testNow        = int64(1700000000)
)

func testRequirements() *types.PaymentRequirements {
	return &types.PaymentRequirements{
		Amount:    types.NewAmount(1000000),
		Recipient: common.HexToAddress(testRecipient),
		Network:   types.NetworkBase,
		Resource:  "/api/data",
	}
}

func testPayload() types.PaymentPayload {
	return types.PaymentPayload{
		Amount:    types.NewAmount(1000000),
		Recipient: common.HexToAddress(testRecipient),
		Payer:     common.HexToAddress(testPayer),
		ChainID:   types.ChainIDBase,
		Resource:  "/api/data",
		Nonce:     42,
		ExpiresAt: uint64(testNow + 300),
	}
}

func sign(t *testing.T, p types.PaymentPayload) *types.SignedPayment {
	t.Helper()
	key, err := utils.PrivateKeyFromHex(testPrivateKey)
	require.NoError(t, err)

	hash := p.MessageHash()
	sig, err := utils.SignHash(hash.Bytes(), key)
	require.NoError(t, err)
	return &types.SignedPayment{Payment: p, Signature: sig}
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func TestVerifyPaymentValid(t *testing.T) {
	payer, err := VerifyPaymentAt(sign(t, testPayload()), testRequirements(), at(testNow))
	require.NoError(t, err)
	assert.Equal(t, testPayer, payer.Hex())
}

func TestVerifyPaymentOverpayAndExactExpiry(t *testing.T) {
	p := testPayload()
	p.Amount = types.NewAmount(2000000)
	p.ExpiresAt = uint64(testNow)

	payer, err := VerifyPaymentAt(sign(t, p), testRequirements(), at(testNow))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testPayer), payer)
}

func TestVerifyPaymentExpired(t *testing.T) {
	p := testPayload()
	p.ExpiresAt = uint64(testNow - 1)

	_, err := VerifyPaymentAt(sign(t, p), testRequirements(), at(testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindPaymentExpired))
}

func TestVerifyPaymentInsufficientAmount(t *testing.T) {
	p := testPayload()
	p.Amount = types.NewAmount(500000)

	_, err := VerifyPaymentAt(sign(t, p), testRequirements(), at(testNow))
	require.Error(t, err)

	var xe *types.X402Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, types.ErrInsufficientAmount, xe.Code)
	assert.Equal(t, types.AmountShortfall{
		Required: types.NewAmount(1000000),
		Provided: types.NewAmount(500000),
	}, xe.Data)
}

func TestVerifyPaymentAmountsBeyond64Bits(t *testing.T) {
	req := testRequirements()
	req.Amount = types.MustParseAmount("18446744073709551617") // 2^64 + 1

	p := testPayload()
	p.Amount = types.MustParseAmount("18446744073709551616") // 2^64, truncates to 0 in 64 bits
	_, err := VerifyPaymentAt(sign(t, p), req, at(testNow))
	assert.True(t, errors.Is(err, types.ErrKindInsufficientAmount))

	p.Amount = types.MustParseAmount("36893488147419103232") // 2^65
	_, err = VerifyPaymentAt(sign(t, p), req, at(testNow))
	assert.NoError(t, err)
}

func TestVerifyPaymentRecipientMismatch(t *testing.T) {
	p := testPayload()
	p.Recipient = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	_, err := VerifyPaymentAt(sign(t, p), testRequirements(), at(testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindInvalidSignature))
	assert.Contains(t, err.Error(), "recipient mismatch")
}

func TestVerifyPaymentChainMismatch(t *testing.T) {
	p := testPayload()
	p.ChainID = types.ChainIDEthereum

	_, err := VerifyPaymentAt(sign(t, p), testRequirements(), at(testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindUnsupportedNetwork))
	assert.Contains(t, err.Error(), "expected chain 8453, got 1")
}

func TestVerifyPaymentUnknownRequirementsNetwork(t *testing.T) {
	p := testPayload()
	p.ChainID = 0
	req := testRequirements()
	req.Network = ""

	_, err := VerifyPaymentAt(sign(t, p), req, at(testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindUnsupportedNetwork))
}

func TestVerifyPaymentRejectsMalleableTwin(t *testing.T) {
	signed := sign(t, testPayload())
	payer, err := VerifyPaymentAt(signed, testRequirements(), at(testNow))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testPayer), payer)

	s := new(big.Int).SetBytes(signed.Signature[32:64])
	twin := make(types.Signature, types.SignatureLength)
	copy(twin, signed.Signature)
	new(big.Int).Sub(crypto.S256().Params().N, s).FillBytes(twin[32:64])
	twin[64] ^= 1

	_, err = VerifyPaymentAt(&types.SignedPayment{Payment: signed.Payment, Signature: twin}, testRequirements(), at(testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindInvalidSignature))
}

func TestVerifyPaymentPayerMismatch(t *testing.T) {
	signed := sign(t, testPayload())
	signed.Payment.Payer = common.HexToAddress(testRecipient)

	_, err := VerifyPaymentAt(signed, testRequirements(), at(testNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrKindInvalidSignature))
}

func TestVerifyPaymentTamperedFields(t *testing.T) {
	tests := map[string]func(p *types.PaymentPayload){
		"resource": func(p *types.PaymentPayload) { p.Resource = "/api/other" },
		"nonce":    func(p *types.PaymentPayload) { p.Nonce++ },
		"expiry":   func(p *types.PaymentPayload) { p.ExpiresAt++ },
		"amount":   func(p *types.PaymentPayload) { p.Amount = types.NewAmount(1000001) },
	}

	for name, tamper := range tests {
		t.Run(name, func(t *testing.T) {
			signed := sign(t, testPayload())
			tamper(&signed.Payment)

			_, err := VerifyPaymentAt(signed, testRequirements(), at(testNow))
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrKindInvalidSignature))
		})
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	signed := sign(t, testPayload())

	signed.Signature = signed.Signature[:64]
	_, err := VerifyPaymentAt(signed, testRequirements(), at(testNow))
	assert.Contains(t, err.Error(), "65 bytes")

	signed = sign(t, testPayload())
	signed.Signature[64] = 5
	_, err = VerifyPaymentAt(signed, testRequirements(), at(testNow))
	assert.Contains(t, err.Error(), "invalid recovery id")
}

func TestVerifyPaymentCheckOrder(t *testing.T) {
	// Every check fails; expiry is reported first.
	p := testPayload()
	p.ExpiresAt = 1
	p.Amount = types.NewAmount(1)
	p.ChainID = 1
	signed := &types.SignedPayment{Payment: p, Signature: make(types.Signature, 3)}

	_, err := VerifyPaymentAt(signed, testRequirements(), at(testNow))
	assert.Equal(t, types.ErrExpiredPayment, types.Code(err))

	signed.Payment.ExpiresAt = uint64(testNow)
	_, err = VerifyPaymentAt(signed, testRequirements(), at(testNow))
	assert.Equal(t, types.ErrInsufficientAmount, types.Code(err))
}

func TestVerifyPaymentNilInputs(t *testing.T) {
	_, err := VerifyPayment(nil, testRequirements())
	assert.Equal(t, types.ErrInvalidPayload, types.Code(err))

	_, err = VerifyPayment(sign(t, testPayload()), nil)
	assert.Equal(t, types.ErrInvalidRequirements, types.Code(err))
}

func TestVerifyThroughHeaders(t *testing.T) {
	reqHeader, err := protocol.EncodeRequirements(testRequirements())
	require.NoError(t, err)
	req, err := protocol.DecodeRequirements(reqHeader)
	require.NoError(t, err)

	payHeader, err := protocol.EncodePayment(sign(t, testPayload()))
	require.NoError(t, err)

	v := NewVerifier(WithClock(func() time.Time { return at(testNow) }))
	result, err := v.VerifyHeader(context.Background(), payHeader, req)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, testPayer, result.Payer)
	assert.Equal(t, "1000000", result.Amount)
	assert.Equal(t, "base", result.Network)
	assert.Equal(t, "/api/data", result.Resource)
}

func TestVerifierRejections(t *testing.T) {
	v := NewVerifier(WithClock(func() time.Time { return at(testNow + 301) }))

	result, err := v.Verify(context.Background(), sign(t, testPayload()), testRequirements())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsValid)
	assert.Equal(t, types.ErrExpiredPayment, result.Code)
	assert.Equal(t, "Payment expired", result.InvalidReason)

	bad := base64.StdEncoding.EncodeToString([]byte("{"))
	result, err = v.VerifyHeader(context.Background(), bad, testRequirements())
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidHeader, result.Code)
}

func TestBatchVerify(t *testing.T) {
	v := NewVerifier(WithClock(func() time.Time { return at(testNow) }))

	short := testPayload()
	short.Amount = types.NewAmount(1)

	reqs := []Request{
		{Payment: sign(t, testPayload()), Requirements: testRequirements()},
		{Payment: sign(t, short), Requirements: testRequirements()},
		{Payment: nil, Requirements: testRequirements()},
		{Payment: sign(t, testPayload()), Requirements: testRequirements()},
	}

	results, err := v.BatchVerify(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].IsValid)
	assert.Equal(t, types.ErrInsufficientAmount, results[1].Code)
	assert.Equal(t, types.ErrInvalidPayload, results[2].Code)
	assert.True(t, results[3].IsValid)
}

func TestBatchVerifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewVerifier().BatchVerify(ctx, []Request{
		{Payment: sign(t, testPayload()), Requirements: testRequirements()},
	})
	// Either the collector or the worker observes the cancellation first.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, results)
	} else {
		assert.False(t, results[0].IsValid)
	}
}

func TestVerifierConcurrentUse(t *testing.T) {
	v := NewVerifier(WithClock(func() time.Time { return at(testNow) }))
	signed := sign(t, testPayload())
	req := testRequirements()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := v.Verify(context.Background(), signed, req)
			assert.NoError(t, err)
			assert.True(t, result.IsValid)
		}()
	}
	wg.Wait()
}

package txbuilder

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-test/deep"
	"github.com/pkg/errors"

	"github.com/certanchor/issuer/wallet"
)

// newKeyAddress generates a fresh key and its P2PKH address and locking
// script on the network.
func newKeyAddress(t *testing.T, params *chaincfg.Params) (*btcutil.WIF, string, []byte) {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key : %s", err)
	}

	wif, err := btcutil.NewWIF(key, params, true)
	if err != nil {
		t.Fatalf("encode wif : %s", err)
	}

	address, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(wif.SerializePubKey()), params)
	if err != nil {
		t.Fatalf("create address : %s", err)
	}

	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		t.Fatalf("create script : %s", err)
	}

	return wif, address.EncodeAddress(), script
}

func newFundingInput(t *testing.T, script []byte, address string, value uint64) wallet.FundingInput {
	t.Helper()

	hash, err := chainhash.NewHashFromStr(
		"aa00000000000000000000000000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("create hash : %s", err)
	}

	return wallet.FundingInput{
		OutPoint: wire.OutPoint{Hash: *hash, Index: 1},
		Address:  address,
		PkScript: script,
		Value:    value,
	}
}

func TestBuild(t *testing.T) {
	params := &chaincfg.MainNetParams

	_, issuingAddress, issuingScript := newKeyAddress(t, params)
	_, recipientAddress, _ := newKeyAddress(t, params)
	_, revocationAddress, _ := newKeyAddress(t, params)

	cost := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))
	commitment := sha256.Sum256([]byte("certificate"))

	input := newFundingInput(t, issuingScript, issuingAddress, cost.Total+5000)
	pairs := []RecipientPair{{Recipient: recipientAddress, Revocation: revocationAddress}}

	tx, err := Build(input, commitment[:], issuingAddress, cost, pairs, params)
	if err != nil {
		t.Fatalf("build : %s", err)
	}

	if len(tx.TxIn) != 1 {
		t.Fatalf("inputs : got %d, want 1", len(tx.TxIn))
	}
	if tx.TxIn[0].PreviousOutPoint != input.OutPoint {
		t.Errorf("outpoint : got %v, want %v", tx.TxIn[0].PreviousOutPoint, input.OutPoint)
	}
	if tx.TxIn[0].SignatureScript != nil {
		t.Errorf("unsigned tx has a signature script")
	}

	// recipient pair, change, commitment
	if len(tx.TxOut) != 4 {
		t.Fatalf("outputs : got %d, want 4", len(tx.TxOut))
	}

	for index := 0; index < 2; index++ {
		if tx.TxOut[index].Value != int64(cost.MinPerOutput) {
			t.Errorf("output %d value : got %d, want %d", index, tx.TxOut[index].Value,
				cost.MinPerOutput)
		}
	}

	if tx.TxOut[2].Value != 5000 {
		t.Errorf("change value : got %d, want 5000", tx.TxOut[2].Value)
	}

	// The fee is implicit: input value minus output total. The budget reserves
	// dust for outputs that may not materialize, so the implicit fee is at
	// least the estimated fee.
	outputTotal := int64(0)
	for _, output := range tx.TxOut {
		outputTotal += output.Value
	}
	impliedFee := int64(input.Value) - outputTotal
	if impliedFee < int64(cost.Fee) {
		t.Errorf("implied fee : got %d, want at least %d", impliedFee, cost.Fee)
	}

	last := tx.TxOut[len(tx.TxOut)-1]
	if last.Value != 0 {
		t.Errorf("commitment value : got %d, want 0", last.Value)
	}
	if txscript.GetScriptClass(last.PkScript) != txscript.NullDataTy {
		t.Errorf("commitment class : got %v, want %v",
			txscript.GetScriptClass(last.PkScript), txscript.NullDataTy)
	}
}

func TestBuild_NoChangeWhenExact(t *testing.T) {
	params := &chaincfg.MainNetParams

	_, issuingAddress, issuingScript := newKeyAddress(t, params)
	_, recipientAddress, _ := newKeyAddress(t, params)
	_, revocationAddress, _ := newKeyAddress(t, params)

	cost := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))
	commitment := sha256.Sum256([]byte("certificate"))

	input := newFundingInput(t, issuingScript, issuingAddress, cost.Total)
	pairs := []RecipientPair{{Recipient: recipientAddress, Revocation: revocationAddress}}

	tx, err := Build(input, commitment[:], issuingAddress, cost, pairs, params)
	if err != nil {
		t.Fatalf("build : %s", err)
	}

	// recipient pair and commitment only, no change output
	if len(tx.TxOut) != 3 {
		t.Fatalf("outputs : got %d, want 3", len(tx.TxOut))
	}
}

func TestBuild_InsufficientValue(t *testing.T) {
	params := &chaincfg.MainNetParams

	_, issuingAddress, issuingScript := newKeyAddress(t, params)
	_, recipientAddress, _ := newKeyAddress(t, params)
	_, revocationAddress, _ := newKeyAddress(t, params)

	cost := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))
	commitment := sha256.Sum256([]byte("certificate"))

	input := newFundingInput(t, issuingScript, issuingAddress, cost.Total-1)
	pairs := []RecipientPair{{Recipient: recipientAddress, Revocation: revocationAddress}}

	_, err := Build(input, commitment[:], issuingAddress, cost, pairs, params)
	if errors.Cause(err) != ErrInsufficientValue {
		t.Fatalf("got %v, want %v", err, ErrInsufficientValue)
	}
}

func TestBuild_InvalidAddress(t *testing.T) {
	params := &chaincfg.MainNetParams

	_, issuingAddress, issuingScript := newKeyAddress(t, params)
	_, revocationAddress, _ := newKeyAddress(t, params)

	cost := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))
	commitment := sha256.Sum256([]byte("certificate"))

	input := newFundingInput(t, issuingScript, issuingAddress, cost.Total)
	pairs := []RecipientPair{{Recipient: "not an address", Revocation: revocationAddress}}

	_, err := Build(input, commitment[:], issuingAddress, cost, pairs, params)
	if errors.Cause(err) != ErrInvalidAddress {
		t.Fatalf("got %v, want %v", err, ErrInvalidAddress)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	params := &chaincfg.MainNetParams

	_, issuingAddress, issuingScript := newKeyAddress(t, params)
	_, recipientAddress, _ := newKeyAddress(t, params)
	_, revocationAddress, _ := newKeyAddress(t, params)

	cost := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))
	commitment := sha256.Sum256([]byte("certificate"))

	input := newFundingInput(t, issuingScript, issuingAddress, cost.Total+100)
	pairs := []RecipientPair{{Recipient: recipientAddress, Revocation: revocationAddress}}

	tx, err := Build(input, commitment[:], issuingAddress, cost, pairs, params)
	if err != nil {
		t.Fatalf("build : %s", err)
	}

	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize : %s", err)
	}

	parsed, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize : %s", err)
	}

	if diff := deep.Equal(parsed.TxOut, tx.TxOut); diff != nil {
		t.Errorf("outputs differ : %v", diff)
	}
	if parsed.TxIn[0].PreviousOutPoint != tx.TxIn[0].PreviousOutPoint {
		t.Errorf("outpoint differs")
	}
}

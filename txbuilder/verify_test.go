package txbuilder

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

func buildCommitted(t *testing.T, commitment []byte) []byte {
	t.Helper()

	params := &chaincfg.MainNetParams

	_, issuingAddress, issuingScript := newKeyAddress(t, params)
	_, recipientAddress, _ := newKeyAddress(t, params)
	_, revocationAddress, _ := newKeyAddress(t, params)

	cost := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))
	input := newFundingInput(t, issuingScript, issuingAddress, cost.Total)
	pairs := []RecipientPair{{Recipient: recipientAddress, Revocation: revocationAddress}}

	tx, err := Build(input, commitment, issuingAddress, cost, pairs, params)
	if err != nil {
		t.Fatalf("build : %s", err)
	}

	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize : %s", err)
	}

	return raw
}

func TestCommitmentPayload(t *testing.T) {
	commitment := sha256.Sum256([]byte("certificate"))
	raw := buildCommitted(t, commitment[:])

	payload, err := CommitmentPayload(raw)
	if err != nil {
		t.Fatalf("payload : %s", err)
	}

	if !bytes.Equal(payload, commitment[:]) {
		t.Errorf("got %x, want %x", payload, commitment[:])
	}
}

func TestCommitmentPayload_None(t *testing.T) {
	// A transaction whose last output is a standard payment carries no
	// commitment.
	params := &chaincfg.MainNetParams
	_, address, script := newKeyAddress(t, params)

	tx := wire.NewMsgTx(DefaultVersion)
	input := newFundingInput(t, script, address, 50000)
	tx.AddTxIn(wire.NewTxIn(&input.OutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(40000, script))

	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize : %s", err)
	}

	_, err = CommitmentPayload(raw)
	if errors.Cause(err) != ErrNoCommitment {
		t.Fatalf("got %v, want %v", err, ErrNoCommitment)
	}
}

func TestVerifyCommitment(t *testing.T) {
	commitment := sha256.Sum256([]byte("certificate"))
	raw := buildCommitted(t, commitment[:])

	if err := VerifyCommitment(raw, commitment[:]); err != nil {
		t.Errorf("matching payload : %s", err)
	}

	other := sha256.Sum256([]byte("different certificate"))
	err := VerifyCommitment(raw, other[:])
	if errors.Cause(err) != ErrCommitmentMismatch {
		t.Errorf("got %v, want %v", err, ErrCommitmentMismatch)
	}
}

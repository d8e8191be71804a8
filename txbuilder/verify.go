package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

var (
	ErrNoCommitment       = errors.New("No Commitment Output")
	ErrCommitmentMismatch = errors.New("Commitment Mismatch")
)

// CommitmentPayload re-parses a serialized transaction and extracts the
// payload of its commitment output. The commitment output is always the last
// output of an issuing transaction.
func CommitmentPayload(raw []byte) ([]byte, error) {
	tx, err := Deserialize(raw)
	if err != nil {
		return nil, errors.Wrap(err, "deserialize")
	}

	if len(tx.TxOut) == 0 {
		return nil, ErrNoCommitment
	}

	last := tx.TxOut[len(tx.TxOut)-1]
	if txscript.GetScriptClass(last.PkScript) != txscript.NullDataTy {
		return nil, ErrNoCommitment
	}

	pushes, err := txscript.PushedData(last.PkScript)
	if err != nil {
		return nil, errors.Wrap(err, "pushed data")
	}
	if len(pushes) == 0 {
		return nil, ErrNoCommitment
	}

	return pushes[0], nil
}

// VerifyCommitment checks, from the serialized bytes alone, that the
// transaction commits to exactly the intended payload. This is a
// tamper/corruption check, not a network round trip.
func VerifyCommitment(raw, want []byte) error {
	payload, err := CommitmentPayload(raw)
	if err != nil {
		return err
	}

	if !bytes.Equal(payload, want) {
		return errors.Wrapf(ErrCommitmentMismatch, "got %x, want %x", payload, want)
	}

	return nil
}

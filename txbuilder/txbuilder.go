package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/certanchor/issuer/wallet"
	"github.com/pkg/errors"
)

// DefaultVersion is the default tx version used by Build.
const DefaultVersion = int32(1)

var (
	ErrInvalidAddress    = errors.New("Invalid Address")
	ErrInsufficientValue = errors.New("Insufficient Value")
)

// RecipientPair names the destination of one certificate: the recipient
// address and the matching revocation-capability address. Every recipient
// output is paired 1:1 with a revocation output.
type RecipientPair struct {
	Recipient  string
	Revocation string
}

// PayToAddressScript returns the P2PKH locking script paying the address.
func PayToAddressScript(address string, params *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, address)
	}

	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, address)
	}

	return script, nil
}

// RecipientOutputs creates the matched output pair for one certificate, each
// valued at the configured per-output minimum.
func RecipientOutputs(pair RecipientPair, value uint64,
	params *chaincfg.Params) ([]*wire.TxOut, error) {

	recipientScript, err := PayToAddressScript(pair.Recipient, params)
	if err != nil {
		return nil, errors.Wrap(err, "recipient")
	}

	revokeScript, err := PayToAddressScript(pair.Revocation, params)
	if err != nil {
		return nil, errors.Wrap(err, "revocation")
	}

	return []*wire.TxOut{
		wire.NewTxOut(int64(value), recipientScript),
		wire.NewTxOut(int64(value), revokeScript),
	}, nil
}

// Build assembles the unsigned issuing transaction for one certificate.
//
// The funding input is consumed whole: recipient/revocation pairs are valued
// at the per-output minimum, a change output paying changeAddress is appended
// only when the remainder is positive (a zero or negative remainder would
// create a non-relayable dust output), and the zero-value commitment output
// carrying the payload is always last. The implicit fee is the input value
// minus the output total.
func Build(input wallet.FundingInput, commitment []byte, changeAddress string,
	cost TransactionCost, pairs []RecipientPair, params *chaincfg.Params) (*wire.MsgTx, error) {

	if input.Value < cost.Total {
		return nil, errors.Wrapf(ErrInsufficientValue, "%d/%d", input.Value, cost.Total)
	}

	tx := wire.NewMsgTx(DefaultVersion)
	tx.AddTxIn(wire.NewTxIn(&input.OutPoint, nil, nil))

	for _, pair := range pairs {
		outputs, err := RecipientOutputs(pair, cost.MinPerOutput, params)
		if err != nil {
			return nil, err
		}
		for _, output := range outputs {
			tx.AddTxOut(output)
		}
	}

	// Send change back to the funding address.
	if change := input.Value - cost.Total; change > 0 {
		changeScript, err := PayToAddressScript(changeAddress, params)
		if err != nil {
			return nil, errors.Wrap(err, "change")
		}
		tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
	}

	commitmentScript, err := txscript.NullDataScript(commitment)
	if err != nil {
		return nil, errors.Wrap(err, "commitment script")
	}
	tx.AddTxOut(wire.NewTxOut(0, commitmentScript))

	return tx, nil
}

// Serialize returns the byte payload of the transaction.
func Serialize(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize parses a serialized transaction.
func Deserialize(raw []byte) (*wire.MsgTx, error) {
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return tx, nil
}

package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/certanchor/issuer/wallet"
	"github.com/pkg/errors"
)

var (
	// ErrKeyFormat is returned when key material can't be decoded or its
	// network version prefix is outside the allowed set.
	ErrKeyFormat = errors.New("Bad Key Format")

	// ErrWrongKey is returned when the funding input's locking script is not
	// spendable by the supplied key. It signals a configuration or funding
	// mismatch and is never retried.
	ErrWrongKey = errors.New("Wrong Key For Input")
)

// SpendingKey decodes WIF key material. When allowed networks are specified,
// a key encoded for any other network fails with ErrKeyFormat.
func SpendingKey(wif string, allowed []*chaincfg.Params) (*btcutil.WIF, error) {
	key, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, errors.Wrap(ErrKeyFormat, err.Error())
	}

	if len(allowed) > 0 {
		match := false
		for _, params := range allowed {
			if key.IsForNet(params) {
				match = true
				break
			}
		}
		if !match {
			return nil, errors.Wrap(ErrKeyFormat, "key not valid for allowed networks")
		}
	}

	return key, nil
}

// SignTx signs every input of the serialized unsigned transaction with the
// WIF key, binding the signatures to the funding input's declared locking
// script and value. The signed serialized transaction is returned; the
// unsigned bytes are never modified.
//
// Callers are responsible for the air gap: connectivity must be verified off
// for the duration of this call.
func SignTx(rawUnsigned []byte, input wallet.FundingInput, wif string,
	allowed []*chaincfg.Params, params *chaincfg.Params) ([]byte, error) {

	key, err := SpendingKey(wif, allowed)
	if err != nil {
		return nil, err
	}

	if err := checkKeyForScript(key, input.PkScript, params); err != nil {
		return nil, err
	}

	tx, err := Deserialize(rawUnsigned)
	if err != nil {
		return nil, errors.Wrap(err, "deserialize")
	}

	for index := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(tx, index, input.PkScript,
			txscript.SigHashAll, key.PrivKey, key.CompressPubKey)
		if err != nil {
			return nil, errors.Wrap(ErrWrongKey, err.Error())
		}
		tx.TxIn[index].SignatureScript = sigScript
	}

	return Serialize(tx)
}

// VerifySignatures re-parses the signed bytes and independently executes each
// input's unlocking script against the funding input's locking script and
// value.
func VerifySignatures(rawSigned []byte, input wallet.FundingInput) error {
	tx, err := Deserialize(rawSigned)
	if err != nil {
		return errors.Wrap(err, "deserialize")
	}

	prevFetcher := txscript.NewCannedPrevOutputFetcher(input.PkScript, int64(input.Value))
	hashCache := txscript.NewTxSigHashes(tx, prevFetcher)

	for index := range tx.TxIn {
		vm, err := txscript.NewEngine(input.PkScript, tx, index,
			txscript.StandardVerifyFlags, nil, hashCache, int64(input.Value), prevFetcher)
		if err != nil {
			return errors.Wrap(err, "script engine")
		}

		if err := vm.Execute(); err != nil {
			return errors.Wrap(ErrWrongKey, err.Error())
		}
	}

	return nil
}

// checkKeyForScript verifies the key can spend the P2PKH locking script.
func checkKeyForScript(key *btcutil.WIF, pkScript []byte, params *chaincfg.Params) error {
	class, addresses, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil {
		return errors.Wrap(ErrWrongKey, err.Error())
	}

	if class != txscript.PubKeyHashTy || len(addresses) != 1 {
		return errors.Wrap(ErrWrongKey, "not a P2PKH locking script")
	}

	keyHash := btcutil.Hash160(key.SerializePubKey())
	if !bytes.Equal(addresses[0].ScriptAddress(), keyHash) {
		return errors.Wrap(ErrWrongKey, "locking script pays a different key")
	}

	return nil
}

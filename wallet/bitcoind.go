package wallet

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/certanchor/issuer/rpcnode"
	"github.com/pkg/errors"
)

// BitcoindConnector funds issuance from a locally configured bitcoind node.
// Only balance and unspent lookups are meaningful for a node wallet; the
// merchant style operations return ErrUnsupported.
type BitcoindConnector struct {
	node   *rpcnode.Node
	params *chaincfg.Params
}

func NewBitcoindConnector(node *rpcnode.Node, params *chaincfg.Params) *BitcoindConnector {
	return &BitcoindConnector{node: node, params: params}
}

func (c *BitcoindConnector) Login(ctx context.Context) error {
	return nil // authentication is part of every RPC call
}

func (c *BitcoindConnector) Balance(ctx context.Context, address string,
	confirmations int) (uint64, error) {

	decoded, err := btcutil.DecodeAddress(address, c.params)
	if err != nil {
		return 0, errors.Wrap(err, "decode address")
	}

	unspent, err := c.node.ListUnspent(ctx, decoded, confirmations)
	if err != nil {
		return 0, err
	}

	balance := uint64(0)
	for _, u := range unspent {
		amount, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return 0, errors.Wrap(err, "amount")
		}
		balance += uint64(amount)
	}

	return balance, nil
}

func (c *BitcoindConnector) CreateTemporaryAddress(ctx context.Context,
	label string) (string, error) {
	return "", ErrUnsupported
}

func (c *BitcoindConnector) UnspentOutputs(ctx context.Context,
	address string) ([]FundingInput, error) {

	decoded, err := btcutil.DecodeAddress(address, c.params)
	if err != nil {
		return nil, errors.Wrap(err, "decode address")
	}

	unspent, err := c.node.ListUnspent(ctx, decoded, 1)
	if err != nil {
		return nil, err
	}

	result := make([]FundingInput, 0, len(unspent))
	for _, u := range unspent {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, errors.Wrap(err, "txid")
		}

		script, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return nil, errors.Wrap(err, "script")
		}

		amount, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return nil, errors.Wrap(err, "amount")
		}

		result = append(result, FundingInput{
			OutPoint: wire.OutPoint{Hash: *hash, Index: u.Vout},
			Address:  u.Address,
			PkScript: script,
			Value:    uint64(amount),
		})
	}

	return result, nil
}

func (c *BitcoindConnector) Archive(ctx context.Context, address string) error {
	return ErrUnsupported
}

func (c *BitcoindConnector) Pay(ctx context.Context, fromAddress, toAddress string,
	amount, fee uint64) error {
	return ErrUnsupported
}

func (c *BitcoindConnector) SendToMany(ctx context.Context, fromAddress string,
	recipients map[string]uint64, fee uint64) error {
	return ErrUnsupported
}

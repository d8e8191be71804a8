package rpcnode

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/tokenized/logger"
)

// Node wraps JSON-RPC calls against a locally configured bitcoind process. It
// is shared by the bitcoind wallet connector and the bitcoind broadcaster.
type Node struct {
	client *rpcclient.Client
	Config *Config
}

const maxConfirmations = 9999999

// NewNode returns a new instance of an RPC node.
func NewNode(config *Config) (*Node, error) {
	rpcConfig := rpcclient.ConnConfig{
		HTTPPostMode: true,
		DisableTLS:   true,
		Host:         config.Host,
		User:         config.Username,
		Pass:         config.Password,
	}

	client, err := rpcclient.New(&rpcConfig, nil)
	if err != nil {
		return nil, err
	}

	if config.RetryDelay == 0 { // default to 1/2 second delay
		config.RetryDelay = 500
	}

	n := &Node{
		client: client,
		Config: config,
	}

	return n, nil
}

// ListUnspent requests the unspent outputs paying the specified address with at
// least minConf confirmations.
func (n *Node) ListUnspent(ctx context.Context, address btcutil.Address,
	minConf int) ([]btcjson.ListUnspentResult, error) {

	var err error
	var results []btcjson.ListUnspentResult
	for i := 0; i <= n.Config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(n.Config.RetryDelay) * time.Millisecond)
		}

		results, err = n.client.ListUnspentMinMaxAddresses(minConf, maxConfirmations,
			[]btcutil.Address{address})
		if err == nil {
			return results, nil
		}

		logger.Error(ctx, "RPCCallFailed ListUnspent %s : %v", address.String(), err)
	}

	logger.Error(ctx, "RPCCallAborted ListUnspent %s : %v", address.String(), err)
	return nil, errors.Wrap(err, fmt.Sprintf("list unspent %s", address.String()))
}

// SendRawTransaction broadcasts a transaction to the network through the node.
func (n *Node) SendRawTransaction(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	var err error
	var hash *chainhash.Hash
	for i := 0; i <= n.Config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(n.Config.RetryDelay) * time.Millisecond)
		}

		hash, err = n.client.SendRawTransaction(tx, false)
		if err == nil {
			logger.InfoWithFields(ctx, []logger.Field{
				logger.Stringer("txid", hash),
			}, "Sent raw transaction")
			return hash, nil
		}

		logger.Error(ctx, "RPCCallFailed SendRawTransaction %s : %v", tx.TxHash().String(), err)
	}

	logger.Error(ctx, "RPCCallAborted SendRawTransaction %s : %v", tx.TxHash().String(), err)
	return nil, errors.Wrap(err, fmt.Sprintf("send raw transaction %s", tx.TxHash().String()))
}

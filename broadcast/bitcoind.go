package broadcast

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/certanchor/issuer/rpcnode"
	"github.com/pkg/errors"
)

// BitcoindBroadcaster submits through a locally configured node's
// sendrawtransaction RPC.
type BitcoindBroadcaster struct {
	node *rpcnode.Node
}

func NewBitcoindBroadcaster(node *rpcnode.Node) *BitcoindBroadcaster {
	return &BitcoindBroadcaster{node: node}
}

func (b *BitcoindBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return "", errors.Wrap(err, "deserialize")
	}

	hash, err := b.node.SendRawTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	return hash.String(), nil
}

package broadcast

import (
	"context"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
)

// InsightBroadcaster relays through the Insight API.
type InsightBroadcaster struct {
	url string
}

func NewInsightBroadcaster(url string) *InsightBroadcaster {
	return &InsightBroadcaster{url: url}
}

type insightRequest struct {
	RawTx string `json:"rawtx"`
}

type insightResponse struct {
	TxID string `json:"txid"`
}

func (b *InsightBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	response := &insightResponse{}
	err := post(ctx, b.url, insightRequest{RawTx: hex.EncodeToString(rawTx)}, response)
	if err != nil {
		return "", errors.Wrap(err, "insight")
	}

	return response.TxID, nil
}

// BlockrBroadcaster relays through the blockr.io API.
type BlockrBroadcaster struct {
	url string
}

func NewBlockrBroadcaster(url string) *BlockrBroadcaster {
	return &BlockrBroadcaster{url: url}
}

type blockrRequest struct {
	Hex string `json:"hex"`
}

type blockrResponse struct {
	Data string `json:"data"`
}

func (b *BlockrBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	response := &blockrResponse{}
	err := post(ctx, b.url, blockrRequest{Hex: hex.EncodeToString(rawTx)}, response)
	if err != nil {
		return "", errors.Wrap(err, "blockr")
	}

	return response.Data, nil
}

// NoopBroadcaster logs and drops the transaction. Used for dry runs and
// manual broadcast workflows; the persisted signed artifact is the recovery
// path.
type NoopBroadcaster struct{}

func NewNoopBroadcaster() *NoopBroadcaster {
	return &NoopBroadcaster{}
}

func (b *NoopBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	logger.WarnWithFields(ctx, []logger.Field{
		logger.String("raw_tx", hex.EncodeToString(rawTx)),
	}, "Configured not to broadcast, no txid will be created")

	return "", nil
}

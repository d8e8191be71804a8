package broadcast

import (
	"context"
	"fmt"

	"github.com/certanchor/issuer/rpcnode"
	"github.com/pkg/errors"
)

var (
	// ErrUnrecognizedBroadcaster is returned by NewBroadcaster for an unknown
	// broadcaster type. It is fatal at startup and never recovered.
	ErrUnrecognizedBroadcaster = errors.New("Unrecognized Broadcaster")

	ErrTimeout = errors.New("Timed Out")
)

// Broadcaster relays a signed transaction to the network. Success returns the
// network assigned transaction id. The noop variant returns an empty id with
// no error; the caller decides whether a failure is fatal.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (string, error)
}

// HTTPError carries a relay service's non-success status and response body.
type HTTPError struct {
	Status  int
	Message string
}

func (err HTTPError) Error() string {
	if len(err.Message) > 0 {
		return fmt.Sprintf("HTTP Status %d : %s", err.Status, err.Message)
	}

	return fmt.Sprintf("HTTP Status %d", err.Status)
}

type Config struct {
	BroadcasterType string `default:"bitcoind" envconfig:"BROADCASTER" json:"broadcaster"`
	InsightURL      string `default:"https://insight.bitpay.com/api/tx/send" envconfig:"INSIGHT_URL" json:"insight_url"`
	BlockrURL       string `default:"http://btc.blockr.io/api/v1/tx/push" envconfig:"BLOCKR_URL" json:"blockr_url"`
}

// NewBroadcaster resolves the broadcaster variant from the configured type.
// Resolved once at startup; an unknown value fails fast.
func NewBroadcaster(cfg Config, node *rpcnode.Node) (Broadcaster, error) {
	switch cfg.BroadcasterType {
	case "insight.bitpay.com":
		return NewInsightBroadcaster(cfg.InsightURL), nil
	case "btc.blockr.io":
		return NewBlockrBroadcaster(cfg.BlockrURL), nil
	case "bitcoind":
		return NewBitcoindBroadcaster(node), nil
	case "noop":
		return NewNoopBroadcaster(), nil
	}

	return nil, errors.Wrap(ErrUnrecognizedBroadcaster, cfg.BroadcasterType)
}

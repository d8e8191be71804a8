package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/certanchor/issuer/rpcnode"
	"github.com/pkg/errors"
)

var (
	// ErrUnrecognizedConnector is returned by NewConnector for an unknown
	// connector type. It is fatal at startup and never recovered.
	ErrUnrecognizedConnector = errors.New("Unrecognized Connector")

	// ErrUnsupported is returned by operations the backend has no meaningful
	// support for, instead of silently succeeding.
	ErrUnsupported = errors.New("Operation Not Supported")

	ErrTimeout = errors.New("Timed Out")
)

// FundingInput references a previously received, unspent output that the
// issuer controls. It is fetched fresh per issuance run and consumed exactly
// once per transaction attempt.
type FundingInput struct {
	OutPoint wire.OutPoint `json:"outpoint"`
	Address  string        `json:"address"`
	PkScript []byte        `json:"pk_script"`
	Value    uint64        `json:"value"`
}

func (f FundingInput) ID() string {
	return fmt.Sprintf("%s:%d", f.OutPoint.Hash.String(), f.OutPoint.Index)
}

// Connector abstracts a wallet backend's balance, funding, and payment
// operations. Each variant implements the subset its backend supports and
// returns ErrUnsupported for the rest.
type Connector interface {
	// Login authenticates against the backend when it requires a session.
	Login(ctx context.Context) error

	// Balance returns the confirmed balance of the address in satoshis.
	Balance(ctx context.Context, address string, confirmations int) (uint64, error)

	// CreateTemporaryAddress creates a new receive address under the label.
	CreateTemporaryAddress(ctx context.Context, label string) (string, error)

	// UnspentOutputs returns the spendable outputs paying the address.
	UnspentOutputs(ctx context.Context, address string) ([]FundingInput, error)

	// Archive removes a temporary address from the active wallet.
	Archive(ctx context.Context, address string) error

	// Pay sends amount satoshis from one wallet address to another.
	Pay(ctx context.Context, fromAddress, toAddress string, amount, fee uint64) error

	// SendToMany pays each recipient address its amount in one batched send.
	SendToMany(ctx context.Context, fromAddress string, recipients map[string]uint64,
		fee uint64) error
}

type Config struct {
	ConnectorType string `default:"bitcoind" envconfig:"WALLET_CONNECTOR" json:"connector"`

	// blockchain.info merchant API credentials. Embedded in request URLs.
	GUID     string `envconfig:"WALLET_GUID" json:"guid"`
	Password string `envconfig:"WALLET_PASSWORD" masked:"true" json:"password"`
	APIKey   string `envconfig:"WALLET_API_KEY" masked:"true" json:"api_key"`

	// MerchantURL is the authenticated merchant API endpoint, normally a
	// localhost service proxying blockchain.info.
	MerchantURL string `default:"http://localhost:3000" envconfig:"WALLET_MERCHANT_URL" json:"merchant_url"`

	// UnspentURL is the public unspent output endpoint. It is separate because
	// it is not accessible through the localhost merchant proxy.
	UnspentURL string `default:"https://blockchain.info/unspent" envconfig:"WALLET_UNSPENT_URL" json:"unspent_url"`
}

// NewConnector resolves the connector variant from the configured type. The
// type is resolved once at startup and an unknown value fails fast.
func NewConnector(cfg Config, node *rpcnode.Node, params *chaincfg.Params) (Connector, error) {
	switch cfg.ConnectorType {
	case "blockchain.info":
		return NewBlockchainInfoConnector(cfg), nil
	case "bitcoind":
		return NewBitcoindConnector(node, params), nil
	}

	return nil, errors.Wrap(ErrUnrecognizedConnector, cfg.ConnectorType)
}

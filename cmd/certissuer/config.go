package main

import (
	"github.com/certanchor/issuer/broadcast"
	"github.com/certanchor/issuer/issuer"
	"github.com/certanchor/issuer/rpcnode"
	"github.com/certanchor/issuer/storage"
	"github.com/certanchor/issuer/wallet"
)

type Config struct {
	Network string `default:"mainnet" envconfig:"BITCOIN_NETWORK" json:"network"`

	// BatchPath is a JSON manifest of the certificates to anchor. Certificate
	// generation and hashing happen upstream.
	BatchPath string `default:"./batch.json" envconfig:"BATCH_PATH" json:"batch_path"`

	// Air gap checks around signing.
	ProbeURL       string `default:"http://google.com" envconfig:"PROBE_URL" json:"probe_url"`
	ProbeInterval  int    `default:"10" envconfig:"PROBE_INTERVAL_SECONDS" json:"probe_interval_seconds"`
	SkipWifiCheck  bool   `default:"false" envconfig:"SKIP_WIFI_CHECK" json:"skip_wifi_check"`

	Issuer      issuer.Config    `json:"issuer"`
	Wallet      wallet.Config    `json:"wallet"`
	Broadcaster broadcast.Config `json:"broadcaster"`
	RPC         rpcnode.Config   `json:"rpc"`
	Storage     storage.Config   `json:"storage"`
}

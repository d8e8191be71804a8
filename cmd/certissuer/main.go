package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/tokenized/config"
	"github.com/tokenized/logger"
	"github.com/tokenized/threads"

	"github.com/certanchor/issuer/airgap"
	"github.com/certanchor/issuer/broadcast"
	"github.com/certanchor/issuer/issuer"
	"github.com/certanchor/issuer/rpcnode"
	"github.com/certanchor/issuer/storage"
	"github.com/certanchor/issuer/wallet"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
)

func main() {
	ctx := logger.ContextWithLogger(context.Background(), true, true, "")

	cfg := &Config{}
	if err := config.LoadConfig(ctx, cfg); err != nil {
		logger.Fatal(ctx, "Failed to load config : %s", err)
	}

	maskedConfig, err := config.MarshalJSONMaskedRaw(cfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to marshal config : %s", err)
	}

	logger.Info(ctx, "Build %v (%v)", buildVersion, buildDate)
	logger.InfoWithFields(ctx, []logger.Field{
		logger.JSON("config", maskedConfig),
	}, "Config")

	params := chainParams(cfg.Network)
	if params == nil {
		logger.Fatal(ctx, "Unknown network : %s", cfg.Network)
	}

	store, err := storage.CreateStorage(cfg.Storage)
	if err != nil {
		logger.Fatal(ctx, "Failed to create storage : %s", err)
	}

	// The node is only dialed when a component is configured to use it.
	var node *rpcnode.Node
	if cfg.Wallet.ConnectorType == "bitcoind" || cfg.Broadcaster.BroadcasterType == "bitcoind" {
		node, err = rpcnode.NewNode(&cfg.RPC)
		if err != nil {
			logger.Fatal(ctx, "Failed to create rpc node : %s", err)
		}
	}

	connector, err := wallet.NewConnector(cfg.Wallet, node, params)
	if err != nil {
		logger.Fatal(ctx, "Failed to create wallet connector : %s", err)
	}

	broadcaster, err := broadcast.NewBroadcaster(cfg.Broadcaster, node)
	if err != nil {
		logger.Fatal(ctx, "Failed to create broadcaster : %s", err)
	}

	checker := airgap.NewPollingChecker(airgap.HTTPProbe(cfg.ProbeURL),
		cfg.Issuer.KeyPath, time.Duration(cfg.ProbeInterval)*time.Second)
	checker.Skip = cfg.SkipWifiCheck

	certs, err := loadBatch(cfg.BatchPath)
	if err != nil {
		logger.Fatal(ctx, "Failed to load certificate batch : %s", err)
	}
	if len(certs) == 0 {
		logger.Fatal(ctx, "No certificates to issue in %s", cfg.BatchPath)
	}

	iss := issuer.NewIssuer(cfg.Issuer, params, connector, broadcaster, checker, store)

	var descriptors []*issuer.Descriptor
	issueThread := threads.NewInterruptableThread("issue batch",
		func(ctx context.Context, interrupt <-chan interface{}) error {
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				select {
				case <-interrupt:
					cancel()
				case <-runCtx.Done():
				}
			}()

			var err error
			descriptors, err = iss.IssueBatch(runCtx, certs)
			return err
		})

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	issueThread.Start(ctx)

	select {
	case <-issueThread.GetCompleteChannel():
	case sig := <-osSignals:
		logger.Info(ctx, "Received signal : %s", sig)
		issueThread.Stop(ctx)
		<-issueThread.GetCompleteChannel()
	}

	for _, d := range descriptors {
		logger.InfoWithFields(ctx, []logger.Field{
			logger.String("uid", d.UID),
			logger.Stringer("stage", d.Stage),
			logger.String("txid", d.TxID),
		}, "Certificate result")
	}

	if err := issueThread.Error(); err != nil && errors.Cause(err) != threads.Interrupted {
		logger.Fatal(ctx, "Issuing failed : %s", err)
	}

	logger.Info(ctx, "Completed")
}

func chainParams(network string) *chaincfg.Params {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams
	case "testnet":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	}

	return nil
}

type batchEntry struct {
	UID       string `json:"uid"`
	Recipient string `json:"recipient"`
	Hash      string `json:"hash"`
}

// loadBatch reads the certificate manifest: uid, recipient address, and hex
// encoded certificate hash per entry.
func loadBatch(path string) ([]issuer.Certificate, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}

	var entries []batchEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, errors.Wrap(err, "unmarshal manifest")
	}

	certs := make([]issuer.Certificate, 0, len(entries))
	for _, entry := range entries {
		hash, err := hex.DecodeString(entry.Hash)
		if err != nil {
			return nil, errors.Wrapf(err, "hash for %s", entry.UID)
		}

		certs = append(certs, issuer.Certificate{
			UID:       entry.UID,
			Recipient: entry.Recipient,
			Hash:      hash,
		})
	}

	return certs, nil
}

package issuer

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tokenized/logger"

	"github.com/certanchor/issuer/airgap"
	"github.com/certanchor/issuer/broadcast"
	"github.com/certanchor/issuer/storage"
	"github.com/certanchor/issuer/txbuilder"
	"github.com/certanchor/issuer/wallet"
)

var (
	// ErrInsufficientFunds is returned before any transaction is built when
	// the issuing address can't cover the batch cost.
	ErrInsufficientFunds = errors.New("Insufficient Funds")
)

type Config struct {
	IssuingAddress    string `envconfig:"ISSUING_ADDRESS" json:"issuing_address"`
	RevocationAddress string `envconfig:"REVOCATION_ADDRESS" json:"revocation_address"`

	// Fee policy, all in satoshis. The per-transaction minimum exists because
	// a flat fee under-prices larger transactions.
	SatoshiPerByte uint64 `default:"41" envconfig:"SATOSHI_PER_BYTE" json:"satoshi_per_byte"`
	MinFee         uint64 `default:"10000" envconfig:"MIN_FEE" json:"min_fee"`
	DustLimit      uint64 `default:"2750" envconfig:"DUST_LIMIT" json:"dust_limit"`

	// KeyPath is the externally mounted credential file holding the WIF
	// signing key.
	KeyPath string `default:"/mnt/keysource/issuing.key" envconfig:"KEY_PATH" json:"key_path"`

	Confirmations int `default:"1" envconfig:"CONFIRMATIONS" json:"confirmations"`

	// Optional transfer phase: fund the issuing address from a cold storage
	// address before planning, and split funding across temporary addresses
	// when more inputs are needed than exist.
	TransferEnabled bool   `default:"false" envconfig:"TRANSFER_ENABLED" json:"transfer_enabled"`
	StorageAddress  string `envconfig:"FUNDING_STORAGE_ADDRESS" json:"storage_address"`
	TransferFee     uint64 `default:"10000" envconfig:"TRANSFER_FEE" json:"transfer_fee"`
}

// Issuer sequences build, persist, sign, persist, verify, broadcast, persist
// across a batch. Fully sequential: signing requires connectivity verified
// off, which is incompatible with concurrent network stages in the same
// process lifetime.
type Issuer struct {
	cfg         Config
	params      *chaincfg.Params
	allowedNets []*chaincfg.Params
	connector   wallet.Connector
	broadcaster broadcast.Broadcaster
	checker     airgap.Checker
	store       storage.Storage
}

func NewIssuer(cfg Config, params *chaincfg.Params, connector wallet.Connector,
	broadcaster broadcast.Broadcaster, checker airgap.Checker,
	store storage.Storage) *Issuer {

	return &Issuer{
		cfg:         cfg,
		params:      params,
		allowedNets: []*chaincfg.Params{params},
		connector:   connector,
		broadcaster: broadcaster,
		checker:     checker,
		store:       store,
	}
}

// CostForCertificates computes the cost of issuing the batch: one transaction
// per certificate, plus the independently computed transfer-stage cost when
// the transfer phase is enabled.
func (i *Issuer) CostForCertificates(count int) txbuilder.BatchCost {
	issuing := txbuilder.CostForTransaction(i.cfg.MinFee, i.cfg.DustLimit,
		i.cfg.SatoshiPerByte, txbuilder.OutputsForCertificates(1))

	var transfer *txbuilder.TransactionCost
	if i.cfg.TransferEnabled {
		t := txbuilder.CostForTransaction(i.cfg.MinFee, i.cfg.DustLimit,
			i.cfg.SatoshiPerByte, count)
		transfer = &t
	}

	return txbuilder.CostForBatch(count, issuing, transfer)
}

// PlanBatch fetches fresh funding inputs and assigns each certificate a
// descriptor with its own input. Inputs are claimed at most once; fewer
// sufficient inputs than certificates fails before anything is built.
func (i *Issuer) PlanBatch(ctx context.Context, certs []Certificate) ([]*Descriptor, error) {
	batchCost := i.CostForCertificates(len(certs))

	balance, err := i.connector.Balance(ctx, i.cfg.IssuingAddress, i.cfg.Confirmations)
	if err != nil {
		return nil, errors.Wrap(err, "balance")
	}
	if shortfall := batchCost.Difference(balance); shortfall > 0 {
		return nil, errors.Wrapf(ErrInsufficientFunds, "short %d satoshis", shortfall)
	}

	unspent, err := i.connector.UnspentOutputs(ctx, i.cfg.IssuingAddress)
	if err != nil {
		return nil, errors.Wrap(err, "unspent outputs")
	}

	batch := uuid.New().String()
	descriptors := make([]*Descriptor, 0, len(certs))

	next := 0
	for _, cert := range certs {
		claimed := -1
		for index := next; index < len(unspent); index++ {
			if unspent[index].Value >= batchCost.Issuing.Total {
				claimed = index
				break
			}
		}
		if claimed == -1 {
			return nil, errors.Wrapf(ErrInsufficientFunds,
				"no unspent output covers transaction %s", cert.UID)
		}

		descriptors = append(descriptors, newDescriptor(batch, cert, unspent[claimed]))
		next = claimed + 1
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("batch", batch),
		logger.Int("certificates", len(certs)),
		logger.Uint64("total_cost", batchCost.Total),
	}, "Planned issuing batch")

	return descriptors, nil
}

// IssueBatch runs the full pipeline over the batch, one transaction at a
// time. A broadcast failure against an authoritative relay halts the batch;
// artifacts already persisted are left intact for manual recovery.
func (i *Issuer) IssueBatch(ctx context.Context, certs []Certificate) ([]*Descriptor, error) {
	if i.cfg.TransferEnabled {
		if err := i.transferFromStorage(ctx, len(certs)); err != nil {
			return nil, errors.Wrap(err, "transfer")
		}
	}

	descriptors, err := i.PlanBatch(ctx, certs)
	if err != nil {
		return nil, err
	}

	for _, d := range descriptors {
		if err := i.issue(ctx, d); err != nil {
			return descriptors, errors.Wrapf(err, "certificate %s", d.UID)
		}
	}

	return descriptors, nil
}

// issue walks one descriptor through the state machine. Existing artifacts
// short-circuit their stages, so an interrupted run resumes from the last
// persisted step.
func (i *Issuer) issue(ctx context.Context, d *Descriptor) error {
	if txid, err := i.readArtifact(ctx, d.SentKey); err == nil {
		d.TxID = string(txid)
		d.Stage = StageRecorded
		logger.InfoWithFields(ctx, []logger.Field{
			logger.String("uid", d.UID),
			logger.String("txid", d.TxID),
		}, "Already recorded, skipping")
		return nil
	}

	raw, err := i.buildStage(ctx, d)
	if err != nil {
		return err
	}

	signed, err := i.signStage(ctx, d, raw)
	if err != nil {
		return err
	}

	if err := i.verifyStage(ctx, d, signed); err != nil {
		return err
	}

	return i.broadcastStage(ctx, d, signed)
}

func (i *Issuer) buildStage(ctx context.Context, d *Descriptor) ([]byte, error) {
	if raw, err := i.readHexArtifact(ctx, d.UnsignedKey); err == nil {
		d.Stage = StageBuilt
		return raw, nil
	}

	cost := i.CostForCertificates(1).Issuing
	pairs := []txbuilder.RecipientPair{{
		Recipient:  d.Recipient,
		Revocation: i.cfg.RevocationAddress,
	}}

	tx, err := txbuilder.Build(d.Input, d.Commitment, i.cfg.IssuingAddress, cost, pairs,
		i.params)
	if err != nil {
		return nil, errors.Wrap(err, "build")
	}
	d.Tx = tx

	raw, err := txbuilder.Serialize(tx)
	if err != nil {
		return nil, errors.Wrap(err, "serialize")
	}

	if err := i.writeHexArtifact(ctx, d.UnsignedKey, raw); err != nil {
		return nil, errors.Wrap(err, "persist unsigned")
	}
	d.Stage = StageBuilt

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("uid", d.UID),
		logger.String("input", d.Input.ID()),
	}, "Built unsigned transaction")

	return raw, nil
}

func (i *Issuer) signStage(ctx context.Context, d *Descriptor, raw []byte) ([]byte, error) {
	if signed, err := i.readHexArtifact(ctx, d.SignedKey); err == nil {
		d.Stage = StageSigned
		return signed, nil
	}

	// The key is only read and used while connectivity is verified off.
	if err := i.checker.WaitOffline(ctx); err != nil {
		return nil, errors.Wrap(err, "wait offline")
	}

	logger.Info(ctx, "Signing transaction with private key")

	wif, err := airgap.ImportKey(i.cfg.KeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "import key")
	}

	signed, err := txbuilder.SignTx(raw, d.Input, wif, i.allowedNets, i.params)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}

	if err := i.checker.WaitOnline(ctx); err != nil {
		return nil, errors.Wrap(err, "wait online")
	}

	if err := i.writeHexArtifact(ctx, d.SignedKey, signed); err != nil {
		return nil, errors.Wrap(err, "persist signed")
	}
	d.Stage = StageSigned

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("uid", d.UID),
	}, "Finished signing transaction")

	return signed, nil
}

func (i *Issuer) verifyStage(ctx context.Context, d *Descriptor, signed []byte) error {
	if err := txbuilder.VerifySignatures(signed, d.Input); err != nil {
		return errors.Wrap(err, "verify signatures")
	}

	if err := txbuilder.VerifyCommitment(signed, d.Commitment); err != nil {
		return errors.Wrap(err, "verify commitment")
	}

	d.Stage = StageVerified
	return nil
}

func (i *Issuer) broadcastStage(ctx context.Context, d *Descriptor, signed []byte) error {
	txid, err := i.broadcaster.Broadcast(ctx, signed)
	if err != nil {
		// Fatal for the run, but the persisted unsigned/signed artifacts stay
		// intact for manual re-broadcast.
		return errors.Wrap(err, "broadcast")
	}
	d.Stage = StageBroadcast

	if len(txid) == 0 {
		logger.WarnWithFields(ctx, []logger.Field{
			logger.String("uid", d.UID),
		}, "No txid returned, broadcast the signed artifact manually")
		return nil
	}

	if err := i.writeArtifact(ctx, d.SentKey, []byte(txid)); err != nil {
		return errors.Wrap(err, "persist txid")
	}

	d.TxID = txid
	d.Stage = StageRecorded

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("uid", d.UID),
		logger.String("txid", txid),
	}, "Broadcast transaction")

	return nil
}

// transferFromStorage moves the batch cost from the cold storage address to
// the issuing address before planning.
func (i *Issuer) transferFromStorage(ctx context.Context, count int) error {
	if len(i.cfg.StorageAddress) == 0 {
		return nil
	}

	batchCost := i.CostForCertificates(count)

	err := i.connector.Pay(ctx, i.cfg.StorageAddress, i.cfg.IssuingAddress,
		batchCost.Total, i.cfg.TransferFee)
	if err != nil {
		return errors.Wrap(err, "pay from storage")
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("from", i.cfg.StorageAddress),
		logger.Uint64("amount", batchCost.Total),
	}, "Transferred batch funding from storage")

	return nil
}

// SplitFunding prepares granular funding for a batch: it creates one
// temporary address per certificate and pays each the per-transaction cost in
// a single batched send. The temporary addresses should be archived with
// ArchiveAddresses once the batch completes.
func (i *Issuer) SplitFunding(ctx context.Context, count int) ([]string, error) {
	perTransaction := i.CostForCertificates(count).Issuing.Total

	addresses := make([]string, 0, count)
	recipients := make(map[string]uint64, count)
	for index := 0; index < count; index++ {
		address, err := i.connector.CreateTemporaryAddress(ctx,
			fmt.Sprintf("issuing-%d", index))
		if err != nil {
			return nil, errors.Wrap(err, "create temporary address")
		}
		addresses = append(addresses, address)
		recipients[address] = perTransaction
	}

	if err := i.connector.SendToMany(ctx, i.cfg.IssuingAddress, recipients,
		i.cfg.TransferFee); err != nil {
		return nil, errors.Wrap(err, "send to many")
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.Int("addresses", len(addresses)),
		logger.Uint64("per_transaction", perTransaction),
	}, "Split funding across temporary addresses")

	return addresses, nil
}

// ArchiveAddresses retires temporary funding addresses after a batch.
func (i *Issuer) ArchiveAddresses(ctx context.Context, addresses []string) error {
	for _, address := range addresses {
		if err := i.connector.Archive(ctx, address); err != nil {
			return errors.Wrapf(err, "archive %s", address)
		}
	}
	return nil
}

// Artifacts are stored hex encoded so they can be inspected and re-broadcast
// with standard tools.

func (i *Issuer) writeHexArtifact(ctx context.Context, key string, raw []byte) error {
	return i.store.Write(ctx, key, []byte(hex.EncodeToString(raw)))
}

func (i *Issuer) readHexArtifact(ctx context.Context, key string) ([]byte, error) {
	b, err := i.store.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(string(b))
}

func (i *Issuer) writeArtifact(ctx context.Context, key string, body []byte) error {
	return i.store.Write(ctx, key, body)
}

func (i *Issuer) readArtifact(ctx context.Context, key string) ([]byte, error) {
	return i.store.Read(ctx, key)
}

package issuer

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/certanchor/issuer/wallet"
)

// Stage is the linear state machine each transaction moves through. There is
// no branching and no automatic retry between stages; every transition
// persists its artifact first, so a crash leaves a resumable trail.
type Stage int

const (
	StagePlanned Stage = iota
	StageBuilt
	StageSigned
	StageVerified
	StageBroadcast
	StageRecorded
)

func (s Stage) String() string {
	switch s {
	case StagePlanned:
		return "planned"
	case StageBuilt:
		return "built"
	case StageSigned:
		return "signed"
	case StageVerified:
		return "verified"
	case StageBroadcast:
		return "broadcast"
	case StageRecorded:
		return "recorded"
	}

	return "unknown"
}

// Certificate identifies one credential to anchor: its unique id, the
// recipient's address, and the certificate hash committed on chain.
// Generating and hashing the certificate document happens upstream.
type Certificate struct {
	UID       string
	Recipient string
	Hash      []byte
}

// Descriptor is the unit threaded through the pipeline, one per certificate.
// It is created at batch planning time and only ever appended to; it is the
// audit trail of the pipeline's progress.
type Descriptor struct {
	Batch      string
	UID        string
	Recipient  string
	Stage      Stage
	Input      wallet.FundingInput
	Commitment []byte
	Tx         *wire.MsgTx
	TxID       string

	// Artifact keys for the unsigned/signed/sent records.
	UnsignedKey string
	SignedKey   string
	SentKey     string
}

func newDescriptor(batch string, cert Certificate, input wallet.FundingInput) *Descriptor {
	return &Descriptor{
		Batch:       batch,
		UID:         cert.UID,
		Recipient:   cert.Recipient,
		Stage:       StagePlanned,
		Input:       input,
		Commitment:  cert.Hash,
		UnsignedKey: artifactKey(batch, cert.UID, "unsigned"),
		SignedKey:   artifactKey(batch, cert.UID, "signed"),
		SentKey:     artifactKey(batch, cert.UID, "txid"),
	}
}

func artifactKey(batch, uid, suffix string) string {
	return fmt.Sprintf("txs/%s/%s.%s", batch, uid, suffix)
}

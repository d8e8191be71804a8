package txbuilder

// Fee and cost arithmetic is integer satoshis throughout. Floating point can
// misestimate fees and leave transactions rejected or stuck.

const (
	// CoinSatoshis is the number of satoshis in one bitcoin.
	CoinSatoshis = 100000000

	// BytesPerInput is the serialized size of a P2PKH input assuming a
	// compressed public key.
	//   Previous Transaction ID = 32 bytes
	//   Previous Transaction Output Index = 4 bytes
	//   script size = 1 byte
	//   Signature push to stack = up to 73 bytes
	//   Public key push to stack = 34 bytes
	//   Sequence number = 4 bytes
	BytesPerInput = 148

	// BytesPerOutput is the serialized size of a P2PKH output.
	//   amount = 8 bytes
	//   script size = 1 byte
	//   script = 25 bytes
	BytesPerOutput = 34

	// FixedTxOverhead is the size of a tx not included in inputs and outputs.
	//   Version = 4 bytes
	//   input/output counts = 2 bytes
	//   LockTime = 4 bytes
	FixedTxOverhead = 10

	// OutputsPerCertificate is the matched recipient/revocation output pair
	// created for every certificate.
	OutputsPerCertificate = 2
)

// RawTxSize models the serialized byte size of a transaction. Signature
// length varies by a byte per input, so the size takes the upper bound by
// adding one byte per input.
func RawTxSize(inputs, outputs int) int {
	return inputs*BytesPerInput + outputs*BytesPerOutput + FixedTxOverhead + inputs
}

// EstimateFee returns the fee for a transaction of the modeled size at the
// specified rate, with minFee as a floor. A flat per-transaction fee
// under-prices larger transactions, so the floor only wins for small ones and
// prompt processing is guaranteed either way.
func EstimateFee(satoshiPerByte uint64, inputs, outputs int, minFee uint64) uint64 {
	fee := satoshiPerByte * uint64(RawTxSize(inputs, outputs))
	if fee < minFee {
		return minFee
	}
	return fee
}

// TransactionCost is the cost breakdown of one issuing transaction. It is
// derived, never persisted, and recomputed per batch.
type TransactionCost struct {
	MinPerOutput uint64 // satoshis paid to each spendable output
	Fee          uint64 // miner fee
	Total        uint64 // MinPerOutput for every output plus Fee
}

// CostForTransaction computes the cost of a transaction with the specified
// output count, assuming one funding input.
func CostForTransaction(minFee, dustLimit, satoshiPerByte uint64, outputs int) TransactionCost {
	fee := EstimateFee(satoshiPerByte, 1, outputs, minFee)
	return TransactionCost{
		MinPerOutput: dustLimit,
		Fee:          fee,
		Total:        dustLimit*uint64(outputs) + fee,
	}
}

// Difference returns the shortfall of balance against the total, zero when the
// balance covers it.
func (c TransactionCost) Difference(balance uint64) uint64 {
	if c.Total <= balance {
		return 0
	}
	return c.Total - balance
}

// OutputsForCertificates returns the worst case output count for a
// certificate batch. Each certificate gets a recipient/revocation pair and
// there may be an additional change output and the commitment output.
func OutputsForCertificates(count int) int {
	return OutputsPerCertificate*count + 2
}

// BatchCost aggregates the cost of an issuing event across its transactions,
// plus an independently computed transfer-stage cost when a transfer phase is
// enabled.
type BatchCost struct {
	Transactions int
	Issuing      TransactionCost
	Transfer     *TransactionCost
	Total        uint64
}

func CostForBatch(transactions int, issuing TransactionCost,
	transfer *TransactionCost) BatchCost {

	total := uint64(transactions) * issuing.Total
	if transfer != nil {
		total += transfer.Total
	}

	return BatchCost{
		Transactions: transactions,
		Issuing:      issuing,
		Transfer:     transfer,
		Total:        total,
	}
}

func (b BatchCost) Difference(balance uint64) uint64 {
	if b.Total <= balance {
		return 0
	}
	return b.Total - balance
}

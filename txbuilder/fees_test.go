package txbuilder

import (
	"testing"
)

func TestRawTxSize(t *testing.T) {
	tests := []struct {
		name    string
		inputs  int
		outputs int
		want    int
	}{
		{
			name:    "one input four outputs",
			inputs:  1,
			outputs: 4,
			want:    295, // 148 + 4*34 + 10 + 1
		},
		{
			name:    "two inputs one output",
			inputs:  2,
			outputs: 1,
			want:    342, // 2*148 + 34 + 10 + 2
		},
		{
			name:    "empty",
			inputs:  0,
			outputs: 0,
			want:    10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RawTxSize(tt.inputs, tt.outputs)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateFee(t *testing.T) {
	tests := []struct {
		name           string
		satoshiPerByte uint64
		inputs         int
		outputs        int
		minFee         uint64
		want           uint64
	}{
		{
			name:           "rate wins over floor",
			satoshiPerByte: 50,
			inputs:         1,
			outputs:        4,
			minFee:         10000,
			want:           14750, // 50 * 295
		},
		{
			name:           "floor wins for small tx",
			satoshiPerByte: 10,
			inputs:         1,
			outputs:        2,
			minFee:         10000,
			want:           10000, // 10 * 227 = 2270 < floor
		},
		{
			name:           "exactly at floor",
			satoshiPerByte: 40,
			inputs:         1,
			outputs:        2,
			minFee:         9080,
			want:           9080, // 40 * 227
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateFee(tt.satoshiPerByte, tt.inputs, tt.outputs, tt.minFee)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateFee_Monotonic(t *testing.T) {
	last := uint64(0)
	for outputs := 1; outputs < 50; outputs++ {
		fee := EstimateFee(41, 1, outputs, 0)
		if fee <= last {
			t.Fatalf("fee not increasing at %d outputs : %d <= %d", outputs, fee, last)
		}
		last = fee
	}
}

func TestCostForTransaction(t *testing.T) {
	cost := CostForTransaction(10000, 2750, 41, 4)

	wantFee := uint64(41 * 295)
	if cost.Fee != wantFee {
		t.Errorf("fee got %v, want %v", cost.Fee, wantFee)
	}
	if cost.MinPerOutput != 2750 {
		t.Errorf("min per output got %v, want %v", cost.MinPerOutput, 2750)
	}

	wantTotal := uint64(2750*4) + wantFee
	if cost.Total != wantTotal {
		t.Errorf("total got %v, want %v", cost.Total, wantTotal)
	}
}

func TestTransactionCost_Difference(t *testing.T) {
	cost := TransactionCost{MinPerOutput: 2750, Fee: 10000, Total: 21000}

	if got := cost.Difference(21000); got != 0 {
		t.Errorf("exact balance : got %v, want 0", got)
	}
	if got := cost.Difference(25000); got != 0 {
		t.Errorf("surplus balance : got %v, want 0", got)
	}
	if got := cost.Difference(15000); got != 6000 {
		t.Errorf("shortfall : got %v, want 6000", got)
	}
}

func TestOutputsForCertificates(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{count: 1, want: 4},
		{count: 3, want: 8},
		{count: 0, want: 2},
	}

	for _, tt := range tests {
		if got := OutputsForCertificates(tt.count); got != tt.want {
			t.Errorf("count %d : got %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestCostForBatch(t *testing.T) {
	issuing := CostForTransaction(10000, 2750, 41, OutputsForCertificates(1))

	batch := CostForBatch(5, issuing, nil)
	if batch.Total != 5*issuing.Total {
		t.Errorf("got %v, want %v", batch.Total, 5*issuing.Total)
	}

	transfer := CostForTransaction(10000, 2750, 41, 5)
	batch = CostForBatch(5, issuing, &transfer)
	want := 5*issuing.Total + transfer.Total
	if batch.Total != want {
		t.Errorf("with transfer : got %v, want %v", batch.Total, want)
	}

	if got := batch.Difference(want); got != 0 {
		t.Errorf("difference at exact balance : got %v, want 0", got)
	}
	if got := batch.Difference(want - 100); got != 100 {
		t.Errorf("difference at shortfall : got %v, want 100", got)
	}
}

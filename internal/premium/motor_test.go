package premium

import (
	"testing"
	"time"

	"insurance-backend/pkg/apperr"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuoteMotorSequence(t *testing.T) {
	tests := []struct {
		name string
		in   MotorInput
		want MotorQuote
	}{
		{
			name: "punjab no tracker",
			in: MotorInput{
				VehicleValue:     dec("1000000"),
				ModelYear:        2022,
				JurisdictionCode: "PB",
			},
			want: MotorQuote{
				SumInsured:     dec("1000000"),
				GrossPremium:   dec("20000"),
				AdminSurcharge: dec("1000"),
				Subtotal:       dec("21000"),
				SalesTax:       dec("3360"),
				FederalFee:     dec("210"),
				StampDuty:      dec("100"),
				NetPremium:     dec("24670"),
			},
		},
		{
			name: "punjab with tracker discount",
			in: MotorInput{
				VehicleValue:     dec("1000000"),
				ModelYear:        2022,
				JurisdictionCode: "PB",
				TrackerInstalled: true,
			},
			want: MotorQuote{
				SumInsured:     dec("1000000"),
				GrossPremium:   dec("17500"),
				AdminSurcharge: dec("875"),
				Subtotal:       dec("18375"),
				SalesTax:       dec("2940"),
				FederalFee:     dec("183.75"),
				StampDuty:      dec("100"),
				NetPremium:     dec("21598.75"),
			},
		},
		{
			name: "sindh with accessories",
			in: MotorInput{
				VehicleValue:     dec("800000"),
				AccessoriesValue: dec("50000"),
				ModelYear:        2020,
				JurisdictionCode: "SD",
			},
			want: MotorQuote{
				SumInsured:     dec("850000"),
				GrossPremium:   dec("14875"),
				AdminSurcharge: dec("743.75"),
				Subtotal:       dec("15618.75"),
				SalesTax:       dec("2342.81"),
				FederalFee:     dec("156.19"),
				StampDuty:      dec("100"),
				NetPremium:     dec("18217.75"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuoteMotor(tt.in)
			if err != nil {
				t.Fatalf("QuoteMotor: %v", err)
			}
			checks := []struct {
				field string
				got   decimal.Decimal
				want  decimal.Decimal
			}{
				{"SumInsured", got.SumInsured, tt.want.SumInsured},
				{"GrossPremium", got.GrossPremium, tt.want.GrossPremium},
				{"AdminSurcharge", got.AdminSurcharge, tt.want.AdminSurcharge},
				{"Subtotal", got.Subtotal, tt.want.Subtotal},
				{"SalesTax", got.SalesTax, tt.want.SalesTax},
				{"FederalFee", got.FederalFee, tt.want.FederalFee},
				{"StampDuty", got.StampDuty, tt.want.StampDuty},
				{"NetPremium", got.NetPremium, tt.want.NetPremium},
			}
			for _, c := range checks {
				if !c.got.Equal(c.want) {
					t.Errorf("%s = %s, want %s", c.field, c.got, c.want)
				}
			}
		})
	}
}

func TestQuoteMotorIsDeterministic(t *testing.T) {
	in := MotorInput{
		VehicleValue:     dec("2345678.90"),
		AccessoriesValue: dec("123456.78"),
		ModelYear:        2019,
		JurisdictionCode: "ICT",
		TrackerInstalled: true,
	}
	first, err := QuoteMotor(in)
	if err != nil {
		t.Fatalf("QuoteMotor: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := QuoteMotor(in)
		if err != nil {
			t.Fatalf("QuoteMotor: %v", err)
		}
		if !again.NetPremium.Equal(first.NetPremium) {
			t.Fatalf("net premium drifted between runs: %s vs %s", again.NetPremium, first.NetPremium)
		}
	}
}

func TestQuoteMotorMonotonicInSumInsured(t *testing.T) {
	vehicleValues := []string{"200000", "350000", "500000", "750000", "1000000", "2500000", "5000000"}
	accessoriesValues := []string{"0", "15000", "40000", "90000"}

	for code := range motorJurisdictions {
		for _, tracker := range []bool{false, true} {
			name := code
			if tracker {
				name += " with tracker"
			}
			t.Run(name, func(t *testing.T) {
				prev := decimal.Zero
				for _, v := range vehicleValues {
					got, err := QuoteMotor(MotorInput{
						VehicleValue:     dec(v),
						ModelYear:        2022,
						JurisdictionCode: code,
						TrackerInstalled: tracker,
					})
					if err != nil {
						t.Fatalf("QuoteMotor(%s): %v", v, err)
					}
					if got.NetPremium.LessThan(prev) {
						t.Errorf("net premium dropped to %s at vehicle value %s (was %s)", got.NetPremium, v, prev)
					}
					prev = got.NetPremium
				}

				prev = decimal.Zero
				for _, acc := range accessoriesValues {
					got, err := QuoteMotor(MotorInput{
						VehicleValue:     dec("600000"),
						AccessoriesValue: dec(acc),
						ModelYear:        2022,
						JurisdictionCode: code,
						TrackerInstalled: tracker,
					})
					if err != nil {
						t.Fatalf("QuoteMotor(accessories %s): %v", acc, err)
					}
					if got.NetPremium.LessThan(prev) {
						t.Errorf("net premium dropped to %s at accessories value %s (was %s)", got.NetPremium, acc, prev)
					}
					prev = got.NetPremium
				}
			})
		}
	}
}

func TestQuoteMotorValidation(t *testing.T) {
	base := MotorInput{
		VehicleValue:     dec("500000"),
		ModelYear:        2020,
		JurisdictionCode: "KP",
	}

	tests := []struct {
		name   string
		mutate func(*MotorInput)
	}{
		{"zero vehicle value", func(in *MotorInput) { in.VehicleValue = decimal.Zero }},
		{"negative vehicle value", func(in *MotorInput) { in.VehicleValue = dec("-1") }},
		{"negative accessories", func(in *MotorInput) { in.AccessoriesValue = dec("-100") }},
		{"model year too old", func(in *MotorInput) { in.ModelYear = 1979 }},
		{"model year in the future", func(in *MotorInput) { in.ModelYear = time.Now().Year() + 2 }},
		{"unknown jurisdiction", func(in *MotorInput) { in.JurisdictionCode = "XX" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := QuoteMotor(in)
			if !apperr.Is(err, apperr.Validation) {
				t.Errorf("error kind = %v, want Validation (err=%v)", apperr.KindOf(err), err)
			}
		})
	}
}

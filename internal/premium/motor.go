// Package premium contains the pure premium calculators. No I/O: identical
// inputs always yield identical figures, which the payment and review paths
// rely on when re-checking amounts.
package premium

import (
	"time"

	"insurance-backend/pkg/apperr"

	"github.com/shopspring/decimal"
)

// jurisdictionRates holds the gross premium rate and provincial sales tax
// rate per jurisdiction code.
type jurisdictionRates struct {
	GrossRate    decimal.Decimal // applied to sum insured
	SalesTaxRate decimal.Decimal // applied to subtotal
}

var motorJurisdictions = map[string]jurisdictionRates{
	"PB":  {GrossRate: decimal.NewFromFloat(0.0200), SalesTaxRate: decimal.NewFromFloat(0.16)},
	"SD":  {GrossRate: decimal.NewFromFloat(0.0175), SalesTaxRate: decimal.NewFromFloat(0.15)},
	"KP":  {GrossRate: decimal.NewFromFloat(0.0185), SalesTaxRate: decimal.NewFromFloat(0.15)},
	"BL":  {GrossRate: decimal.NewFromFloat(0.0185), SalesTaxRate: decimal.NewFromFloat(0.15)},
	"ICT": {GrossRate: decimal.NewFromFloat(0.0195), SalesTaxRate: decimal.NewFromFloat(0.16)},
}

var (
	// trackerDiscount is subtracted from the gross rate when a tracking
	// device is installed.
	trackerDiscount = decimal.NewFromFloat(0.0025)
	// adminSurchargeRate is applied to the gross premium.
	adminSurchargeRate = decimal.NewFromFloat(0.05)
	// federalFeeRate is the flat federal insurance fee on the subtotal.
	federalFeeRate = decimal.NewFromFloat(0.01)
	// stampDuty is a fixed per-policy duty.
	stampDuty = decimal.NewFromInt(100)

	minModelYear = 1980
)

// MotorInput carries everything the motor calculation needs.
type MotorInput struct {
	VehicleValue     decimal.Decimal
	AccessoriesValue decimal.Decimal
	ModelYear        int
	JurisdictionCode string
	TrackerInstalled bool
}

// MotorQuote is the fixed calculation sequence, every intermediate figure
// exposed so the proposal record and policy schedule can show the breakdown.
type MotorQuote struct {
	SumInsured     decimal.Decimal `json:"sum_insured"`
	GrossPremium   decimal.Decimal `json:"gross_premium"`
	AdminSurcharge decimal.Decimal `json:"admin_surcharge"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	SalesTax       decimal.Decimal `json:"sales_tax"`
	FederalFee     decimal.Decimal `json:"federal_fee"`
	StampDuty      decimal.Decimal `json:"stamp_duty"`
	NetPremium     decimal.Decimal `json:"net_premium"`
}

// QuoteMotor computes the motor premium: gross premium at the jurisdiction
// rate, 5% administrative surcharge, subtotal, jurisdiction sales tax, 1%
// federal fee on the subtotal and a fixed stamp duty, summed into the net
// premium.
func QuoteMotor(in MotorInput) (MotorQuote, error) {
	if in.VehicleValue.LessThanOrEqual(decimal.Zero) {
		return MotorQuote{}, apperr.Validationf("vehicle value must be positive")
	}
	if in.AccessoriesValue.IsNegative() {
		return MotorQuote{}, apperr.Validationf("accessories value must not be negative")
	}
	if in.ModelYear < minModelYear || in.ModelYear > time.Now().Year()+1 {
		return MotorQuote{}, apperr.Validationf("model year %d is out of range", in.ModelYear)
	}
	rates, ok := motorJurisdictions[in.JurisdictionCode]
	if !ok {
		return MotorQuote{}, apperr.Validationf("unknown jurisdiction code %q", in.JurisdictionCode)
	}

	sumInsured := in.VehicleValue.Add(in.AccessoriesValue)

	grossRate := rates.GrossRate
	if in.TrackerInstalled {
		grossRate = grossRate.Sub(trackerDiscount)
	}

	gross := sumInsured.Mul(grossRate)
	surcharge := gross.Mul(adminSurchargeRate)
	subtotal := gross.Add(surcharge)
	salesTax := subtotal.Mul(rates.SalesTaxRate)
	federalFee := subtotal.Mul(federalFeeRate)
	net := subtotal.Add(salesTax).Add(federalFee).Add(stampDuty)

	round := func(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
	return MotorQuote{
		SumInsured:     round(sumInsured),
		GrossPremium:   round(gross),
		AdminSurcharge: round(surcharge),
		Subtotal:       round(subtotal),
		SalesTax:       round(salesTax),
		FederalFee:     round(federalFee),
		StampDuty:      stampDuty,
		NetPremium:     round(net),
	}, nil
}

package premium

import (
	"insurance-backend/internal/model"
	"insurance-backend/pkg/apperr"

	"github.com/shopspring/decimal"
)

// Slab is one pricing bracket: a [MinDays, MaxDays] tenure range for either
// single-trip or multi-trip cover. MaxTripDays caps the length of any one
// trip under a multi-trip policy (0 means no cap).
type Slab struct {
	MinDays     int
	MaxDays     int
	MultiTrip   bool
	MaxTripDays int
	Premium     decimal.Decimal
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// travelSlabs is keyed by "<kind>/<plan>". Plans: SILVER, GOLD.
var travelSlabs = map[string][]Slab{
	model.KindTravelDomestic + "/SILVER": {
		{MinDays: 1, MaxDays: 10, Premium: d(500)},
		{MinDays: 11, MaxDays: 31, Premium: d(900)},
		{MinDays: 32, MaxDays: 92, Premium: d(1600)},
	},
	model.KindTravelDomestic + "/GOLD": {
		{MinDays: 1, MaxDays: 10, Premium: d(800)},
		{MinDays: 11, MaxDays: 31, Premium: d(1400)},
		{MinDays: 32, MaxDays: 92, Premium: d(2500)},
	},
	model.KindTravelHajj + "/SILVER": {
		{MinDays: 1, MaxDays: 21, Premium: d(1500)},
		{MinDays: 22, MaxDays: 45, Premium: d(2400)},
	},
	model.KindTravelHajj + "/GOLD": {
		{MinDays: 1, MaxDays: 21, Premium: d(2300)},
		{MinDays: 22, MaxDays: 45, Premium: d(3600)},
	},
	model.KindTravelInternational + "/SILVER": {
		{MinDays: 1, MaxDays: 15, Premium: d(2800)},
		{MinDays: 16, MaxDays: 31, Premium: d(4200)},
		{MinDays: 32, MaxDays: 92, Premium: d(7500)},
		{MinDays: 93, MaxDays: 365, Premium: d(12500)},
		{MinDays: 365, MaxDays: 365, MultiTrip: true, MaxTripDays: 30, Premium: d(9800)},
		{MinDays: 365, MaxDays: 365, MultiTrip: true, MaxTripDays: 60, Premium: d(13800)},
		{MinDays: 365, MaxDays: 365, MultiTrip: true, MaxTripDays: 90, Premium: d(17500)},
	},
	model.KindTravelInternational + "/GOLD": {
		{MinDays: 1, MaxDays: 15, Premium: d(4300)},
		{MinDays: 16, MaxDays: 31, Premium: d(6400)},
		{MinDays: 32, MaxDays: 92, Premium: d(11000)},
		{MinDays: 93, MaxDays: 365, Premium: d(18500)},
		{MinDays: 365, MaxDays: 365, MultiTrip: true, MaxTripDays: 30, Premium: d(14500)},
		{MinDays: 365, MaxDays: 365, MultiTrip: true, MaxTripDays: 60, Premium: d(19800)},
		{MinDays: 365, MaxDays: 365, MultiTrip: true, MaxTripDays: 90, Premium: d(24500)},
	},
	model.KindTravelStudent + "/SILVER": {
		{MinDays: 90, MaxDays: 365, Premium: d(9500)},
		{MinDays: 366, MaxDays: 730, Premium: d(16500)},
	},
	model.KindTravelStudent + "/GOLD": {
		{MinDays: 90, MaxDays: 365, Premium: d(14500)},
		{MinDays: 366, MaxDays: 730, Premium: d(25500)},
	},
}

// coverageSums maps coverage codes to sum insured.
var coverageSums = map[string]decimal.Decimal{
	"COV-10K":  d(10000),
	"COV-25K":  d(25000),
	"COV-50K":  d(50000),
	"COV-100K": d(100000),
}

// ageLoadings applies to the international package only: [MinAge, MaxAge]
// bands with a percentage loading on the slab premium.
type ageBand struct {
	MinAge, MaxAge int
	LoadingPct     decimal.Decimal
}

var intlAgeBands = []ageBand{
	{MinAge: 0, MaxAge: 40, LoadingPct: decimal.Zero},
	{MinAge: 41, MaxAge: 60, LoadingPct: d(25)},
	{MinAge: 61, MaxAge: 70, LoadingPct: d(50)},
	{MinAge: 71, MaxAge: 80, LoadingPct: d(100)},
}

// TravelInput carries everything the travel calculation needs.
type TravelInput struct {
	Kind         string
	PlanCode     string
	CoverageCode string
	TenureDays   int
	MultiTrip    bool
	// MaxTripDays selects the multi-trip slab; ignored for single trip.
	MaxTripDays int
	AgeYears    int
}

// TravelQuote is the travel pricing result.
type TravelQuote struct {
	SumInsured  decimal.Decimal `json:"sum_insured"`
	BasePremium decimal.Decimal `json:"base_premium"`
	AgeLoading  decimal.Decimal `json:"age_loading"`
	NetPremium  decimal.Decimal `json:"net_premium"`
	MaxTripDays int             `json:"max_trip_days,omitempty"`
}

// QuoteTravel looks up the pricing slab for the tenure/plan combination and,
// for the international package, applies the age-band loading. A missing slab
// is a client error, not a system fault.
func QuoteTravel(in TravelInput) (TravelQuote, error) {
	if in.TenureDays <= 0 {
		return TravelQuote{}, apperr.Validationf("tenure must be a positive number of days")
	}
	if in.AgeYears <= 0 {
		return TravelQuote{}, apperr.Validationf("applicant age must be positive")
	}
	sumInsured, ok := coverageSums[in.CoverageCode]
	if !ok {
		return TravelQuote{}, apperr.Validationf("unknown coverage code %q", in.CoverageCode)
	}
	slabs, ok := travelSlabs[in.Kind+"/"+in.PlanCode]
	if !ok {
		return TravelQuote{}, apperr.Validationf("no pricing for package %q plan %q", in.Kind, in.PlanCode)
	}

	var slab *Slab
	for i := range slabs {
		s := &slabs[i]
		if s.MultiTrip != in.MultiTrip {
			continue
		}
		if in.TenureDays < s.MinDays || in.TenureDays > s.MaxDays {
			continue
		}
		if s.MultiTrip && s.MaxTripDays != in.MaxTripDays {
			continue
		}
		slab = s
		break
	}
	if slab == nil {
		return TravelQuote{}, apperr.Validationf("no pricing slab for %d day(s) on plan %q", in.TenureDays, in.PlanCode)
	}

	quote := TravelQuote{
		SumInsured:  sumInsured,
		BasePremium: slab.Premium,
		AgeLoading:  decimal.Zero,
		MaxTripDays: slab.MaxTripDays,
	}

	if in.Kind == model.KindTravelInternational {
		loading, err := intlLoadingFor(in.AgeYears)
		if err != nil {
			return TravelQuote{}, err
		}
		quote.AgeLoading = slab.Premium.Mul(loading).Div(d(100)).Round(2)
	}

	quote.NetPremium = quote.BasePremium.Add(quote.AgeLoading)
	return quote, nil
}

func intlLoadingFor(age int) (decimal.Decimal, error) {
	for _, band := range intlAgeBands {
		if age >= band.MinAge && age <= band.MaxAge {
			return band.LoadingPct, nil
		}
	}
	return decimal.Zero, apperr.Validationf("age %d is not insurable on the international package", age)
}

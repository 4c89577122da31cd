package officialsource

// Response represents the raw JSON response structure from the official
// distribution registry API. The registry returns one entry per published
// distribution within the requested window, plus an optional top-level error.
//
// The structure includes:
//   - Distributions: Array of published distribution entries
//   - Error: Optional error message from the registry
type Response struct {
	Distributions []Entry `json:"distributions"`
	Error         *string `json:"error"`
}

// Entry represents a single published distribution as returned by the
// registry. Amounts arrive as strings to avoid float rounding on the wire.
//
// Fields:
//   - Ticker: Exchange ticker the distribution belongs to
//   - PayDate: Payment date, formatted YYYY-MM-DD
//   - ExDate: Optional ex-distribution date, formatted YYYY-MM-DD
//   - GrossPerCBFI: Gross amount per certificate as a decimal string
//   - Currency: ISO currency code, typically MXN
//   - Type: Distribution composition (cash, capital_return, mixed)
//   - PeriodTag: Registry period label, e.g. "2024Q1"
type Entry struct {
	Ticker       string  `json:"ticker"`
	PayDate      string  `json:"pay_date"`
	ExDate       *string `json:"ex_date"`
	GrossPerCBFI string  `json:"gross_per_cbfi"`
	Currency     string  `json:"currency"`
	Type         string  `json:"type"`
	PeriodTag    string  `json:"period_tag"`
}

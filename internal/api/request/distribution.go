package request

// ImportDistributionsRequest represents the request body for importing
// unverified distribution rows. Amounts are decimal strings to avoid float
// rounding on the wire.
type ImportDistributionsRequest struct {
	Distributions []ImportDistributionRow `json:"distributions"`
}

// ImportDistributionRow is one unverified distribution row. Dates are
// formatted YYYY-MM-DD.
type ImportDistributionRow struct {
	Ticker       string  `json:"ticker"`
	PayDate      string  `json:"payDate"`
	ExDate       *string `json:"exDate,omitempty"`
	GrossPerCBFI string  `json:"grossPerCbfi"`
	Currency     string  `json:"currency,omitempty"`
	Type         string  `json:"type,omitempty"`
	Source       string  `json:"source"`
	Confidence   float64 `json:"confidence"`
}

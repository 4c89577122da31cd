package request

// ReplaceTradesRequest represents the request body for replacing an
// investor's trades. Quantities and prices are decimal strings.
type ReplaceTradesRequest struct {
	Trades []TradeRow `json:"trades"`
}

// TradeRow is one executed lot. TradedAt is formatted RFC 3339.
type TradeRow struct {
	Ticker   string `json:"ticker"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	TradedAt string `json:"tradedAt"`
}

// RecalcRequest represents the request body for enqueuing a portfolio
// recalculation.
type RecalcRequest struct {
	Reason string `json:"reason"`
}

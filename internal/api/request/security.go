package request

// UpdatePriceRequest is the payload for recording a security's last traded
// price. Price is a decimal string.
type UpdatePriceRequest struct {
	Price string `json:"price"`
}

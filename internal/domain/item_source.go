package domain

// ItemSource selects where the items of a new order come from.
// Exactly one of FromCart or FromRequest.
type ItemSource interface {
	isItemSource()
}

// FromCart takes the items of the caller's cart.
type FromCart struct{}

// FromRequest takes an explicit item list from the request body.
type FromRequest struct {
	Items []RequestedItem
}

func (FromCart) isItemSource()    {}
func (FromRequest) isItemSource() {}

type RequestedItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SourceOf picks FromRequest for a non-empty list and FromCart otherwise.
func SourceOf(items []RequestedItem) ItemSource {
	if len(items) == 0 {
		return FromCart{}
	}
	return FromRequest{Items: items}
}

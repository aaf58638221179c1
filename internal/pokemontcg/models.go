package pokemontcg

import (
	"encoding/json"
	"fmt"
)

// page is one page of a list endpoint.
type page struct {
	Data       []map[string]any `json:"data"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Count      int              `json:"count"`
	TotalCount int              `json:"totalCount"`
}

type single[T any] struct {
	Data T `json:"data"`
}

// PricedCard is the subset of a card record the price providers read.
type PricedCard struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Number     string      `json:"number"`
	Rarity     string      `json:"rarity"`
	Cardmarket *Cardmarket `json:"cardmarket,omitempty"`
	TCGPlayer  *TCGPlayer  `json:"tcgplayer,omitempty"`
}

// Cardmarket carries EUR prices. Zero means the field was absent.
type Cardmarket struct {
	URL       string           `json:"url"`
	UpdatedAt string           `json:"updatedAt"`
	Prices    CardmarketPrices `json:"prices"`
}

type CardmarketPrices struct {
	AverageSellPrice float64 `json:"averageSellPrice"`
	LowPrice         float64 `json:"lowPrice"`
	TrendPrice       float64 `json:"trendPrice"`
	LowPriceExPlus   float64 `json:"lowPriceExPlus"`
	ReverseHoloSell  float64 `json:"reverseHoloSell"`
	ReverseHoloLow   float64 `json:"reverseHoloLow"`
	ReverseHoloTrend float64 `json:"reverseHoloTrend"`
	Avg1             float64 `json:"avg1"`
	Avg7             float64 `json:"avg7"`
	Avg30            float64 `json:"avg30"`
	ReverseHoloAvg1  float64 `json:"reverseHoloAvg1"`
	ReverseHoloAvg7  float64 `json:"reverseHoloAvg7"`
	ReverseHoloAvg30 float64 `json:"reverseHoloAvg30"`
}

// TCGPlayer carries USD prices keyed by print variant ("normal",
// "holofoil", "reverseHolofoil", "1stEditionHolofoil", ...).
type TCGPlayer struct {
	URL       string                    `json:"url"`
	UpdatedAt string                    `json:"updatedAt"`
	Prices    map[string]TCGPlayerPrice `json:"prices"`
}

type TCGPlayerPrice struct {
	Low       float64 `json:"low"`
	Mid       float64 `json:"mid"`
	High      float64 `json:"high"`
	Market    float64 `json:"market"`
	DirectLow float64 `json:"directLow"`
}

// APIError is the error body returned by the API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pokemontcg API error (status %d): %s", e.Status, e.Message)
}

func parseAPIError(status int, body []byte) error {
	var wrapper struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		wrapper.Error.Status = status
		return &wrapper.Error
	}
	return &APIError{Status: status, Message: string(body)}
}

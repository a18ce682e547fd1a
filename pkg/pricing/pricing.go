// Package pricing computes the price shown before a verification is paid for.
package pricing

import (
	"encoding/json"
	"strconv"
)

const (
	// BasePrice is the list price of one verification in rupees.
	BasePrice = 100.0
	// DiscountPercentage is the standing promotional discount.
	DiscountPercentage = 80.0
	// GSTRate is the goods and services tax applied after discount.
	GSTRate = 0.18
)

// Quote is a derived price breakdown. It is never persisted.
type Quote struct {
	Original   float64
	Discounted float64
	Tax        float64
	Final      float64
}

// Calculate applies discountPct to base and adds GST on the discounted amount.
func Calculate(base, discountPct float64) Quote {
	discounted := base * (1 - discountPct/100)
	tax := discounted * GSTRate
	return Quote{
		Original:   base,
		Discounted: discounted,
		Tax:        tax,
		Final:      discounted + tax,
	}
}

// Current returns the quote for the fixed business constants.
func Current() Quote {
	return Calculate(BasePrice, DiscountPercentage)
}

// Format renders an amount with two decimals.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FinalAmount is the numeric final price, rounded to paise, handed to payment.
func (q Quote) FinalAmount() float64 {
	v, _ := strconv.ParseFloat(Format(q.Final), 64)
	return v
}

// FinalPaise is the final price in the smallest currency unit.
func (q Quote) FinalPaise() int64 {
	return int64(q.FinalAmount()*100 + 0.5)
}

// MarshalJSON renders the display strings alongside the numeric final amount.
func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Original           string  `json:"original"`
		Discounted         string  `json:"discounted"`
		Tax                string  `json:"tax"`
		Final              string  `json:"final"`
		Amount             float64 `json:"amount"`
		DiscountPercentage float64 `json:"discount_percentage"`
	}{
		Original:           Format(q.Original),
		Discounted:         Format(q.Discounted),
		Tax:                Format(q.Tax),
		Final:              Format(q.Final),
		Amount:             q.FinalAmount(),
		DiscountPercentage: DiscountPercentage,
	})
}

// UnmarshalJSON reads the wire form back, trusting the numeric amount.
func (q *Quote) UnmarshalJSON(b []byte) error {
	var wire struct {
		Original   string  `json:"original"`
		Discounted string  `json:"discounted"`
		Tax        string  `json:"tax"`
		Amount     float64 `json:"amount"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	q.Original, _ = strconv.ParseFloat(wire.Original, 64)
	q.Discounted, _ = strconv.ParseFloat(wire.Discounted, 64)
	q.Tax, _ = strconv.ParseFloat(wire.Tax, 64)
	q.Final = wire.Amount
	return nil
}

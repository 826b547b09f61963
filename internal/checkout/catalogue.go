package checkout

import (
	"errors"
	"fmt"
	"math"

	"github.com/hackgods/tarot-booking/internal/scheduling"
)

var (
	ErrUnknownService = errors.New("unknown service")
	ErrNotBookable    = errors.New("service cannot be booked into a slot")
)

// Offering is one entry of the service menu. Offerings with Duration 0 are
// delivered asynchronously and have no slot.
type Offering struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Duration   int    `json:"duration_minutes,omitempty"`
	PriceCents int64  `json:"price_cents"`
}

func (o Offering) Bookable() bool {
	return o.Duration > 0
}

var defaultOfferings = []Offering{
	{Code: "delivered-3", Name: "3 Questions", PriceCents: 2200},
	{Code: "delivered-5", Name: "5 Questions", PriceCents: 3300},
	{Code: "live-20", Name: "20 Minutes", Duration: 20, PriceCents: 6600},
	{Code: "live-40", Name: "40 Minutes", Duration: 40, PriceCents: 12900},
	{Code: "aura", Name: "Aura Scanning", PriceCents: 1500},
}

type Quote struct {
	Offering    Offering
	Type        scheduling.WindowType
	AmountCents int64
	Currency    string
}

// PriceListing is what the services endpoint shows per offering.
type PriceListing struct {
	Offering
	Bookable       bool   `json:"bookable"`
	Currency       string `json:"currency"`
	EmergencyCents int64  `json:"emergency_price_cents,omitempty"`
}

type Catalogue struct {
	offerings     []Offering
	byCode        map[string]Offering
	surchargeRate float64
	currency      string
}

// NewCatalogue builds the default menu. surchargeRate is the fraction added
// to the base price for emergency slots and must be within [0, 1].
func NewCatalogue(surchargeRate float64, currency string) (*Catalogue, error) {
	return NewCatalogueWith(defaultOfferings, surchargeRate, currency)
}

func NewCatalogueWith(offerings []Offering, surchargeRate float64, currency string) (*Catalogue, error) {
	if math.IsNaN(surchargeRate) || surchargeRate < 0 || surchargeRate > 1 {
		return nil, fmt.Errorf("surcharge rate %v out of range [0, 1]", surchargeRate)
	}
	if currency == "" {
		return nil, errors.New("currency is required")
	}
	c := &Catalogue{
		offerings:     append([]Offering(nil), offerings...),
		byCode:        make(map[string]Offering, len(offerings)),
		surchargeRate: surchargeRate,
		currency:      currency,
	}
	for _, o := range offerings {
		c.byCode[o.Code] = o
	}
	return c, nil
}

func (c *Catalogue) Lookup(code string) (Offering, error) {
	o, ok := c.byCode[code]
	if !ok {
		return Offering{}, fmt.Errorf("%w: %q", ErrUnknownService, code)
	}
	return o, nil
}

// Quote prices an offering for the given window type.
func (c *Catalogue) Quote(code string, t scheduling.WindowType) (Quote, error) {
	o, err := c.Lookup(code)
	if err != nil {
		return Quote{}, err
	}
	amount := o.PriceCents
	if t == scheduling.WindowEmergency {
		amount = c.emergencyPrice(o.PriceCents)
	}
	return Quote{Offering: o, Type: t, AmountCents: amount, Currency: c.currency}, nil
}

func (c *Catalogue) List() []PriceListing {
	out := make([]PriceListing, 0, len(c.offerings))
	for _, o := range c.offerings {
		l := PriceListing{Offering: o, Bookable: o.Bookable(), Currency: c.currency}
		if o.Bookable() {
			l.EmergencyCents = c.emergencyPrice(o.PriceCents)
		}
		out = append(out, l)
	}
	return out
}

func (c *Catalogue) emergencyPrice(base int64) int64 {
	return int64(math.Round(float64(base) * (1 + c.surchargeRate)))
}

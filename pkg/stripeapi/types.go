package stripeapi

import (
	"encoding/json"
	"time"
)

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// ChargeStatus is the settlement state of a charge
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
)

// InvoiceLineTypeSubscription marks invoice line items that bill a
// subscription period (as opposed to one-off invoice items).
const InvoiceLineTypeSubscription = "subscription"

// Recurring describes a price's billing cadence
type Recurring struct {
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count"`
}

// Price is a Stripe price object. UnitAmount is in minor units (cents).
type Price struct {
	ID         string     `json:"id"`
	Nickname   string     `json:"nickname"`
	ProductID  string     `json:"product"`
	UnitAmount int64      `json:"unit_amount"`
	Recurring  *Recurring `json:"recurring"`
}

func (p *Price) validate() error {
	if p.ID == "" {
		return &ParseError{Resource: "price", Field: "id"}
	}
	return nil
}

// Product is a Stripe product object
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *Product) validate() error {
	if p.ID == "" {
		return &ParseError{Resource: "product", Field: "id"}
	}
	return nil
}

// SubscriptionItem is one line of a subscription, carrying its expanded price
type SubscriptionItem struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
	Price    *Price `json:"price"`
}

// Subscription is a Stripe subscription with its items and expanded prices
type Subscription struct {
	ID     string             `json:"id"`
	Status SubscriptionStatus `json:"status"`
	Items  struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

func (s *Subscription) validate() error {
	if s.ID == "" {
		return &ParseError{Resource: "subscription", Field: "id"}
	}
	if s.Status == "" {
		return &ParseError{Resource: "subscription", Field: "status"}
	}
	for i := range s.Items.Data {
		item := &s.Items.Data[i]
		if item.Price == nil {
			return &ParseError{Resource: "subscription", Field: "items.data.price"}
		}
		if err := item.Price.validate(); err != nil {
			return err
		}
	}
	return nil
}

// BalanceTransaction carries the fee breakdown of a settled charge.
// Amounts are in minor units.
type BalanceTransaction struct {
	ID  string `json:"id"`
	Fee int64  `json:"fee"`
	Net int64  `json:"net"`
}

// BalanceTransactionRef decodes Stripe's polymorphic field: a bare id
// string when unexpanded, a full object when expanded.
type BalanceTransactionRef struct {
	Transaction *BalanceTransaction
}

func (r *BalanceTransactionRef) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		return nil
	}
	var bt BalanceTransaction
	if err := json.Unmarshal(data, &bt); err != nil {
		return err
	}
	r.Transaction = &bt
	return nil
}

// Charge is a Stripe charge. Amount is in minor units.
type Charge struct {
	ID                 string                `json:"id"`
	Created            int64                 `json:"created"`
	Status             ChargeStatus          `json:"status"`
	Paid               bool                  `json:"paid"`
	Amount             int64                 `json:"amount"`
	Currency           string                `json:"currency"`
	InvoiceID          string                `json:"invoice"`
	BalanceTransaction BalanceTransactionRef `json:"balance_transaction"`
}

// CreatedAt returns the charge creation time
func (c *Charge) CreatedAt() time.Time {
	return time.Unix(c.Created, 0).UTC()
}

// FeeDetails returns the expanded balance transaction, or nil when the
// API returned only a reference.
func (c *Charge) FeeDetails() *BalanceTransaction {
	return c.BalanceTransaction.Transaction
}

func (c *Charge) validate() error {
	if c.ID == "" {
		return &ParseError{Resource: "charge", Field: "id"}
	}
	if c.Created == 0 {
		return &ParseError{Resource: "charge", Field: "created"}
	}
	if c.Status == "" {
		return &ParseError{Resource: "charge", Field: "status"}
	}
	return nil
}

// InvoiceLine is one line item of an invoice with its expanded price
type InvoiceLine struct {
	Type     string `json:"type"`
	Quantity int64  `json:"quantity"`
	Price    *Price `json:"price"`
}

// Invoice links a charge back to the subscription it billed
type Invoice struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription"`
	Lines          struct {
		Data []InvoiceLine `json:"data"`
	} `json:"lines"`
}

func (i *Invoice) validate() error {
	if i.ID == "" {
		return &ParseError{Resource: "invoice", Field: "id"}
	}
	return nil
}

// BillingData is the result of one full fetch pass: everything the
// aggregator needs to compute a snapshot.
type BillingData struct {
	Subscriptions []Subscription
	Prices        map[string]Price
	Products      map[string]Product
	Charges       []Charge
	Invoices      map[string]Invoice
}

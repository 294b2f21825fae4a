package stripeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/stripe-exporter/pkg/observability"
)

const (
	pageLimit = 100

	productCacheSize = 512
	invoiceCacheSize = 4096

	maxErrorBodyBytes = 4096
)

// Client issues read requests against the Stripe API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *observability.Logger

	// Products and invoices change rarely relative to the poll
	// interval, so lookups are cached across cycles.
	products *lru.Cache[string, Product]
	invoices *lru.Cache[string, Invoice]
}

// NewClient creates a Stripe API client
func NewClient(baseURL, apiKey string, logger *observability.Logger) (*Client, error) {
	products, err := lru.New[string, Product](productCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create product cache: %w", err)
	}
	invoices, err := lru.New[string, Invoice](invoiceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice cache: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   logger,
		products: products,
		invoices: invoices,
	}, nil
}

// get issues a single authenticated GET and decodes the response
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("request to %s failed: %w", path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return classifyStatus(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Resource: path, Err: err}
	}
	return nil
}

// listEnvelope is Stripe's paginated list wrapper
type listEnvelope[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// listAll follows cursor pagination until the collection is exhausted
func listAll[T any](ctx context.Context, c *Client, path string, params url.Values, idOf func(*T) string, validate func(*T) error) ([]T, error) {
	var all []T
	cursor := ""

	for {
		page := url.Values{}
		for k, vs := range params {
			page[k] = vs
		}
		page.Set("limit", strconv.Itoa(pageLimit))
		if cursor != "" {
			page.Set("starting_after", cursor)
		}

		var envelope listEnvelope[T]
		if err := c.get(ctx, path, page, &envelope); err != nil {
			return nil, err
		}

		for i := range envelope.Data {
			if err := validate(&envelope.Data[i]); err != nil {
				return nil, err
			}
		}
		all = append(all, envelope.Data...)

		if !envelope.HasMore || len(envelope.Data) == 0 {
			return all, nil
		}
		cursor = idOf(&envelope.Data[len(envelope.Data)-1])
	}
}

// ListActiveSubscriptions fetches all active subscriptions with their
// prices expanded
func (c *Client) ListActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	params := url.Values{}
	params.Set("status", string(SubscriptionStatusActive))
	params.Add("expand[]", "data.items.data.price")

	return listAll(ctx, c, "/subscriptions", params,
		func(s *Subscription) string { return s.ID },
		func(s *Subscription) error { return s.validate() })
}

// ListPrices fetches all active prices
func (c *Client) ListPrices(ctx context.Context) ([]Price, error) {
	params := url.Values{}
	params.Set("active", "true")

	return listAll(ctx, c, "/prices", params,
		func(p *Price) string { return p.ID },
		func(p *Price) error { return p.validate() })
}

// ListCharges fetches all charges created at or after since, with fee
// details expanded
func (c *Client) ListCharges(ctx context.Context, since time.Time) ([]Charge, error) {
	params := url.Values{}
	params.Set("created[gte]", strconv.FormatInt(since.Unix(), 10))
	params.Add("expand[]", "data.balance_transaction")

	return listAll(ctx, c, "/charges", params,
		func(ch *Charge) string { return ch.ID },
		func(ch *Charge) error { return ch.validate() })
}

// GetProduct fetches a product by ID, consulting the cache first
func (c *Client) GetProduct(ctx context.Context, id string) (Product, error) {
	if product, ok := c.products.Get(id); ok {
		return product, nil
	}

	var product Product
	if err := c.get(ctx, "/products/"+id, nil, &product); err != nil {
		return Product{}, err
	}
	if err := product.validate(); err != nil {
		return Product{}, err
	}

	c.products.Add(id, product)
	return product, nil
}

// GetInvoice fetches an invoice by ID with line prices expanded,
// consulting the cache first
func (c *Client) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	if invoice, ok := c.invoices.Get(id); ok {
		return invoice, nil
	}

	params := url.Values{}
	params.Add("expand[]", "lines.data.price")

	var invoice Invoice
	if err := c.get(ctx, "/invoices/"+id, params, &invoice); err != nil {
		return Invoice{}, err
	}
	if err := invoice.validate(); err != nil {
		return Invoice{}, err
	}

	c.invoices.Add(id, invoice)
	return invoice, nil
}

// FetchAll runs one full fetch pass: subscriptions, prices, and charges
// concurrently, then the product and invoice lookups needed to resolve
// plan names. Lookup failures for individual products or invoices
// degrade to the documented fallbacks (raw id, unattributed charge)
// instead of failing the cycle; auth errors always fail it.
func (c *Client) FetchAll(ctx context.Context, chargesSince time.Time) (*BillingData, error) {
	var (
		subscriptions []Subscription
		prices        []Price
		charges       []Charge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subscriptions, err = c.ListActiveSubscriptions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = c.ListPrices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		charges, err = c.ListCharges(gctx, chargesSince)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &BillingData{
		Subscriptions: subscriptions,
		Prices:        make(map[string]Price, len(prices)),
		Products:      make(map[string]Product),
		Charges:       charges,
		Invoices:      make(map[string]Invoice),
	}
	for _, price := range prices {
		data.Prices[price.ID] = price
	}

	// Invoices first: their line prices may reference products that no
	// listed price or subscription does (archived prices, for one), and
	// those products are needed for charge attribution.
	if err := c.resolveInvoices(ctx, data); err != nil {
		return nil, err
	}
	if err := c.resolveProducts(ctx, data); err != nil {
		return nil, err
	}

	return data, nil
}

// resolveProducts fetches every product referenced by a price that has
// no nickname, so display names can fall back to the product name
func (c *Client) resolveProducts(ctx context.Context, data *BillingData) error {
	wanted := make(map[string]struct{})
	collect := func(price *Price) {
		if price != nil && price.Nickname == "" && price.ProductID != "" {
			wanted[price.ProductID] = struct{}{}
		}
	}

	for _, price := range data.Prices {
		collect(&price)
	}
	for i := range data.Subscriptions {
		for j := range data.Subscriptions[i].Items.Data {
			collect(data.Subscriptions[i].Items.Data[j].Price)
		}
	}
	for _, invoice := range data.Invoices {
		for i := range invoice.Lines.Data {
			collect(invoice.Lines.Data[i].Price)
		}
	}

	for id := range wanted {
		product, err := c.GetProduct(ctx, id)
		if err != nil {
			if IsAuthError(err) {
				return err
			}
			c.logger.WithError(err).WithField("product_id", id).Warn("Product lookup failed, plan name will fall back to price id")
			continue
		}
		data.Products[id] = product
	}
	return nil
}

// resolveInvoices fetches the invoice for every successful charge that
// references one, so charges can be attributed to plans
func (c *Client) resolveInvoices(ctx context.Context, data *BillingData) error {
	for i := range data.Charges {
		charge := &data.Charges[i]
		if charge.Status != ChargeStatusSucceeded || !charge.Paid || charge.InvoiceID == "" {
			continue
		}
		if _, ok := data.Invoices[charge.InvoiceID]; ok {
			continue
		}

		invoice, err := c.GetInvoice(ctx, charge.InvoiceID)
		if err != nil {
			if IsAuthError(err) {
				return err
			}
			c.logger.WithError(err).WithField("invoice_id", charge.InvoiceID).Warn("Invoice lookup failed, charge will stay unattributed")
			continue
		}
		data.Invoices[charge.InvoiceID] = invoice
	}
	return nil
}

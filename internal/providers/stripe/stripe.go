// Package stripe is a thin form-encoded client for the handful of Stripe
// invoice endpoints the settlement paths use. No SDK: the surface is five
// calls and the wire format is stable.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrMissingAPIKey = errors.New("stripe_config_missing")

// Invoice is the subset of Stripe's invoice object the platform stores.
type Invoice struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	InvoicePDF       string `json:"invoice_pdf"`
	PaymentIntent    string `json:"payment_intent"`
	Total            int64  `json:"total"`
	Currency         string `json:"currency"`
	CollectionMethod string `json:"collection_method"`
}

// InvoiceItem is the subset of Stripe's invoice item object we read back.
type InvoiceItem struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type InvoiceItemParams struct {
	CustomerID  string
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

type InvoiceParams struct {
	CustomerID                  string
	CollectionMethod            string
	DaysUntilDue                int
	AutoAdvance                 bool
	DefaultPaymentMethod        string
	PaymentMethodTypes          []string
	PendingInvoiceItemsBehavior string
	Metadata                    map[string]string
}

// Gateway is the outbound payment surface. Settlement code depends on this
// interface so tests can substitute a fake.
type Gateway interface {
	CreateInvoiceItem(ctx context.Context, params InvoiceItemParams) (*InvoiceItem, error)
	CreateInvoice(ctx context.Context, params InvoiceParams) (*Invoice, error)
	FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	PayInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	SendInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type Option func(*Client)

func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.client = httpClient }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: "https://api.stripe.com",
		client:  &http.Client{Timeout: 12 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateInvoiceItem(ctx context.Context, params InvoiceItemParams) (*InvoiceItem, error) {
	values := url.Values{}
	values.Set("customer", params.CustomerID)
	values.Set("amount", strconv.FormatInt(params.Amount, 10))
	values.Set("currency", strings.ToLower(params.Currency))
	values.Set("description", params.Description)
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	var item InvoiceItem
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoiceitems", values, "", &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, errors.New("stripe_response_invalid")
	}
	return &item, nil
}

func (c *Client) CreateInvoice(ctx context.Context, params InvoiceParams) (*Invoice, error) {
	values := url.Values{}
	values.Set("customer", params.CustomerID)
	values.Set("auto_advance", strconv.FormatBool(params.AutoAdvance))
	if params.CollectionMethod != "" {
		values.Set("collection_method", params.CollectionMethod)
	}
	if params.DaysUntilDue > 0 {
		values.Set("days_until_due", strconv.Itoa(params.DaysUntilDue))
	}
	if params.DefaultPaymentMethod != "" {
		values.Set("default_payment_method", params.DefaultPaymentMethod)
	}
	for _, pm := range params.PaymentMethodTypes {
		values.Add("payment_settings[payment_method_types][]", pm)
	}
	if params.PendingInvoiceItemsBehavior != "" {
		values.Set("pending_invoice_items_behavior", params.PendingInvoiceItemsBehavior)
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	var invoice Invoice
	key := ""
	if id := params.Metadata["scheduled_charge_id"]; id != "" {
		key = "charge:" + id
	}
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoices", values, key, &invoice); err != nil {
		return nil, err
	}
	if invoice.ID == "" {
		return nil, errors.New("stripe_response_invalid")
	}
	return &invoice, nil
}

func (c *Client) FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	return c.invoiceAction(ctx, invoiceID, "finalize")
}

func (c *Client) PayInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	return c.invoiceAction(ctx, invoiceID, "pay")
}

func (c *Client) SendInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	return c.invoiceAction(ctx, invoiceID, "send")
}

func (c *Client) invoiceAction(ctx context.Context, invoiceID, action string) (*Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return nil, errors.New("stripe_invoice_id_missing")
	}
	var invoice Invoice
	path := "/v1/invoices/" + invoiceID + "/" + action
	if err := c.doRequest(ctx, http.MethodPost, path, url.Values{}, "", &invoice); err != nil {
		return nil, err
	}
	if invoice.ID == "" {
		return nil, errors.New("stripe_response_invalid")
	}
	return &invoice, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return errors.New(message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

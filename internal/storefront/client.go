package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/pkg/httpclient"
)

const (
	serviceName = "storefront"

	// cartCookie is the cookie the platform uses to find a customer's cart.
	cartCookie = "cart"

	collectionPageSize = 250
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the storefront's AJAX API. Reads are retried by the
// underlying client; mutations are sent once.
type Client struct {
	http               HTTPDoer
	baseURL            string
	maxCollectionPages int
}

// NewClient creates a storefront client rooted at baseURL
// (e.g. "https://shop.example.com").
func NewClient(doer HTTPDoer, baseURL string, maxCollectionPages int) *Client {
	if maxCollectionPages <= 0 {
		maxCollectionPages = 20
	}
	return &Client{
		http:               doer,
		baseURL:            strings.TrimRight(baseURL, "/"),
		maxCollectionPages: maxCollectionPages,
	}
}

// CheckoutURL returns the platform checkout endpoint.
func (c *Client) CheckoutURL() (*url.URL, error) {
	u, err := url.Parse(c.baseURL + "/checkout")
	if err != nil {
		return nil, fmt.Errorf("parse checkout url: %w", err)
	}
	return u, nil
}

// --- Wire types ---

type cartPayload struct {
	Token string     `json:"token"`
	Items []cartItem `json:"items"`
}

type cartItem struct {
	Key            string         `json:"key"`
	VariantID      int64          `json:"variant_id"`
	ProductID      int64          `json:"product_id"`
	Handle         string         `json:"handle"`
	Title          string         `json:"title"`
	Quantity       int            `json:"quantity"`
	Price          int64          `json:"price"`
	FinalLinePrice int64          `json:"final_line_price"`
	Properties     map[string]any `json:"properties"`
}

// Product is a product as returned by /products/{handle}.js.
type Product struct {
	ID       int64     `json:"id"`
	Handle   string    `json:"handle"`
	Title    string    `json:"title"`
	Tags     []string  `json:"tags"`
	Variants []Variant `json:"variants"`
}

// Variant is one purchasable option of a Product. Price is in minor units.
type Variant struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// CatalogItems flattens the product into one catalog item per variant.
func (p *Product) CatalogItems() []domain.CatalogItem {
	items := make([]domain.CatalogItem, len(p.Variants))
	for i, v := range p.Variants {
		items[i] = domain.CatalogItem{
			ProductID: p.ID,
			VariantID: v.ID,
			Handle:    p.Handle,
			Title:     v.Title,
			UnitPrice: v.Price,
			Tags:      p.Tags,
		}
	}
	return items
}

// Variant returns the variant with id, if present.
func (p *Product) Variant(id int64) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

type collectionPage struct {
	Products []struct {
		ID int64 `json:"id"`
	} `json:"products"`
}

// --- Cart ---

// GetCart reads the cart addressed by token. Tags and collection membership
// are not part of the cart payload; see Catalog.Enrich.
func (c *Client) GetCart(ctx context.Context, token string) (*domain.Cart, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/cart.js", token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	var payload cartPayload
	if err := httpclient.DecodeJSON(resp, serviceName, &payload); err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	cart := &domain.Cart{Token: payload.Token, Lines: make([]domain.CartLine, len(payload.Items))}
	if cart.Token == "" {
		cart.Token = token
	}
	for i, it := range payload.Items {
		cart.Lines[i] = domain.CartLine{
			Key: it.Key,
			Item: domain.CatalogItem{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Handle:    it.Handle,
				Title:     it.Title,
				UnitPrice: it.Price,
			},
			Quantity:   it.Quantity,
			LinePrice:  it.FinalLinePrice,
			Properties: stringProperties(it.Properties),
		}
	}
	return cart, nil
}

// AddLine adds quantity of variantID with the given line properties.
func (c *Client) AddLine(ctx context.Context, token string, variantID int64, quantity int, properties map[string]string) error {
	type addItem struct {
		ID         int64             `json:"id"`
		Quantity   int               `json:"quantity"`
		Properties map[string]string `json:"properties,omitempty"`
	}
	body := struct {
		Items []addItem `json:"items"`
	}{Items: []addItem{{ID: variantID, Quantity: quantity, Properties: properties}}}

	return c.mutate(ctx, "/cart/add.js", token, body, "add cart line")
}

// ChangeLineQuantity sets the quantity of the line identified by key.
// Quantity 0 removes the line.
func (c *Client) ChangeLineQuantity(ctx context.Context, token, key string, quantity int) error {
	body := struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}{ID: key, Quantity: quantity}

	return c.mutate(ctx, "/cart/change.js", token, body, "change cart line")
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.mutate(ctx, "/cart/clear.js", token, nil, "clear cart")
}

// --- Catalog ---

// GetProduct reads a product by handle.
func (c *Client) GetProduct(ctx context.Context, handle string) (*Product, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/products/"+url.PathEscape(handle)+".js", "", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read product %s: %w", handle, err)
	}

	var p Product
	if err := httpclient.DecodeJSON(resp, serviceName, &p); err != nil {
		return nil, fmt.Errorf("read product %s: %w", handle, err)
	}
	return &p, nil
}

// CollectionProductIDs lists the ids of every product in the collection.
// A collection larger than the page budget is reported as an error so the
// caller treats membership as unverified.
func (c *Client) CollectionProductIDs(ctx context.Context, handle string) ([]int64, error) {
	var ids []int64
	for page := 1; page <= c.maxCollectionPages; page++ {
		path := "/collections/" + url.PathEscape(handle) + "/products.json?limit=" +
			strconv.Itoa(collectionPageSize) + "&page=" + strconv.Itoa(page)

		req, err := c.newRequest(ctx, http.MethodGet, path, "", nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("read collection %s: %w", handle, err)
		}

		var body collectionPage
		if err := httpclient.DecodeJSON(resp, serviceName, &body); err != nil {
			return nil, fmt.Errorf("read collection %s: %w", handle, err)
		}
		for _, p := range body.Products {
			ids = append(ids, p.ID)
		}
		if len(body.Products) < collectionPageSize {
			return ids, nil
		}
	}
	return nil, fmt.Errorf("collection %s exceeds %d pages", handle, c.maxCollectionPages)
}

// --- helpers ---

func (c *Client) mutate(ctx context.Context, path, token string, body any, op string) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, token, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := httpclient.Drain(resp, serviceName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cartCookie, Value: token})
	}
	return req, nil
}

// stringProperties flattens line item properties; the platform allows
// non-string values.
func stringProperties(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

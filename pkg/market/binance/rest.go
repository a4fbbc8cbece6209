package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Client wraps REST access to Binance spot.
type Client struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	HTTPClient *http.Client
	RecvWindow int64 // ms

	// Courtesy limiter: the bot polls several symbols back to back and
	// must stay far from the exchange request weight caps.
	limiter *rate.Limiter
}

// NewClient builds a REST client; use testnet to switch base URLs.
func NewClient(apiKey, apiSecret string, testnet bool) *Client {
	base := "https://api.binance.com"
	if testnet {
		base = "https://testnet.binance.vision"
	}
	return &Client{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		RecvWindow: 5000,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Klines fetches up to limit historical candles via the public endpoint,
// oldest first.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	u := fmt.Sprintf("%s/api/v3/klines?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance klines status %d: %s", res.StatusCode, string(body))
	}

	// Each kline is a 12-element array of mixed numbers and numeric strings.
	raw := gjson.ParseBytes(body)
	if !raw.IsArray() {
		return nil, fmt.Errorf("binance klines: unexpected payload")
	}

	var klines []Kline
	raw.ForEach(func(_, item gjson.Result) bool {
		f := item.Array()
		if len(f) < 7 {
			return true
		}
		klines = append(klines, Kline{
			OpenTime:  f[0].Int(),
			Open:      f[1].Float(),
			High:      f[2].Float(),
			Low:       f[3].Float(),
			Close:     f[4].Float(),
			Volume:    f[5].Float(),
			CloseTime: f[6].Int(),
		})
		return true
	})
	return klines, nil
}

// FreeBalance returns the free (unlocked) balance for an asset.
func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	params := url.Values{}
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", params)
	if err != nil {
		return 0, err
	}

	bal := gjson.GetBytes(body, fmt.Sprintf(`balances.#(asset=="%s").free`, asset))
	if !bal.Exists() {
		return 0, nil // asset not held
	}
	return bal.Float(), nil
}

// MarketOrder submits a market order and returns the confirmed fill. An
// order that comes back unfilled is reported as an error so the caller
// never writes an unconfirmed trade to the ledger.
func (c *Client) MarketOrder(ctx context.Context, symbol, side string, quantity float64) (Fill, error) {
	if quantity <= 0 {
		return Fill{}, errors.New("binance: order quantity must be positive")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", strings.ToUpper(side))
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(quantity))
	params.Set("newClientOrderId", uuid.NewString())
	params.Set("newOrderRespType", "FULL")

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return Fill{}, err
	}

	status := gjson.GetBytes(body, "status").String()
	if status != "FILLED" {
		return Fill{}, fmt.Errorf("binance: order %s %s not filled (status %s)", side, symbol, status)
	}

	// Average the fill legs; market orders may execute across several.
	var notional, qty float64
	gjson.GetBytes(body, "fills").ForEach(func(_, f gjson.Result) bool {
		p := f.Get("price").Float()
		q := f.Get("qty").Float()
		notional += p * q
		qty += q
		return true
	})
	if qty <= 0 {
		return Fill{}, fmt.Errorf("binance: order %s %s filled with no fill legs", side, symbol)
	}
	return Fill{Price: notional / qty, Quantity: qty}, nil
}

// doSigned signs the query and performs the HTTP request.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if c.APIKey == "" || c.APISecret == "" {
		return nil, errors.New("binance: API key/secret required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.RecvWindow, 10))
	params.Set("signature", sign(params.Encode(), c.APISecret))

	endpoint := c.BaseURL + path
	encoded := params.Encode()

	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("binance %s %s status %d: %s", method, path, res.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

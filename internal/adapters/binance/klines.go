package binance

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/alejandrodnm/phantomfill/internal/domain"
)

// Kline es una vela: solo nos interesan apertura y cierre.
type Kline struct {
	OpenTimeMs int64
	Open       float64
	Close      float64
}

// Outcome resuelve la ventana de la vela: cierre > apertura es YES.
func (k Kline) Outcome() domain.Outcome {
	return domain.OutcomeFromPrices(k.Open, k.Close)
}

// FetchKline devuelve la vela de interval que abre exactamente en openMs.
// found es false si Binance no tiene esa vela.
func (c *Client) FetchKline(ctx context.Context, symbol, interval string, openMs int64) (k Kline, found bool, err error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&limit=1",
		c.base, symbol, interval, openMs)

	// [[openTime, "open", "high", "low", "close", ...], ...]
	var raw [][]json.RawMessage
	if err := c.get(ctx, url, &raw); err != nil {
		return Kline{}, false, fmt.Errorf("binance.FetchKline: %s %s: %w", symbol, interval, err)
	}

	for _, candle := range raw {
		k, err := parseKline(candle)
		if err != nil {
			return Kline{}, false, fmt.Errorf("binance.FetchKline: %w", err)
		}
		if k.OpenTimeMs == openMs {
			return k, true, nil
		}
	}
	return Kline{}, false, nil
}

func parseKline(candle []json.RawMessage) (Kline, error) {
	if len(candle) < 5 {
		return Kline{}, fmt.Errorf("kline with %d fields", len(candle))
	}
	var (
		k                 Kline
		openStr, closeStr string
	)
	if err := json.Unmarshal(candle[0], &k.OpenTimeMs); err != nil {
		return Kline{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(candle[1], &openStr); err != nil {
		return Kline{}, fmt.Errorf("open: %w", err)
	}
	if err := json.Unmarshal(candle[4], &closeStr); err != nil {
		return Kline{}, fmt.Errorf("close: %w", err)
	}
	k.Open = domain.ParsePrice(openStr)
	k.Close = domain.ParsePrice(closeStr)
	return k, nil
}

// Resolver resuelve outcomes de ventanas up/down con la vela de Binance del
// mismo timeframe.
type Resolver struct {
	client *Client
	quote  string
}

// NewResolver crea un Resolver que consulta pares coin+USDT.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client, quote: "USDT"}
}

// Resolve implementa capture.OutcomeResolver. Una vela ausente devuelve
// OutcomeUnresolved sin error.
func (r *Resolver) Resolve(ctx context.Context, coin, timeframe string, openTs int64) (domain.Outcome, error) {
	symbol := strings.ToUpper(coin) + r.quote
	k, found, err := r.client.FetchKline(ctx, symbol, timeframe, openTs*1000)
	if err != nil {
		return domain.OutcomeUnresolved, err
	}
	if !found {
		return domain.OutcomeUnresolved, nil
	}
	return k.Outcome(), nil
}

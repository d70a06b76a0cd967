package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradequest/level-engine/internal/model"
)

// YahooSource implements Source using the Yahoo Finance chart API.
type YahooSource struct {
	Client  *http.Client
	BaseURL string
}

// NewYahooSource creates a Yahoo Finance source, optionally behind a proxy.
func NewYahooSource(proxyURL string) *YahooSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooSource{
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		BaseURL: "https://query1.finance.yahoo.com",
	}
}

func (y *YahooSource) Name() string { return "yahoo" }

// yahooChart is the subset of the chart response we read.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				RegularMarketHigh  float64 `json:"regularMarketDayHigh"`
				RegularMarketLow   float64 `json:"regularMarketDayLow"`
				RegularMarketVol   int64   `json:"regularMarketVolume"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *YahooSource) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.BaseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Quote{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: yahoo fetch %s: %v", ErrQuoteUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Quote{}, fmt.Errorf("%w: yahoo read body: %v", ErrQuoteUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Quote{}, fmt.Errorf("%w: yahoo status %d", ErrQuoteUnavailable, resp.StatusCode)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.Quote{}, fmt.Errorf("%w: yahoo decode: %v", ErrQuoteUnavailable, err)
	}
	if chart.Chart.Error != nil {
		return model.Quote{}, fmt.Errorf("%w: yahoo api error: %s", ErrQuoteUnavailable, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return model.Quote{}, fmt.Errorf("%w: yahoo returned no price for %s", ErrQuoteUnavailable, symbol)
	}

	meta := chart.Chart.Result[0].Meta
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	prev := decimal.NewFromFloat(meta.ChartPreviousClose)
	q := model.Quote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Unix(meta.RegularMarketTime, 0).UTC(),
	}
	if prev.IsPositive() {
		q.Change = price.Sub(prev)
		q.ChangePercent = q.Change.Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
	}
	if meta.RegularMarketHigh > 0 {
		h := decimal.NewFromFloat(meta.RegularMarketHigh)
		q.High = &h
	}
	if meta.RegularMarketLow > 0 {
		l := decimal.NewFromFloat(meta.RegularMarketLow)
		q.Low = &l
	}
	if meta.RegularMarketVol > 0 {
		v := meta.RegularMarketVol
		q.Volume = &v
	}
	return q, nil
}

package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

// BinanceConfig configures the futures REST source.
type BinanceConfig struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	ProxyURL    string
}

func (c BinanceConfig) withDefaults() BinanceConfig {
	out := c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}

// BinanceSource implements Source against the Binance USD-M futures REST API.
type BinanceSource struct {
	cfg    BinanceConfig
	client *futures.Client
	stats  SourceStats
}

func NewBinanceSource(cfg BinanceConfig) (*BinanceSource, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &BinanceSource{cfg: final, client: client}, nil
}

func (s *BinanceSource) Name() string { return "binance" }

// Stats exposes request counters for health endpoints.
func (s *BinanceSource) Stats() *SourceStats { return &s.stats }

func (s *BinanceSource) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	clean := exchangeSymbol(symbol)
	if clean == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		s.stats.RecordFailure(err)
		return nil, err
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	s.stats.RecordSuccess()
	return out, nil
}

func (s *BinanceSource) FetchFundingRate(ctx context.Context, symbol string) (float64, error) {
	clean := exchangeSymbol(symbol)
	if clean == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	rates, err := s.client.NewFundingRateService().Symbol(clean).Limit(1).Do(ctx)
	if err != nil {
		s.stats.RecordFailure(err)
		return 0, err
	}
	if len(rates) == 0 {
		s.stats.RecordSuccess()
		return 0, nil
	}
	s.stats.RecordSuccess()
	return parseFloat(rates[len(rates)-1].FundingRate), nil
}

// exchangeSymbol strips separators: Binance wants ETHUSDT, not ETH/USDT.
func exchangeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "/", "")
	return strings.ReplaceAll(symbol, "-", "")
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

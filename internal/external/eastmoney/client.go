package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
)

// DefaultBaseURL is the public K-line history host
const DefaultBaseURL = "https://push2his.eastmoney.com"

// kline field list: date, open, close, high, low, volume, amount,
// amplitude, pct_change, price_change, turnover
const klineFields = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"

// sharesPerLot converts the upstream volume (手) to shares
const sharesPerLot = 100

// Client handles communication with the Eastmoney quote API
// ⭐ SSOT: 동방재부 일봉 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Eastmoney client; an empty baseURL uses DefaultBaseURL
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("eastmoney"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// klineResponse is the envelope of /api/qt/stock/kline/get
type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Market int      `json:"market"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// SecID returns the market-qualified id: 1.<code> for Shanghai, 0.<code> otherwise
func SecID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// GetBars fetches unadjusted daily bars in [start, end].
// An unknown code yields an empty series and no error.
func (c *Client) GetBars(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	params := url.Values{}
	params.Set("secid", SecID(code))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", klineFields)
	params.Set("klt", "101") // 일봉
	params.Set("fqt", "0")   // 不复权
	params.Set("beg", start.Compact())
	params.Set("end", end.Compact())

	fullURL := fmt.Sprintf("%s/api/qt/stock/kline/get?%s", c.baseURL, params.Encode())

	var resp klineResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", code, err)
	}
	if resp.Data == nil {
		return nil, nil
	}

	series, skipped := ParseKlines(resp.Data.Klines)
	if skipped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"code":    code,
			"skipped": skipped,
		}).Debug("Skipped malformed kline rows")
	}

	c.logger.WithFields(map[string]interface{}{
		"code":  code,
		"count": series.Len(),
	}).Debug("Fetched bars")

	return series, nil
}

// ParseKlines converts "date,open,close,high,low,volume,amount,amplitude,pct,chg,turnover"
// rows into a series, returning how many rows were malformed
func ParseKlines(rows []string) (contracts.BarSeries, int) {
	bars := make([]contracts.Bar, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		bar, err := parseKline(row)
		if err != nil {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	return contracts.NewBarSeries(bars), skipped
}

func parseKline(row string) (contracts.Bar, error) {
	cols := strings.Split(row, ",")
	if len(cols) < 11 {
		return contracts.Bar{}, fmt.Errorf("expected 11 columns, got %d", len(cols))
	}

	date, err := contracts.ParseDate(cols[0])
	if err != nil {
		return contracts.Bar{}, err
	}

	nums := make([]float64, 10)
	for i := range nums {
		v, err := parseNumber(cols[i+1])
		if err != nil {
			return contracts.Bar{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		nums[i] = v
	}

	return contracts.Bar{
		TradeDate:   date,
		Open:        nums[0],
		Close:       nums[1],
		High:        nums[2],
		Low:         nums[3],
		Volume:      nums[4] * sharesPerLot,
		Amount:      nums[5],
		Amplitude:   nums[6],
		PctChange:   nums[7],
		PriceChange: nums[8],
		Turnover:    nums[9],
	}, nil
}

// parseNumber treats "-" and "" (suspended days) as zero
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

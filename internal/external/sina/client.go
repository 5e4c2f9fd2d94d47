package sina

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
)

// DefaultBaseURL is the Sina Finance quote host
const DefaultBaseURL = "https://vip.stock.finance.sina.com.cn"

// listPath is a paged HTML table with one row per listed A share
const listPath = "/q/go.php/vFinanceAnalyze/kind/mainindex/index.phtml"

// maxPages bounds pagination if the site keeps serving pages
const maxPages = 200

var (
	codeRe = regexp.MustCompile(`^\d{6}$`)
	utf8Re = regexp.MustCompile(`(?i)charset=["']?utf-8`)
)

// Client scrapes the stock list from Sina Finance
// ⭐ SSOT: 新浪 종목 목록 스크래핑은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	pageSize   int
}

// NewClient creates a new Sina client; an empty baseURL uses DefaultBaseURL
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("sina"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageSize:   100,
	}
}

// ListStocks walks the list pages until an empty or repeated page.
// Stocks are returned in page order without duplicates.
func (c *Client) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	var stocks []contracts.Stock
	seen := make(map[string]struct{})
	prevFirst := ""

	for page := 1; page <= maxPages; page++ {
		select {
		case <-ctx.Done():
			return stocks, ctx.Err()
		default:
		}

		url := fmt.Sprintf("%s%s?p=%d&num=%d", c.baseURL, listPath, page, c.pageSize)
		body, err := c.httpClient.GetBytes(ctx, url)
		if err != nil {
			return stocks, fmt.Errorf("fetch list page %d: %w", page, err)
		}

		rows, err := ParseListPage(body)
		if err != nil {
			return stocks, fmt.Errorf("parse list page %d: %w", page, err)
		}

		// 빈 페이지 또는 같은 페이지 반복이면 종료
		if len(rows) == 0 || rows[0].Code == prevFirst {
			break
		}
		prevFirst = rows[0].Code

		for _, s := range rows {
			if _, dup := seen[s.Code]; dup {
				continue
			}
			seen[s.Code] = struct{}{}
			stocks = append(stocks, s)
		}
	}

	c.logger.WithField("count", len(stocks)).Info("Fetched stock list")
	return stocks, nil
}

// ParseListPage extracts (code, name) pairs from one GBK or UTF-8 page
func ParseListPage(body []byte) ([]contracts.Stock, error) {
	html, err := decodePage(body)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var stocks []contracts.Stock
	doc.Find("table#dataTable tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header
		}

		code := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		if !codeRe.MatchString(code) || name == "" {
			return
		}
		stocks = append(stocks, contracts.Stock{Code: code, Name: name})
	})

	return stocks, nil
}

// decodePage converts GBK to UTF-8 unless the page declares UTF-8
func decodePage(body []byte) (string, error) {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if utf8Re.Match(head) {
		return string(body), nil
	}

	reader := transform.NewReader(bytes.NewReader(body), simplifiedchinese.GBK.NewDecoder())
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode gbk: %w", err)
	}
	return string(data), nil
}

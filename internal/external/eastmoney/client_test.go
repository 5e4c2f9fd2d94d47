package eastmoney

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
)

const klineBody = `{"rc":0,"data":{"code":"600000","market":1,"name":"浦发银行","klines":[
"2024-01-12,10.90,10.84,10.95,10.80,1500,1626000.00,1.38,-0.46,-0.05,0.01",
"2024-01-10,10.10,11.00,11.00,10.05,800,880000.00,9.50,9.90,0.99,0.01",
"2024-01-11,11.00,10.89,11.05,10.85,1000,1089000.00,1.82,-1.00,-0.11,0.01",
"garbage",
"2024-01-15,10.85,11.06,11.10,10.84,3000,3318000.00,2.40,2.03,0.22,0.02"
]}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpClient := httputil.New(logger.Nop()).DisableRetry()
	return NewClient(httpClient, logger.Nop(), srv.URL)
}

func TestGetBars(t *testing.T) {
	var query map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/stock/kline/get", r.URL.Path)
		query = map[string]string{
			"secid": r.URL.Query().Get("secid"),
			"beg":   r.URL.Query().Get("beg"),
			"end":   r.URL.Query().Get("end"),
			"klt":   r.URL.Query().Get("klt"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klineBody))
	})

	series, err := c.GetBars(context.Background(), "600000",
		contracts.MustParseDate("2024-01-01"), contracts.MustParseDate("2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, "1.600000", query["secid"])
	assert.Equal(t, "20240101", query["beg"])
	assert.Equal(t, "20240115", query["end"])
	assert.Equal(t, "101", query["klt"])

	require.Equal(t, 4, series.Len())
	// sorted ascending regardless of upstream order
	assert.Equal(t, contracts.MustParseDate("2024-01-10"), series[0].TradeDate)
	assert.Equal(t, contracts.MustParseDate("2024-01-15"), series[3].TradeDate)
	assert.Equal(t, 9.9, series[0].PctChange)
	assert.Equal(t, 11.06, series[3].Close)
	assert.Equal(t, 300000.0, series[3].Volume) // 3000 lots
}

func TestGetBars_UnknownCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":0,"data":null}`))
	})

	series, err := c.GetBars(context.Background(), "000000", 20240101, 20240115)
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())
}

func TestGetBars_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetBars(context.Background(), "600000", 20240101, 20240115)
	require.Error(t, err)

	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestSecID(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"600000", "1.600000"},
		{"688981", "1.688981"},
		{"000001", "0.000001"},
		{"300750", "0.300750"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecID(tt.code), tt.code)
	}
}

func TestParseKlines(t *testing.T) {
	tests := []struct {
		name    string
		rows    []string
		want    int
		skipped int
	}{
		{"empty", nil, 0, 0},
		{"valid", []string{"2024-01-15,1,2,3,0.5,100,200,1,2,0.1,0.3"}, 1, 0},
		{"suspended dashes", []string{"2024-01-15,-,-,-,-,0,0,-,-,-,-"}, 1, 0},
		{"short row", []string{"2024-01-15,1,2"}, 0, 1},
		{"bad date", []string{"15/01/2024,1,2,3,0.5,100,200,1,2,0.1,0.3"}, 0, 1},
		{"bad number", []string{"2024-01-15,x,2,3,0.5,100,200,1,2,0.1,0.3"}, 0, 1},
		{"duplicate date keeps first", []string{
			"2024-01-15,1,2,3,0.5,100,200,1,2,0.1,0.3",
			"2024-01-15,9,9,9,9,900,900,9,9,9,9",
		}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, skipped := ParseKlines(tt.rows)
			assert.Equal(t, tt.want, series.Len())
			assert.Equal(t, tt.skipped, skipped)
		})
	}
}

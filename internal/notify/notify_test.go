package notify

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

func sampleReport() *backtest.Report {
	results := []contracts.MatchResult{
		{Code: "600000", Name: "浦发银行", MatchDate: contracts.MustParseDate("2024-01-12"), MatchPrice: 10, CurrentPrice: 11},
		{Code: "000001", Name: "平安银行", MatchDate: contracts.MustParseDate("2024-01-15"), MatchPrice: 10, CurrentPrice: 9.5},
	}
	return &backtest.Report{
		Strategy: "daily_limit_up_pullback",
		Window: backtest.Window{
			Start: contracts.MustParseDate("2023-11-18"),
			End:   contracts.MustParseDate("2024-01-15"),
		},
		Universe:  3000,
		Completed: 3000,
		Matched:   2,
		Results:   results,
		Summary:   backtest.Summarize(results),
	}
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(sampleReport())

	assert.Contains(t, out, "策略: daily_limit_up_pullback")
	assert.Contains(t, out, "1. 600000 浦发银行 | 匹配日: 2024-01-12 | 匹配价: 10.00 | 现价: 11.00 | 涨跌: +10.00%")
	assert.Contains(t, out, "2. 000001 平安银行 | 匹配日: 2024-01-15 | 匹配价: 10.00 | 现价: 9.50 | 涨跌: -5.00%")
	assert.Contains(t, out, "共 2 只 | 上涨 1 | 胜率 50.0% | 平均 +2.50%")
}

func TestFormatReport_Empty(t *testing.T) {
	report := sampleReport()
	report.Results = nil
	report.Summary = backtest.Summarize(nil)

	out := FormatReport(report)
	assert.Contains(t, out, "未找到符合条件的股票")
	assert.False(t, strings.Contains(out, "胜率"))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "每日选股结果 2024-01-15 (2)", Subject(sampleReport()))
}

func TestMailer_Disabled(t *testing.T) {
	m := NewMailer(config.SMTPConfig{}, logger.Nop())
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.Send(context.Background(), Message{Subject: "x"}), ErrDisabled)
}

func TestMailer_Build(t *testing.T) {
	attachment := filepath.Join(t.TempDir(), "daily_results.jsonl")
	require.NoError(t, os.WriteFile(attachment, []byte("{}\n"), 0o644))

	m := NewMailer(config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 465,
		From: "bot@example.com",
		To:   []string{"a@example.com", "b@example.com"},
	}, logger.Nop())

	msg, err := m.build(Message{Body: "hello", Attachments: []string{attachment}})
	require.NoError(t, err)
	recipients, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Len(t, recipients, 2)
	assert.Len(t, msg.GetAttachments(), 1)

	subject := msg.GetGenHeader(mail.HeaderSubject)
	require.Len(t, subject, 1)
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject[0])
	require.NoError(t, err)
	assert.Equal(t, "执行结果", decoded)
}

func TestMailer_BuildRejectsBadAddress(t *testing.T) {
	m := NewMailer(config.SMTPConfig{Host: "smtp.example.com", From: "not an address", To: []string{"a@example.com"}}, logger.Nop())
	_, err := m.build(Message{})
	assert.Error(t, err)
}

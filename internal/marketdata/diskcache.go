package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// DefaultBarTTL is how long a cached window stays fresh
const DefaultBarTTL = 7 * 24 * time.Hour

// ProbeCode is the stock whose cache files stand for the whole cache
const ProbeCode = "000001"

// minCacheFileSize skips truncated files left by an interrupted write
const minCacheFileSize = 100

// cacheFile is the on-disk form of one cached window
type cacheFile struct {
	CacheTime time.Time           `json:"cache_time"`
	Code      string              `json:"code"`
	StartDate string              `json:"start_date"` // YYYYMMDD
	EndDate   string              `json:"end_date"`   // YYYYMMDD
	Data      contracts.BarSeries `json:"data"`
}

// Entry is one cache file identified by its name
type Entry struct {
	Code  string
	Start contracts.Date
	End   contracts.Date
	Path  string
}

// DiskCache is a BarSource decorator keeping one JSON file per requested window
// ⭐ SSOT: 일봉 파일 캐시 (<code>_<start>_<end>.json)
type DiskCache struct {
	dir      string
	ttl      time.Duration
	upstream contracts.BarSource
	logger   *logger.Logger
	now      func() time.Time
}

// NewDiskCache creates dir if needed
func NewDiskCache(dir string, ttl time.Duration, upstream contracts.BarSource, log *logger.Logger) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultBarTTL
	}
	return &DiskCache{
		dir:      dir,
		ttl:      ttl,
		upstream: upstream,
		logger:   log.WithComponent("diskcache"),
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source used for freshness checks
func (c *DiskCache) WithClock(now func() time.Time) *DiskCache {
	c.now = now
	return c
}

// Dir returns the cache directory
func (c *DiskCache) Dir() string {
	return c.dir
}

// Path returns the cache file of one window
func (c *DiskCache) Path(code string, start, end contracts.Date) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s_%s.json", code, start.Compact(), end.Compact()))
}

// GetBars serves a fresh cache file or fetches from upstream and stores
// non-empty results. Upstream errors are returned unchanged.
func (c *DiskCache) GetBars(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	path := c.Path(code, start, end)

	if series, ok := c.readFresh(path); ok {
		metrics.RecordCacheLookup("disk", true)
		return series, nil
	}
	metrics.RecordCacheLookup("disk", false)

	series, err := c.upstream.GetBars(ctx, code, start, end)
	if err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return series, nil
	}

	if err := c.write(path, code, start, end, series); err != nil {
		c.logger.WithError(err).WithField("code", code).Warn("Failed to write bar cache")
	}
	return series, nil
}

func (c *DiskCache) readFresh(path string) (contracts.BarSeries, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= minCacheFileSize {
		return nil, false
	}

	file, err := readCacheFile(path)
	if err != nil || len(file.Data) == 0 {
		return nil, false
	}
	if c.now().Sub(file.CacheTime) >= c.ttl {
		return nil, false
	}
	return contracts.NewBarSeries(file.Data), true
}

func readCacheFile(path string) (*cacheFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &file, nil
}

// write stores the file through a temp file and rename
func (c *DiskCache) write(path, code string, start, end contracts.Date, series contracts.BarSeries) error {
	data, err := json.Marshal(cacheFile{
		CacheTime: c.now(),
		Code:      code,
		StartDate: start.Compact(),
		EndDate:   end.Compact(),
		Data:      series,
	})
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Entries lists the cache files whose names parse as <code>_<start>_<end>.json
func (c *DiskCache) Entries() ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, path := range files {
		if entry, ok := parseEntry(path); ok {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Code != entries[j].Code {
			return entries[i].Code < entries[j].Code
		}
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		return entries[i].End > entries[j].End
	})
	return entries, nil
}

func parseEntry(path string) (Entry, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	parts := strings.Split(name, "_")
	if len(parts) != 3 || len(parts[0]) != 6 || len(parts[1]) != 8 || len(parts[2]) != 8 {
		return Entry{}, false
	}

	start, err := contracts.ParseDate(parts[1])
	if err != nil {
		return Entry{}, false
	}
	end, err := contracts.ParseDate(parts[2])
	if err != nil {
		return Entry{}, false
	}

	return Entry{Code: parts[0], Start: start, End: end, Path: path}, true
}

// LatestDate returns the newest bar date found in the probe stock's files
func (c *DiskCache) LatestDate() (contracts.Date, bool) {
	files, err := filepath.Glob(filepath.Join(c.dir, ProbeCode+"_*.json"))
	if err != nil || len(files) == 0 {
		return 0, false
	}

	var latest contracts.Date
	for _, path := range files {
		file, err := readCacheFile(path)
		if err != nil {
			continue
		}
		for _, bar := range file.Data {
			if bar.TradeDate > latest {
				latest = bar.TradeDate
			}
		}
	}
	return latest, !latest.IsZero()
}

// NeedsRefresh reports whether the cache lacks lastTradingDay
func (c *DiskCache) NeedsRefresh(lastTradingDay contracts.Date) bool {
	latest, ok := c.LatestDate()
	return !ok || latest.Before(lastTradingDay)
}

// RemoveDuplicates keeps one file per code: earliest start, then latest end.
// Returns how many files were deleted.
func (c *DiskCache) RemoveDuplicates() (int, error) {
	entries, err := c.Entries()
	if err != nil {
		return 0, err
	}

	// Entries는 (code, start asc, end desc) 정렬이므로 코드별 첫 항목만 유지
	deleted := 0
	for i := range entries {
		if i == 0 || entries[i].Code != entries[i-1].Code {
			continue
		}
		if err := os.Remove(entries[i].Path); err != nil {
			c.logger.WithError(err).WithField("path", entries[i].Path).Warn("Failed to remove duplicate cache")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("Removed duplicate cache files")
	}
	return deleted, nil
}

// Stale returns one entry per code whose window ends before lastTradingDay
func (c *DiskCache) Stale(lastTradingDay contracts.Date) ([]Entry, error) {
	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]Entry)
	fresh := make(map[string]bool)
	for _, e := range entries {
		if !e.End.Before(lastTradingDay) {
			fresh[e.Code] = true
			continue
		}
		if _, ok := byCode[e.Code]; !ok {
			byCode[e.Code] = e
		}
	}

	stale := make([]Entry, 0, len(byCode))
	for code, e := range byCode {
		if !fresh[code] {
			stale = append(stale, e)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].Code < stale[j].Code })
	return stale, nil
}

// MergeUpdate fetches the bars after the entry's last cached date up to
// lastTradingDay, merges them (new rows win on equal dates) and moves the
// file to <code>_<start>_<lastTradingDay>.json. Returns false when there was
// nothing new.
func (c *DiskCache) MergeUpdate(ctx context.Context, entry Entry, lastTradingDay contracts.Date) (bool, error) {
	file, err := readCacheFile(entry.Path)
	if err != nil {
		return false, err
	}
	if len(file.Data) == 0 {
		return false, nil
	}

	var maxDate contracts.Date
	for _, bar := range file.Data {
		if bar.TradeDate > maxDate {
			maxDate = bar.TradeDate
		}
	}
	fetchStart := maxDate.AddDays(1)
	if fetchStart.After(lastTradingDay) {
		return false, nil
	}

	fresh, err := c.upstream.GetBars(ctx, entry.Code, fetchStart, lastTradingDay)
	if err != nil {
		return false, fmt.Errorf("fetch update %s: %w", entry.Code, err)
	}
	if fresh.Len() == 0 {
		return false, nil
	}

	merged := MergeBars(file.Data, fresh)
	newPath := c.Path(entry.Code, entry.Start, lastTradingDay)
	if err := c.write(newPath, entry.Code, entry.Start, lastTradingDay, merged); err != nil {
		return false, fmt.Errorf("write merged cache %s: %w", entry.Code, err)
	}
	if newPath != entry.Path {
		if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
			c.logger.WithError(err).WithField("path", entry.Path).Warn("Failed to remove replaced cache")
		}
	}
	return true, nil
}

// MergeBars combines two series; on equal dates the newer row wins
func MergeBars(old, newer contracts.BarSeries) contracts.BarSeries {
	combined := make([]contracts.Bar, 0, len(old)+len(newer))
	// NewBarSeries keeps the first of duplicate dates
	combined = append(combined, newer...)
	combined = append(combined, old...)
	return contracts.NewBarSeries(combined)
}

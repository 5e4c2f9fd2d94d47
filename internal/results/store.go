package results

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// FileSuffix is appended to the run name to form the result file name
const FileSuffix = "_results.jsonl"

var (
	// ErrRunNotFound is returned when no result file exists for a run name
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidRunName rejects names that would escape the results directory
	ErrInvalidRunName = errors.New("invalid run name")
)

// metaLine is the header record, told apart from data lines by its key
type metaLine struct {
	Meta contracts.RunMeta `json:"_meta"`
}

// Store keeps one NDJSON file per run under dir
// ⭐ SSOT: 결과 파일 포맷/경로는 여기서만
type Store struct {
	dir string
}

// RunInfo describes one stored run
type RunInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// NewStore creates dir if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the results directory
func (s *Store) Dir() string {
	return s.dir
}

// DefaultRunName names a run after its start time
func DefaultRunName(now time.Time) string {
	return "strategy_" + now.Format("20060102_150405")
}

// ValidateRunName rejects empty names and names containing path elements
func ValidateRunName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidRunName, name)
	}
	return nil
}

// Path returns the result file of a run
func (s *Store) Path(runName string) string {
	return filepath.Join(s.dir, runName+FileSuffix)
}

// Open starts a writer for one run. The file is named after runName, which is
// also recorded in the header. Nothing touches disk until the first Append.
func (s *Store) Open(runName string, meta contracts.RunMeta) (*Run, error) {
	if err := ValidateRunName(runName); err != nil {
		return nil, err
	}
	meta.RunName = runName
	return &Run{
		path: s.Path(runName),
		meta: meta,
	}, nil
}

// Load reads a result file back: header plus records in file order
func (s *Store) Load(runName string) (*contracts.RunMeta, []contracts.MatchResult, error) {
	if err := ValidateRunName(runName); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.Path(runName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runName)
		}
		return nil, nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	var meta *contracts.RunMeta
	var records []contracts.MatchResult

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var probe map[string]json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, nil, fmt.Errorf("parse %s line %d: %w", runName, lineNo, err)
		}
		if raw, ok := probe["_meta"]; ok {
			var m contracts.RunMeta
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, nil, fmt.Errorf("parse %s header: %w", runName, err)
			}
			meta = &m
			continue
		}

		var rec contracts.MatchResult
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, nil, fmt.Errorf("parse %s line %d: %w", runName, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read results: %w", err)
	}

	return meta, records, nil
}

// List returns stored runs, newest first
func (s *Store) List() ([]RunInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	runs := make([]RunInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, FileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, RunInfo{
			Name:       strings.TrimSuffix(name, FileSuffix),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].ModifiedAt.Equal(runs[j].ModifiedAt) {
			return runs[i].ModifiedAt.After(runs[j].ModifiedAt)
		}
		return runs[i].Name < runs[j].Name
	})
	return runs, nil
}

// Run writes the result file of one run. Not safe for concurrent use;
// the caller serializes Append with its own result set update.
type Run struct {
	path    string
	meta    contracts.RunMeta
	file    *os.File
	started bool
}

// Path returns the file this run writes
func (r *Run) Path() string {
	return r.path
}

// Append adds one record. The first call truncates the file and writes the
// header so the file is readable while the run is still in progress.
func (r *Run) Append(rec contracts.MatchResult) error {
	if !r.started {
		f, err := os.Create(r.path)
		if err != nil {
			return fmt.Errorf("create results file: %w", err)
		}
		r.file = f
		r.started = true

		if err := writeJSONLine(r.file, metaLine{Meta: r.meta}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if r.file == nil {
		return fmt.Errorf("results file %s is closed", r.path)
	}

	if err := writeJSONLine(r.file, rec); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

// Rewrite replaces the file with a header carrying the final count followed by
// records sorted by (MatchDate, Code). The new content is written to a temp
// file, synced and renamed over the target.
func (r *Run) Rewrite(records []contracts.MatchResult) error {
	r.close()

	sorted := make([]contracts.MatchResult, len(records))
	copy(sorted, records)
	SortResults(sorted)

	meta := r.meta
	count := len(sorted)
	meta.Count = &count

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := writeJSONLine(w, metaLine{Meta: meta}); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range sorted {
		if err := writeJSONLine(w, rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write result: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace results file: %w", err)
	}
	return nil
}

// Close releases the append handle without rewriting
func (r *Run) Close() error {
	return r.close()
}

func (r *Run) close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// SortResults orders results by (MatchDate asc, Code asc)
func SortResults(results []contracts.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Less(results[j])
	})
}

func writeJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

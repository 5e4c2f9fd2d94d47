package results

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "results"))
	require.NoError(t, err)
	return store
}

func meta(name string) contracts.RunMeta {
	return contracts.RunMeta{
		StrategyName: name,
		RunID:        "run-1",
		RunAt:        time.Date(2024, 1, 15, 16, 30, 0, 0, time.UTC),
	}
}

func result(code, date string) contracts.MatchResult {
	return contracts.MatchResult{
		Code:         code,
		Name:         "name-" + code,
		MatchDate:    contracts.MustParseDate(date),
		MatchPrice:   10,
		CurrentPrice: 11,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRun_AppendWritesHeaderFirst(t *testing.T) {
	store := newStore(t)
	run, err := store.Open("daily", meta("strat"))
	require.NoError(t, err)

	_, err = os.Stat(run.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing is written before the first match")

	require.NoError(t, run.Append(result("600000", "2024-01-15")))
	require.NoError(t, run.Append(result("000001", "2024-01-12")))

	lines := readLines(t, run.Path())
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"_meta"`)
	assert.Contains(t, lines[0], `"run_name":"daily"`)
	assert.Contains(t, lines[0], `"strategy_name":"strat"`)
	assert.NotContains(t, lines[0], `"count"`)
	assert.Contains(t, lines[1], `"code":"600000"`)

	// readable mid-run
	m, records, err := store.Load("daily")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "run-1", m.RunID)
	assert.Len(t, records, 2)

	require.NoError(t, run.Close())
}

func TestRun_FirstAppendTruncatesPreviousRun(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path("daily"), []byte("stale\nstale\n"), 0o644))

	run, err := store.Open("daily", meta("strat"))
	require.NoError(t, err)
	require.NoError(t, run.Append(result("600000", "2024-01-15")))
	require.NoError(t, run.Close())

	lines := readLines(t, run.Path())
	assert.Len(t, lines, 2)
}

func TestRun_RewriteSortsDeterministically(t *testing.T) {
	base := []contracts.MatchResult{
		result("600000", "2024-01-15"),
		result("000001", "2024-01-15"),
		result("600519", "2024-01-10"),
		result("000002", "2024-01-12"),
		result("002594", "2024-01-10"),
	}
	want := []contracts.MatchResult{
		result("002594", "2024-01-10"),
		result("600519", "2024-01-10"),
		result("000002", "2024-01-12"),
		result("000001", "2024-01-15"),
		result("600000", "2024-01-15"),
	}

	rng := rand.New(rand.NewSource(7))
	var firstFile []byte

	for i := 0; i < 5; i++ {
		shuffled := append([]contracts.MatchResult(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		store := newStore(t)
		run, err := store.Open("daily", meta("strat"))
		require.NoError(t, err)
		for _, r := range shuffled {
			require.NoError(t, run.Append(r))
		}
		require.NoError(t, run.Rewrite(shuffled))

		m, records, err := store.Load("daily")
		require.NoError(t, err)
		require.NotNil(t, m.Count)
		assert.Equal(t, 5, *m.Count)
		assert.Equal(t, want, records)

		data, err := os.ReadFile(run.Path())
		require.NoError(t, err)
		if firstFile == nil {
			firstFile = data
		}
		assert.Equal(t, string(firstFile), string(data))
	}
}

func TestRun_RewriteWithoutAppends(t *testing.T) {
	store := newStore(t)
	run, err := store.Open("empty", meta("strat"))
	require.NoError(t, err)

	require.NoError(t, run.Rewrite(nil))

	m, records, err := store.Load("empty")
	require.NoError(t, err)
	require.NotNil(t, m.Count)
	assert.Equal(t, 0, *m.Count)
	assert.Empty(t, records)

	// no temp files left behind
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_RewriteDoesNotMutateInput(t *testing.T) {
	store := newStore(t)
	run, err := store.Open("daily", meta("strat"))
	require.NoError(t, err)

	in := []contracts.MatchResult{result("600000", "2024-01-15"), result("000001", "2024-01-10")}
	require.NoError(t, run.Rewrite(in))
	assert.Equal(t, "600000", in[0].Code)
}

func TestStore_FileIsNamedAfterRun(t *testing.T) {
	store := newStore(t)
	for _, runName := range []string{"daily_20240112", "daily_20240115"} {
		run, err := store.Open(runName, meta("limit_up_pullback"))
		require.NoError(t, err)
		assert.Equal(t, store.Path(runName), run.Path())
		require.NoError(t, run.Rewrite([]contracts.MatchResult{result("600000", "2024-01-12")}))
	}

	for _, runName := range []string{"daily_20240112", "daily_20240115"} {
		m, records, err := store.Load(runName)
		require.NoError(t, err)
		assert.Equal(t, runName, m.RunName)
		assert.Equal(t, "limit_up_pullback", m.StrategyName)
		assert.Len(t, records, 1)
	}

	_, _, err := store.Load("limit_up_pullback")
	assert.ErrorIs(t, err, ErrRunNotFound)

	// a strategy without a name still gets its file
	run, err := store.Open("unnamed_run", meta(""))
	require.NoError(t, err)
	require.NoError(t, run.Rewrite(nil))
	_, err = os.Stat(store.Path("unnamed_run"))
	assert.NoError(t, err)
}

func TestStore_LoadMissing(t *testing.T) {
	_, _, err := newStore(t).Load("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_LoadSkipsBlankLinesAndRejectsGarbage(t *testing.T) {
	store := newStore(t)
	content := `{"_meta":{"strategy_name":"x","run_id":"","run_at":"2024-01-15T16:30:00Z"}}` + "\n\n" +
		`{"code":"600000","name":"_meta","match_date":"2024-01-15","match_price":1,"current_price":2}` + "\n"
	require.NoError(t, os.WriteFile(store.Path("x"), []byte(content), 0o644))

	m, records, err := store.Load("x")
	require.NoError(t, err)
	assert.Equal(t, "x", m.StrategyName)
	require.Len(t, records, 1)
	assert.Equal(t, "_meta", records[0].Name)

	require.NoError(t, os.WriteFile(store.Path("bad"), []byte("not json\n"), 0o644))
	_, _, err = store.Load("bad")
	assert.Error(t, err)
}

func TestStore_List(t *testing.T) {
	store := newStore(t)
	for _, name := range []string{"a", "b"} {
		run, err := store.Open(name, meta("strat"))
		require.NoError(t, err)
		require.NoError(t, run.Rewrite([]contracts.MatchResult{result("600000", "2024-01-15")}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644))

	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(store.Path("a"), older, older))

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].Name)
	assert.Equal(t, "a", runs[1].Name)
	assert.Greater(t, runs[0].Size, int64(0))
}

func TestValidateRunName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "../etc", "a/b", `a\b`, "x..y"} {
		assert.ErrorIs(t, ValidateRunName(name), ErrInvalidRunName, name)
	}
	for _, name := range []string{"daily", "strategy_20240115_163000", "涨停回调"} {
		assert.NoError(t, ValidateRunName(name), name)
	}

	_, err := newStore(t).Open("../escape", meta("strat"))
	assert.ErrorIs(t, err, ErrInvalidRunName)
}

func TestDefaultRunName(t *testing.T) {
	now := time.Date(2024, 1, 15, 16, 30, 5, 0, time.UTC)
	assert.Equal(t, "strategy_20240115_163005", DefaultRunName(now))
}

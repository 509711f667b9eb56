package checker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/mavleo96/rocket/internal/csvlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mutex    sync.Mutex
	verdicts map[int]Verdict
}

func (s *memoryStore) PutVerdict(v Verdict) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.verdicts == nil {
		s.verdicts = make(map[int]Verdict)
	}
	s.verdicts[v.Iteration] = v
	return nil
}

func (s *memoryStore) Verdicts() ([]Verdict, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	verdicts := make([]Verdict, 0, len(s.verdicts))
	for _, v := range s.verdicts {
		verdicts = append(verdicts, v)
	}
	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].Iteration < verdicts[j].Iteration })
	return verdicts, nil
}

func writeIteration(t *testing.T, logDir string, iteration int, results []csvlog.ResultRecord, actions []csvlog.ActionRecord) {
	t.Helper()
	dir := IterationDir(logDir, iteration)
	rl, err := csvlog.CreateResultLogger(dir, iteration)
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, rl.LogResult(r))
	}
	require.NoError(t, rl.Close())
	al, err := csvlog.CreateActionLogger(dir, iteration)
	require.NoError(t, err)
	for _, a := range actions {
		require.NoError(t, al.LogAction(a))
	}
	require.NoError(t, al.Close())
}

func TestSpecCheckerVerdicts(t *testing.T) {
	logDir := t.TempDir()
	txA := strings.Repeat("A", 64)
	actions := []csvlog.ActionRecord{
		status(0, "ledgerSeq: 2; ledgerHash: AA"),
		transaction(1, txA),
	}

	// correct iteration
	writeIteration(t, logDir, 1,
		[]csvlog.ResultRecord{result(0, 2, 2, "H", 2, txA), result(1, 2, 2, "H", 2, txA)},
		actions)
	// diverging hashes
	writeIteration(t, logDir, 2,
		[]csvlog.ResultRecord{result(0, 2, 2, "H", 2), result(1, 2, 2, "X", 2)},
		actions)
	// results without actions
	writeIteration(t, logDir, 3,
		[]csvlog.ResultRecord{result(0, 2, 2, "H", 2)},
		nil)
	// nothing validated
	writeIteration(t, logDir, 4, nil, actions)

	store := &memoryStore{}
	c, err := CreateSpecChecker(logDir, nil, store)
	require.NoError(t, err)
	defer c.Close()

	v, err := c.Check(1)
	require.NoError(t, err)
	assert.True(t, v.Correct())
	assert.Equal(t, "true", v.Validity)

	v, err = c.Check(2)
	require.NoError(t, err)
	assert.False(t, v.Correct())
	assert.Equal(t, "false", v.SameLedgerHashes)
	assert.Equal(t, "true", v.SameLedgerIndexes)

	v, err = c.Check(3)
	require.NoError(t, err)
	assert.Equal(t, NoActionData, v.ReachedGoalLedger)
	assert.Equal(t, NotChecked, v.Integrity)

	v, err = c.Check(4)
	require.NoError(t, err)
	assert.Equal(t, NoLedgerData, v.ReachedGoalLedger)

	// missing logs
	v, err = c.Check(5)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.ReachedGoalLedger, "csv results error: "))

	require.NoError(t, c.Record(StatusVerdict(6, TimeoutBeforeStartup)))

	stored, err := store.Verdicts()
	require.NoError(t, err)
	require.Len(t, stored, 6)

	logged, err := ReadSpecCheckLog(filepath.Join(logDir, "spec_check_log.csv"))
	require.NoError(t, err)
	assert.Equal(t, stored, logged)
}

func TestAggregateVerdicts(t *testing.T) {
	ok := Verdict{Iteration: 1, ReachedGoalLedger: "true", SameLedgerHashes: "true", SameLedgerIndexes: "true", Integrity: "true", Validity: "true"}
	noGoal := ok
	noGoal.Iteration, noGoal.ReachedGoalLedger = 2, "false"
	split := ok
	split.Iteration, split.SameLedgerIndexes, split.Validity = 3, "false", "false"
	broken := ok
	broken.Iteration, broken.Integrity = 4, "false"

	agg := AggregateVerdicts([]Verdict{
		ok, noGoal, split, broken,
		StatusVerdict(5, TimeoutBeforeStartup),
		StatusVerdict(6, "csv action error: open action-6.csv: no such file"),
		StatusVerdict(7, NoLedgerData),
	})
	assert.Equal(t, 7, agg.TotalIterations)
	assert.Equal(t, 1, agg.CorrectRuns)
	assert.Equal(t, 1, agg.TimeoutBeforeStartup)
	assert.Equal(t, 1, agg.Errors)
	assert.Equal(t, []int{2}, agg.FailedTerminationIterations)
	assert.Equal(t, []int{3}, agg.FailedAgreementIterations)
	assert.Equal(t, []int{4}, agg.FailedIntegrityIterations)
	assert.Equal(t, []int{3}, agg.FailedValidityIterations)
	assert.Equal(t, 1, agg.FailedAgreement)
	assert.Equal(t, 1, agg.FailedValidity)
}

func TestSpecCheckerAggregate(t *testing.T) {
	logDir := t.TempDir()
	c, err := CreateSpecChecker(logDir, nil, nil)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Record(StatusVerdict(1, TimeoutBeforeStartup)))
	require.NoError(t, c.Record(Verdict{Iteration: 2, ReachedGoalLedger: "false", SameLedgerHashes: "true", SameLedgerIndexes: "true", Integrity: "true", Validity: "true"}))

	agg, err := c.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalIterations)

	data, err := os.ReadFile(filepath.Join(logDir, AggregateFileName))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["timeout_before_startup"])
	assert.EqualValues(t, 1, raw["failed_termination"])
	assert.Equal(t, []any{2.0}, raw["failed_termination_iterations"])
	assert.Equal(t, []any{}, raw["failed_validity_iterations"])
}

func TestIterationNumbers(t *testing.T) {
	logDir := t.TempDir()
	for _, name := range []string{"iteration-10", "iteration-2", "iteration-x", "other"} {
		require.NoError(t, os.MkdirAll(filepath.Join(logDir, name), 0o755))
	}
	numbers, err := IterationNumbers(logDir)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 10}, numbers)
}

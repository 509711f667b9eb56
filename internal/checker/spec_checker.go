package checker

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mavleo96/rocket/internal/csvlog"
	log "github.com/sirupsen/logrus"
)

// Verdict texts that replace the goal column when an iteration could not be checked
const (
	NoLedgerData         = "No valid ledger data found."
	NoActionData         = "No valid action data found."
	TimeoutBeforeStartup = "timeout reached before startup"
	NotChecked           = "-"
)

// Verdict is one row of the spec check log. Columns hold "true", "false"
// or, for iterations that could not be checked, a status text.
type Verdict struct {
	Iteration         int    `json:"iteration"`
	ReachedGoalLedger string `json:"reached_goal_ledger"`
	SameLedgerHashes  string `json:"same_ledger_hashes"`
	SameLedgerIndexes string `json:"same_ledger_indexes"`
	Integrity         string `json:"integrity"`
	Validity          string `json:"validity"`
}

// StatusVerdict is the verdict of an iteration that ended before it could be checked
func StatusVerdict(iteration int, status string) Verdict {
	return Verdict{
		Iteration:         iteration,
		ReachedGoalLedger: status,
		SameLedgerHashes:  NotChecked,
		SameLedgerIndexes: NotChecked,
		Integrity:         NotChecked,
		Validity:          NotChecked,
	}
}

// Correct reports whether every property held
func (v Verdict) Correct() bool {
	t := strconv.FormatBool(true)
	return v.ReachedGoalLedger == t && v.SameLedgerHashes == t &&
		v.SameLedgerIndexes == t && v.Integrity == t && v.Validity == t
}

// VerdictStore persists verdicts across a run
type VerdictStore interface {
	PutVerdict(v Verdict) error
	Verdicts() ([]Verdict, error)
}

// IterationDir returns the log directory of one iteration
func IterationDir(logDir string, iteration int) string {
	return filepath.Join(logDir, fmt.Sprintf("iteration-%d", iteration))
}

// SpecChecker checks the logs of finished iterations
type SpecChecker struct {
	logDir    string
	byzantine Byzantine
	logger    *csvlog.SpecCheckLogger
	store     VerdictStore
}

// CreateSpecChecker opens the spec check log inside logDir. store may be nil.
func CreateSpecChecker(logDir string, byzantine []int, store VerdictStore) (*SpecChecker, error) {
	logger, err := csvlog.CreateSpecCheckLogger(logDir)
	if err != nil {
		return nil, err
	}
	return &SpecChecker{
		logDir:    logDir,
		byzantine: ByzantineSet(byzantine),
		logger:    logger,
		store:     store,
	}, nil
}

// Evaluate reads the logs of an iteration and returns its verdict
func (c *SpecChecker) Evaluate(iteration int) Verdict {
	return EvaluateIteration(c.logDir, iteration, c.byzantine)
}

// EvaluateIteration reads the logs of an iteration below logDir and returns
// its verdict
func EvaluateIteration(logDir string, iteration int, byzantine Byzantine) Verdict {
	dir := IterationDir(logDir, iteration)

	results, _, err := csvlog.ReadResultLog(filepath.Join(dir, csvlog.ResultLogName(iteration)+".csv"))
	if err != nil {
		log.Errorf("[SpecChecker] Reading results of iteration %d: %v", iteration, err)
		return StatusVerdict(iteration, "csv results error: "+err.Error())
	}
	if len(results) == 0 {
		log.Errorf("[SpecChecker] Iteration %d: %s", iteration, NoLedgerData)
		return StatusVerdict(iteration, NoLedgerData)
	}

	actions, _, err := csvlog.ReadActionLog(filepath.Join(dir, csvlog.ActionLogName(iteration)+".csv"))
	if err != nil {
		log.Errorf("[SpecChecker] Reading actions of iteration %d: %v", iteration, err)
		return StatusVerdict(iteration, "csv action error: "+err.Error())
	}
	if len(actions) == 0 {
		log.Errorf("[SpecChecker] Iteration %d: %s", iteration, NoActionData)
		return StatusVerdict(iteration, NoActionData)
	}

	ledgers, actionData := GroupResults(results), GroupActions(actions)
	agreement := CheckAgreement(ledgers, byzantine)
	return Verdict{
		Iteration:         iteration,
		ReachedGoalLedger: strconv.FormatBool(agreement.AllLedgerGoalReached),
		SameLedgerHashes:  strconv.FormatBool(agreement.AllHashesPass),
		SameLedgerIndexes: strconv.FormatBool(agreement.AllIndexesPass),
		Integrity:         strconv.FormatBool(CheckIntegrity(actionData, byzantine)),
		Validity:          strconv.FormatBool(CheckValidity(ledgers, actionData, byzantine)),
	}
}

// IterationNumbers lists the iterations that have a log directory below logDir
func IterationNumbers(logDir string) ([]int, error) {
	dirs, err := filepath.Glob(filepath.Join(logDir, "iteration-*"))
	if err != nil {
		return nil, err
	}
	numbers := make([]int, 0, len(dirs))
	for _, dir := range dirs {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "iteration-"))
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers, nil
}

// Check evaluates an iteration and records the verdict
func (c *SpecChecker) Check(iteration int) (Verdict, error) {
	v := c.Evaluate(iteration)
	log.Infof("[SpecChecker] Iteration %d: reached goal ledger: %s, same ledger hashes: %s, same ledger indexes: %s, integrity: %s, validity: %s",
		iteration, v.ReachedGoalLedger, v.SameLedgerHashes, v.SameLedgerIndexes, v.Integrity, v.Validity)
	return v, c.Record(v)
}

// Record writes a verdict to the spec check log and the store
func (c *SpecChecker) Record(v Verdict) error {
	if err := c.logger.LogSpecCheck(v.Iteration, v.ReachedGoalLedger, v.SameLedgerHashes, v.SameLedgerIndexes, v.Integrity, v.Validity); err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.PutVerdict(v); err != nil {
			return fmt.Errorf("store verdict %d: %w", v.Iteration, err)
		}
	}
	return nil
}

// Close closes the spec check log
func (c *SpecChecker) Close() error {
	return c.logger.Close()
}

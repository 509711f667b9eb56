package checker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mavleo96/rocket/internal/csvlog"
	log "github.com/sirupsen/logrus"
)

// AggregateFileName is the file the aggregated verdict of a run is written to
const AggregateFileName = "aggregated_spec_check_log.json"

// Aggregate summarizes the verdicts of a run
type Aggregate struct {
	TotalIterations             int   `json:"total_iterations"`
	CorrectRuns                 int   `json:"correct_runs"`
	TimeoutBeforeStartup        int   `json:"timeout_before_startup"`
	Errors                      int   `json:"errors"`
	FailedTermination           int   `json:"failed_termination"`
	FailedAgreement             int   `json:"failed_agreement"`
	FailedIntegrity             int   `json:"failed_integrity"`
	FailedValidity              int   `json:"failed_validity"`
	FailedTerminationIterations []int `json:"failed_termination_iterations"`
	FailedAgreementIterations   []int `json:"failed_agreement_iterations"`
	FailedIntegrityIterations   []int `json:"failed_integrity_iterations"`
	FailedValidityIterations    []int `json:"failed_validity_iterations"`
}

// AggregateVerdicts counts the verdicts per failure category
func AggregateVerdicts(verdicts []Verdict) Aggregate {
	f := strconv.FormatBool(false)
	agg := Aggregate{
		TotalIterations:             len(verdicts),
		FailedTerminationIterations: []int{},
		FailedAgreementIterations:   []int{},
		FailedIntegrityIterations:   []int{},
		FailedValidityIterations:    []int{},
	}
	for _, v := range verdicts {
		if v.Correct() {
			agg.CorrectRuns++
		}
		if v.ReachedGoalLedger == TimeoutBeforeStartup {
			agg.TimeoutBeforeStartup++
		}
		if strings.Contains(v.ReachedGoalLedger, "error") {
			agg.Errors++
		}
		if v.ReachedGoalLedger == f {
			agg.FailedTermination++
			agg.FailedTerminationIterations = append(agg.FailedTerminationIterations, v.Iteration)
		}
		if v.SameLedgerHashes == f || v.SameLedgerIndexes == f {
			agg.FailedAgreement++
			agg.FailedAgreementIterations = append(agg.FailedAgreementIterations, v.Iteration)
		}
		if v.Integrity == f {
			agg.FailedIntegrity++
			agg.FailedIntegrityIterations = append(agg.FailedIntegrityIterations, v.Iteration)
		}
		if v.Validity == f {
			agg.FailedValidity++
			agg.FailedValidityIterations = append(agg.FailedValidityIterations, v.Iteration)
		}
	}
	return agg
}

// ReadSpecCheckLog reads the verdicts of spec_check_log.csv
func ReadSpecCheckLog(path string) ([]Verdict, error) {
	rows, err := csvlog.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	verdicts := make([]Verdict, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // skip header row
		}
		if len(row) < len(csvlog.SpecCheckHeader) {
			log.Warnf("[ReadSpecCheckLog] Skipping row: %v", &csvlog.CSVParsingError{Path: path, Row: i, Err: fmt.Errorf("expected %d columns, got %d", len(csvlog.SpecCheckHeader), len(row))})
			continue
		}
		iteration, err := strconv.Atoi(row[0])
		if err != nil {
			log.Warnf("[ReadSpecCheckLog] Skipping row: %v", &csvlog.CSVParsingError{Path: path, Row: i, Err: err})
			continue
		}
		verdicts = append(verdicts, Verdict{
			Iteration:         iteration,
			ReachedGoalLedger: row[1],
			SameLedgerHashes:  row[2],
			SameLedgerIndexes: row[3],
			Integrity:         row[4],
			Validity:          row[5],
		})
	}
	return verdicts, nil
}

// WriteAggregate writes agg as indented JSON to dir/aggregated_spec_check_log.json
func WriteAggregate(dir string, agg Aggregate) (string, error) {
	data, err := json.MarshalIndent(agg, "", "    ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, AggregateFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Aggregate summarizes every recorded verdict and writes the summary next
// to the spec check log. Verdicts come from the store when one is set.
func (c *SpecChecker) Aggregate() (Aggregate, error) {
	var verdicts []Verdict
	var err error
	if c.store != nil {
		verdicts, err = c.store.Verdicts()
	} else {
		verdicts, err = ReadSpecCheckLog(c.logger.Path())
	}
	if err != nil {
		return Aggregate{}, err
	}
	agg := AggregateVerdicts(verdicts)
	path, err := WriteAggregate(c.logDir, agg)
	if err != nil {
		return Aggregate{}, err
	}
	log.Infof("[SpecChecker] Aggregated %d iterations (%d correct) into %s", agg.TotalIterations, agg.CorrectRuns, path)
	return agg, nil
}

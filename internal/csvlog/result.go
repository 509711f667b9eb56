package csvlog

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var resultHeader = []string{
	"node_id", "ledger_seq", "goal_ledger_seq", "time_to_validation",
	"close_time", "ledger_hash", "ledger_index", "transactions",
}

// ResultRecord is the state of one validated ledger as reported by one node
type ResultRecord struct {
	NodeID           int
	LedgerSeq        int
	GoalLedgerSeq    int
	TimeToValidation float64
	CloseTime        int64
	LedgerHash       string
	LedgerIndex      int64
	Transactions     []string
}

func (r ResultRecord) row() []string {
	return []string{
		strconv.Itoa(r.NodeID),
		strconv.Itoa(r.LedgerSeq),
		strconv.Itoa(r.GoalLedgerSeq),
		strconv.FormatFloat(r.TimeToValidation, 'f', 6, 64),
		strconv.FormatInt(r.CloseTime, 10),
		r.LedgerHash,
		strconv.FormatInt(r.LedgerIndex, 10),
		strings.Join(r.Transactions, " "),
	}
}

// ResultLogger writes result-<iteration>.csv
type ResultLogger struct {
	*CSVLogger
}

// ResultLogName returns the file name, without extension, of a result log
func ResultLogName(iteration int) string {
	return fmt.Sprintf("result-%d", iteration)
}

// CreateResultLogger opens the result log of an iteration inside dir
func CreateResultLogger(dir string, iteration int) (*ResultLogger, error) {
	l, err := CreateCSVLogger(dir, ResultLogName(iteration), resultHeader)
	if err != nil {
		return nil, err
	}
	return &ResultLogger{l}, nil
}

// LogResult appends a record
func (l *ResultLogger) LogResult(r ResultRecord) error {
	return l.WriteRow(r.row())
}

// ReadResultLog reads a result log. Malformed rows are skipped and returned
// as CSVParsingErrors. The transactions column is optional.
func ReadResultLog(path string) ([]ResultRecord, []error, error) {
	rows, err := ReadCSV(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	index, err := columnIndex(rows[0], resultHeader[:7])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]ResultRecord, 0, len(rows)-1)
	skipped := make([]error, 0)
	for i, row := range rows {
		if i == 0 {
			continue // skip header row
		}
		r, err := parseResultRow(row, index)
		if err != nil {
			parseErr := &CSVParsingError{Path: path, Row: i, Err: err}
			log.Warnf("[ReadResultLog] Skipping row: %v", parseErr)
			skipped = append(skipped, parseErr)
			continue
		}
		records = append(records, r)
	}
	return records, skipped, nil
}

func parseResultRow(row []string, index map[string]int) (ResultRecord, error) {
	get := func(name string) (string, error) {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return "", fmt.Errorf("missing %s", name)
		}
		return row[i], nil
	}
	ints := make(map[string]int64, 5)
	for _, name := range []string{"node_id", "ledger_seq", "goal_ledger_seq", "close_time", "ledger_index"} {
		s, err := get(name)
		if err != nil {
			return ResultRecord{}, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ResultRecord{}, fmt.Errorf("%s: %w", name, err)
		}
		ints[name] = v
	}
	s, err := get("time_to_validation")
	if err != nil {
		return ResultRecord{}, err
	}
	elapsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("time_to_validation: %w", err)
	}
	hash, err := get("ledger_hash")
	if err != nil {
		return ResultRecord{}, err
	}
	r := ResultRecord{
		NodeID:           int(ints["node_id"]),
		LedgerSeq:        int(ints["ledger_seq"]),
		GoalLedgerSeq:    int(ints["goal_ledger_seq"]),
		TimeToValidation: elapsed,
		CloseTime:        ints["close_time"],
		LedgerHash:       hash,
		LedgerIndex:      ints["ledger_index"],
	}
	if txs, err := get("transactions"); err == nil {
		r.Transactions = strings.Fields(txs)
	}
	return r, nil
}

package csvlog

import (
	"fmt"
	"strconv"

	"github.com/mavleo96/rocket/internal/models"
	log "github.com/sirupsen/logrus"
)

var actionHeader = []string{
	"timestamp", "action", "send_amount", "from_node_id", "to_node_id",
	"message_type", "original_data", "possibly_mutated_data",
}

// ActionRecord is one processed packet
type ActionRecord struct {
	Timestamp    int64
	Action       models.Action
	SendAmount   uint32
	FromNode     int
	ToNode       int
	MessageType  string
	OriginalData string
	MutatedData  string
}

func (r ActionRecord) row() []string {
	return []string{
		strconv.FormatInt(r.Timestamp, 10),
		strconv.FormatUint(uint64(r.Action), 10),
		strconv.FormatUint(uint64(r.SendAmount), 10),
		strconv.Itoa(r.FromNode),
		strconv.Itoa(r.ToNode),
		r.MessageType,
		r.OriginalData,
		r.MutatedData,
	}
}

// ActionLogger writes action-<iteration>.csv
type ActionLogger struct {
	*CSVLogger
}

// ActionLogName returns the file name, without extension, of an action log
func ActionLogName(iteration int) string {
	return fmt.Sprintf("action-%d", iteration)
}

// CreateActionLogger opens the action log of an iteration inside dir
func CreateActionLogger(dir string, iteration int) (*ActionLogger, error) {
	l, err := CreateCSVLogger(dir, ActionLogName(iteration), actionHeader)
	if err != nil {
		return nil, err
	}
	return &ActionLogger{l}, nil
}

// LogAction appends a record
func (l *ActionLogger) LogAction(r ActionRecord) error {
	return l.WriteRow(r.row())
}

// ReadActionLog reads an action log. Malformed rows are skipped and
// returned as CSVParsingErrors.
func ReadActionLog(path string) ([]ActionRecord, []error, error) {
	rows, err := ReadCSV(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	index, err := columnIndex(rows[0], actionHeader)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]ActionRecord, 0, len(rows)-1)
	skipped := make([]error, 0)
	for i, row := range rows {
		if i == 0 {
			continue // skip header row
		}
		r, err := parseActionRow(row, index)
		if err != nil {
			parseErr := &CSVParsingError{Path: path, Row: i, Err: err}
			log.Warnf("[ReadActionLog] Skipping row: %v", parseErr)
			skipped = append(skipped, parseErr)
			continue
		}
		records = append(records, r)
	}
	return records, skipped, nil
}

func parseActionRow(row []string, index map[string]int) (ActionRecord, error) {
	if len(row) < len(index) {
		return ActionRecord{}, fmt.Errorf("expected %d columns, got %d", len(index), len(row))
	}
	get := func(name string) string { return row[index[name]] }

	timestamp, err := strconv.ParseInt(get("timestamp"), 10, 64)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("timestamp: %w", err)
	}
	action, err := strconv.ParseUint(get("action"), 10, 32)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("action: %w", err)
	}
	sendAmount, err := strconv.ParseUint(get("send_amount"), 10, 32)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("send_amount: %w", err)
	}
	from, err := strconv.Atoi(get("from_node_id"))
	if err != nil {
		return ActionRecord{}, fmt.Errorf("from_node_id: %w", err)
	}
	to, err := strconv.Atoi(get("to_node_id"))
	if err != nil {
		return ActionRecord{}, fmt.Errorf("to_node_id: %w", err)
	}
	return ActionRecord{
		Timestamp:    timestamp,
		Action:       models.Action(action),
		SendAmount:   uint32(sendAmount),
		FromNode:     from,
		ToNode:       to,
		MessageType:  get("message_type"),
		OriginalData: get("original_data"),
		MutatedData:  get("possibly_mutated_data"),
	}, nil
}

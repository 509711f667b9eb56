package csvlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mavleo96/rocket/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "iteration-1")
	l, err := CreateActionLogger(dir, 1)
	require.NoError(t, err)

	rec := ActionRecord{
		Timestamp:    1700000000123,
		Action:       models.ActionDrop,
		SendAmount:   1,
		FromNode:     0,
		ToNode:       2,
		MessageType:  "TMStatusChange",
		OriginalData: "ledgerSeq: 5; ledgerHash: AB",
		MutatedData:  "ledgerSeq: 5; ledgerHash: AB",
	}
	require.NoError(t, l.LogAction(rec))
	require.NoError(t, l.Close())
	assert.Error(t, l.LogAction(rec), "closed logger must reject writes")

	records, skipped, err := ReadActionLog(filepath.Join(dir, "action-1.csv"))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, rec, records[0])
}

func TestReadActionLogSkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "action-3.csv")
	content := "timestamp,action,send_amount,from_node_id,to_node_id,message_type,original_data,possibly_mutated_data\n" +
		"1,0,1,0,1,TMPing,a,a\n" +
		"oops,0,1,0,1,TMPing,a,a\n" +
		"2,0,1\n" +
		"3,4294967295,1,1,0,TMValidation,b,b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, skipped, err := ReadActionLog(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, skipped, 2)
	var parseErr *CSVParsingError
	assert.True(t, errors.As(skipped[0], &parseErr))
	assert.Equal(t, 2, parseErr.Row)
	assert.Equal(t, models.ActionDrop, records[1].Action)
}

func TestResultLog(t *testing.T) {
	dir := t.TempDir()
	l, err := CreateResultLogger(dir, 2)
	require.NoError(t, err)
	rec := ResultRecord{
		NodeID:           1,
		LedgerSeq:        5,
		GoalLedgerSeq:    10,
		TimeToValidation: 3.25,
		CloseTime:        780000000,
		LedgerHash:       "ABCD",
		LedgerIndex:      5,
		Transactions:     []string{"AA", "BB"},
	}
	require.NoError(t, l.LogResult(rec))
	require.NoError(t, l.Close())

	records, skipped, err := ReadResultLog(filepath.Join(dir, "result-2.csv"))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []ResultRecord{rec}, records)
}

func TestReadResultLogWithoutTransactionsColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result-1.csv")
	content := "node_id,ledger_seq,goal_ledger_seq,time_to_validation,close_time,ledger_hash,ledger_index\n" +
		"0,5,5,1.000000,10,H,5\n" +
		"x,5,5,1.000000,10,H,5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, skipped, err := ReadResultLog(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, skipped, 1)
	assert.Nil(t, records[0].Transactions)
}

func TestReadMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result-1.csv")
	require.NoError(t, os.WriteFile(path, []byte("node_id,ledger_seq\n0,1\n"), 0o644))
	_, _, err := ReadResultLog(path)
	assert.Error(t, err)
}

func TestLoggerAppendsWithoutSecondHeader(t *testing.T) {
	dir := t.TempDir()
	for range 2 {
		l, err := CreateSpecCheckLogger(dir)
		require.NoError(t, err)
		require.NoError(t, l.LogSpecCheck(1, "true", "true", "true", "true", "true"))
		require.NoError(t, l.Close())
	}
	rows, err := ReadCSV(filepath.Join(dir, "spec_check_log.csv"))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, SpecCheckHeader, rows[0])
}

func TestWriteNodeInfo(t *testing.T) {
	dir := t.TempDir()
	nodes := []models.ValidatorNode{
		{Peer: models.SocketAddress{Port: 60000}, Keys: models.ValidatorKeyData{ValidationPublicKey: "n9"}},
	}
	require.NoError(t, WriteNodeInfo(dir, nodes))
	rows, err := ReadCSV(filepath.Join(dir, "node_info.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "60000", rows[1][1])
	assert.Equal(t, "n9", rows[1][6])
}

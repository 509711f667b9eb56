package ledger

import (
	"context"
	"time"

	"github.com/mavleo96/rocket/internal/csvlog"
	"github.com/mavleo96/rocket/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ResultSink receives one result record per node and validated ledger
type ResultSink interface {
	LogResult(r csvlog.ResultRecord) error
}

// Recorder writes the validated ledgers of every node to a result log
type Recorder struct {
	fetcher       Fetcher
	sink          ResultSink
	goalLedgerSeq int
}

// CreateRecorder creates a recorder for one iteration
func CreateRecorder(fetcher Fetcher, sink ResultSink, goalLedgerSeq int) *Recorder {
	return &Recorder{fetcher: fetcher, sink: sink, goalLedgerSeq: goalLedgerSeq}
}

// RecordValidated fetches ledger seq from all nodes concurrently and logs
// the results in node order. Nodes whose ledger cannot be fetched are
// skipped. The first fetch error is returned after all nodes were tried.
func (r *Recorder) RecordValidated(ctx context.Context, nodes []models.ValidatorNode, seq int, elapsed time.Duration) error {
	ledgers := make([]*Ledger, len(nodes))
	var g errgroup.Group
	for id, node := range nodes {
		g.Go(func() error {
			l, err := r.fetcher.FetchLedger(ctx, node.WSAdmin, seq)
			if err != nil {
				log.Errorf("[RecordValidated] Could not retrieve ledger %d from node %d: %v", seq, id, err)
				return err
			}
			ledgers[id] = l
			return nil
		})
	}
	fetchErr := g.Wait()

	for id, l := range ledgers {
		if l == nil {
			continue
		}
		err := r.sink.LogResult(csvlog.ResultRecord{
			NodeID:           id,
			LedgerSeq:        seq,
			GoalLedgerSeq:    r.goalLedgerSeq,
			TimeToValidation: elapsed.Seconds(),
			CloseTime:        l.CloseTime,
			LedgerHash:       l.Hash,
			LedgerIndex:      l.Index,
			Transactions:     l.Transactions,
		})
		if err != nil {
			return err
		}
	}
	return fetchErr
}

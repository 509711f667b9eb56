// Package checker derives consensus verdicts from the logs of an iteration.
package checker

import (
	"slices"
	"strconv"
	"strings"

	"github.com/mavleo96/rocket/internal/codec"
	"github.com/mavleo96/rocket/internal/csvlog"
	"github.com/mavleo96/rocket/internal/utils"
)

// zeroHash is the transaction set hash of a proposal without transactions
var zeroHash = strings.Repeat("0", 64)

// LedgerData groups result records by ledger sequence
type LedgerData map[int][]csvlog.ResultRecord

// ActionData groups action records by sending node
type ActionData map[int][]csvlog.ActionRecord

// Byzantine is the set of node ids excluded from every check
type Byzantine map[int]bool

// ByzantineSet builds a Byzantine set from a list of ids
func ByzantineSet(ids []int) Byzantine {
	set := make(Byzantine, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// GroupResults groups records by ledger sequence
func GroupResults(records []csvlog.ResultRecord) LedgerData {
	ledgers := make(LedgerData)
	for _, r := range records {
		ledgers[r.LedgerSeq] = append(ledgers[r.LedgerSeq], r)
	}
	return ledgers
}

// GroupActions groups records by sending node
func GroupActions(records []csvlog.ActionRecord) ActionData {
	actions := make(ActionData)
	for _, r := range records {
		actions[r.FromNode] = append(actions[r.FromNode], r)
	}
	return actions
}

func (l LedgerData) honest(seq int, byzantine Byzantine) []csvlog.ResultRecord {
	records := make([]csvlog.ResultRecord, 0, len(l[seq]))
	for _, r := range l[seq] {
		if !byzantine[r.NodeID] {
			records = append(records, r)
		}
	}
	return records
}

// AgreementResult is the outcome of CheckAgreement
type AgreementResult struct {
	AllLedgerGoalReached bool
	AllHashesPass        bool
	AllIndexesPass       bool
}

// CheckAgreement checks that honest nodes report the same hash and index
// for every sequence, and that as many nodes reported the last sequence as
// the first one, the last one being the goal.
func CheckAgreement(ledgers LedgerData, byzantine Byzantine) AgreementResult {
	seqs := make([]int, 0, len(ledgers))
	for _, seq := range utils.Keys(ledgers) {
		if len(ledgers.honest(seq, byzantine)) > 0 {
			seqs = append(seqs, seq)
		}
	}
	if len(seqs) == 0 {
		return AgreementResult{}
	}
	slices.Sort(seqs)

	result := AgreementResult{AllHashesPass: true, AllIndexesPass: true}
	for _, seq := range seqs {
		records := ledgers.honest(seq, byzantine)
		for _, r := range records[1:] {
			if r.LedgerHash != records[0].LedgerHash {
				result.AllHashesPass = false
			}
			if r.LedgerIndex != records[0].LedgerIndex {
				result.AllIndexesPass = false
			}
		}
	}

	minSeq, maxSeq := seqs[0], seqs[len(seqs)-1]
	first, last := ledgers.honest(minSeq, byzantine), ledgers.honest(maxSeq, byzantine)
	result.AllLedgerGoalReached = len(first) == len(last) && maxSeq == first[0].GoalLedgerSeq
	return result
}

// statusFields returns the parsed fields of honest status changes
func statusFields(actions ActionData, byzantine Byzantine, messageType string) []map[string]string {
	fields := make([]map[string]string, 0)
	for node, records := range actions {
		if byzantine[node] {
			continue
		}
		for _, r := range records {
			if r.MessageType == messageType {
				fields = append(fields, codec.ParseFields(r.OriginalData))
			}
		}
	}
	return fields
}

// CheckIntegrity checks that honest status changes reporting the same
// ledger sequence report the same ledger hash
func CheckIntegrity(actions ActionData, byzantine Byzantine) bool {
	hashes := make(map[string]string)
	for _, f := range statusFields(actions, byzantine, codec.TypeStatusChange.String()) {
		seq, hasSeq := f["ledgerSeq"]
		hash, hasHash := f["ledgerHash"]
		if !hasSeq || !hasHash {
			continue
		}
		if prev, ok := hashes[seq]; ok && prev != hash {
			return false
		}
		hashes[seq] = hash
	}
	return true
}

// CheckValidity checks the transactions each honest node validated against
// the honest traffic of the run. Every validated transaction must have been
// relayed by an honest node, and a sequence for which every honest proposal
// was empty must validate no transaction.
func CheckValidity(ledgers LedgerData, actions ActionData, byzantine Byzantine) bool {
	relayed := make(map[string]bool)
	for _, f := range statusFields(actions, byzantine, codec.TypeTransaction.String()) {
		if txid, ok := f["txid"]; ok {
			relayed[strings.ToUpper(txid)] = true
		}
	}

	proposed := make(map[int]map[string]bool)
	for _, f := range statusFields(actions, byzantine, codec.TypeProposeLedger.String()) {
		seq, err := strconv.Atoi(f["ledger_seq"])
		hash, ok := f["currentTxHash"]
		if err != nil || !ok {
			continue
		}
		if proposed[seq] == nil {
			proposed[seq] = make(map[string]bool)
		}
		proposed[seq][strings.ToUpper(hash)] = true
	}

	for seq := range ledgers {
		onlyEmpty := len(proposed[seq]) == 1 && proposed[seq][zeroHash]
		for _, r := range ledgers.honest(seq, byzantine) {
			if onlyEmpty && len(r.Transactions) > 0 {
				return false
			}
			for _, tx := range r.Transactions {
				if !relayed[strings.ToUpper(tx)] {
					return false
				}
			}
		}
	}
	return true
}

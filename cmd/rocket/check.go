package main

import (
	"fmt"
	"path/filepath"

	"github.com/mavleo96/rocket/internal/checker"
	"github.com/mavleo96/rocket/internal/csvlog"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check RUN_DIR",
	Short: "Check the logged iterations of a run again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := checker.IterationNumbers(args[0])
		if err != nil {
			return err
		}
		if len(numbers) == 0 {
			return fmt.Errorf("no iteration logs in %s", args[0])
		}
		byzantine := checker.ByzantineSet(settings.GetIntSlice("byzantine"))
		for _, n := range numbers {
			v := checker.EvaluateIteration(args[0], n, byzantine)
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\t%s\n",
				v.Iteration, v.ReachedGoalLedger, v.SameLedgerHashes, v.SameLedgerIndexes, v.Integrity, v.Validity)
		}
		return nil
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate RUN_DIR",
	Short: "Aggregate the spec check log of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verdicts, err := checker.ReadSpecCheckLog(filepath.Join(args[0], csvlog.SpecCheckLogName+".csv"))
		if err != nil {
			return err
		}
		agg := checker.AggregateVerdicts(verdicts)
		path, err := checker.WriteAggregate(args[0], agg)
		if err != nil {
			return err
		}
		log.Infof("Aggregated %d iterations (%d correct) into %s", agg.TotalIterations, agg.CorrectRuns, path)
		return nil
	},
}

func init() {
	checkCmd.Flags().IntSlice("byzantine", nil, "ids of byzantine nodes excluded from the checks")
}

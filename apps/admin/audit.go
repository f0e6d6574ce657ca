package main

import (
	"context"
	"errors"
)

var errDrift = errors.New("dues balances drifted from their source rows")

func (cli *commandLine) audit() error {
	rep, err := cli.svc.Auditor.Run(context.Background())
	if err != nil {
		return err
	}
	cli.printf("checked %d students at %s\n", rep.StudentsChecked, rep.RunAt.Format("2006-01-02 15:04:05"))
	if rep.Consistent {
		cli.printf("all balances consistent\n")
		return nil
	}
	for _, d := range rep.Drifts {
		cli.printf("  %s: ledger %s, expected %s (difference %s)\n",
			d.StudentID, d.LedgerBalance.StringFixed(2), d.Expected.StringFixed(2), d.Difference.StringFixed(2))
	}
	return errDrift
}

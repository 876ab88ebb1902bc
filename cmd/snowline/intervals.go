package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrissnell/snowline/internal/interval"
)

func printIntervals(cmd *cobra.Command, args []string) error {
	opts := interval.Options{
		StartYear: startYear,
		EndYear:   endYear,
		AggDays:   aggDays,
	}
	if opts.EndYear == 0 {
		opts.EndYear = opts.StartYear
	}
	if until != "" {
		t, err := time.Parse(time.DateOnly, until)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		opts.Until = t
	}

	intervals, err := interval.Generate(opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, iv := range intervals {
		fmt.Fprintf(out, "%s\t%s\t%s\n", iv.Label(), iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/condacore/conda-core/prefix"
)

// List prints a prefix's installed packages as a table, sorted by name.
func List(ctx context.Context, cc *commonConfig, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cc.prefix == "" {
		return fmt.Errorf("list: -p <prefix> is required")
	}

	data, err := prefix.Load(cc.prefix)
	if err != nil {
		return fmt.Errorf("list: loading prefix %s: %w", cc.prefix, err)
	}
	records := data.Records()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "# Name\tVersion\tBuild\tChannel")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Version, r.Build, r.Channel.Name)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newDumpCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Parse one sheet and print its JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			loader, err := newLoader(cfg, logger)
			if err != nil {
				return err
			}

			start := time.Now()
			doc, err := loader.LoadSummary(cfg.Workbook.Sheet)
			if err != nil {
				return err
			}
			logger.Info("sheet parsed",
				"sheet", doc.SheetName,
				"current_week", doc.WeekInfo.Current,
				"next_week", doc.WeekInfo.Next,
				"rows", doc.RowCounts(),
				"duration", time.Since(start),
			)

			var data []byte
			if pretty {
				data, err = json.MarshalIndent(doc, "", "  ")
			} else {
				data, err = json.Marshal(doc)
			}
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			if output != "" {
				return os.WriteFile(output, data, 0o644)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON")
	return cmd
}

func newSheetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List worksheets in the workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, logger, err := opts.setup()
			if err != nil {
				return err
			}
			loader, err := newLoader(cfg, logger)
			if err != nil {
				return err
			}
			names, err := loader.SheetNames()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				marker := " "
				if name == cfg.Workbook.Sheet {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

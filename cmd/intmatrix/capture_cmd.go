package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/muurk/intmatrix/internal/capture"
	"github.com/muurk/intmatrix/internal/protocol"
)

var analyzeRaw bool

func init() {
	captureAnalyzeCmd.Flags().BoolVar(&analyzeRaw, "raw", false, "Also print each delivery as hex")
	captureCmd.AddCommand(captureAnalyzeCmd)
	rootCmd.AddCommand(captureCmd)
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Work with stream capture files",
	Long: `Stream capture is enabled with --capture-dir or the capture_dir preference.
Every delivery on the control port is written with its direction and
timestamp, as JSON lines or CBOR.`,
}

var captureAnalyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Decode a capture file into status lines",
	Long: `Replay a capture through the same line reassembly and classification the
driver uses, and print each decoded line with what it reports.`,
	Example: `  intmatrix capture analyze ~/.config/intmatrix/captures/capture-20260101-120000-1a2b3c4d.jsonl`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := capture.ReadFile(args[0])
		if err != nil {
			return err
		}
		decoded, err := capture.Analyze(records)
		if err != nil {
			return err
		}

		fmt.Printf("=== Capture Analyzer ===\n")
		fmt.Printf("File: %s\n", args[0])
		fmt.Printf("Deliveries: %d\n\n", len(records))

		for _, d := range decoded {
			ts := d.Record.Timestamp.Format("15:04:05.000")
			if d.Update == nil {
				fmt.Printf("%s  >> %-16q\n", ts, d.Line)
			} else {
				fmt.Printf("%s  << %-16q %s\n", ts, d.Line, d.Update)
			}
			if analyzeRaw {
				fmt.Printf("              #%d %s\n", d.Record.Seq, d.Record.Hex)
			}
		}

		s := capture.Summarize(records, decoded)
		fmt.Printf("\nSent: %d  Received: %d\n", s.Sent, s.Received)

		kinds := make([]protocol.Kind, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Printf("  %-14s %d\n", k, s.ByKind[k])
		}
		return nil
	},
}

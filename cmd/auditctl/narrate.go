package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"audit-trail/internal/audit"
	"audit-trail/internal/narrative"

	"github.com/spf13/cobra"
)

type narrateFlags struct {
	file     string
	timezone string
	brief    bool
}

func newNarrateCmd() *cobra.Command {
	var flags narrateFlags

	cmd := &cobra.Command{
		Use:   "narrate",
		Short: "Render the narrative for a stored record",
		Long:  "Reads one audit record as JSON (from --file or stdin) and prints its narrative sentence.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNarrate(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.file, "file", "f", "-", "Record JSON file, - for stdin")
	cmd.Flags().StringVar(&flags.timezone, "tz", "UTC", "Zone timestamps are rendered in")
	cmd.Flags().BoolVar(&flags.brief, "brief", false, "Ignore payloads and describe the action only")
	return cmd
}

func runNarrate(cmd *cobra.Command, flags narrateFlags) error {
	loc, err := time.LoadLocation(flags.timezone)
	if err != nil {
		return fmt.Errorf("unknown zone %q: %w", flags.timezone, err)
	}
	data, err := readInput(cmd, flags.file)
	if err != nil {
		return err
	}
	var rec audit.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	b := narrative.NewBuilder(loc, nil)
	out := b.Build(rec)
	if flags.brief {
		out = b.Brief(rec.EntityType, rec.EntityID, rec.ActionType.Code, rec.ActionBy, rec.ActionAt, rec.IPAddress)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agora-sim/agora/eventlog"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
			return nil
		}
		return err
	}

	found := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMeta(filepath.Join(dataDir, entry.Name()))
		if err != nil {
			continue
		}
		found++
		fmt.Fprintf(cmd.OutOrStdout(), "%s  created %s  actors %d\n",
			meta.SessionID, meta.CreatedAt.Format("2006-01-02 15:04:05"), len(meta.Actors))
	}
	if found == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
	}
	return nil
}

func readMeta(dir string) (eventlog.SessionMeta, error) {
	var meta eventlog.SessionMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

package cmd

import (
	"fmt"

	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/agentic-research/hl7find/internal/store"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var loadRoot string

var loadCmd = &cobra.Command{
	Use:   "load [messages.db] [files...]",
	Short: "Import ER7 files into a SQLite message store",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := runLoad(osfs.New(loadRoot), args[0], args[1:], cfg.ProfileRegistry(), logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d messages into %s\n", n, args[0])
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadRoot, "root", ".", "Directory file arguments are relative to")
}

// runLoad splits each file into messages and stores them keyed by control ID,
// returning the number of distinct IDs stored. Messages that fail to parse are
// logged and skipped; a repeated ID replaces the earlier message with a warning.
func runLoad(fsys billy.Filesystem, dbPath string, paths []string, reg hl7.Profiles, logger *zap.Logger) (int, error) {
	var batch []store.RawMessage
	seen := make(map[string]string)
	for _, path := range paths {
		msgs, err := readMessages(fsys, path)
		if err != nil {
			return 0, err
		}
		for i, raw := range msgs {
			msg, err := hl7.Parse([]byte(raw), hl7.WithProfiles(reg))
			if err != nil {
				logger.Warn("skipping message",
					zap.String("path", path),
					zap.Int("index", i+1),
					zap.Error(err))
				continue
			}
			id := messageID(msg, path, i)
			if prev, ok := seen[id]; ok {
				logger.Warn("duplicate message id replaces earlier message",
					zap.String("message_id", id),
					zap.String("path", path),
					zap.Int("index", i+1),
					zap.String("previous_path", prev))
			}
			seen[id] = path
			batch = append(batch, store.RawMessage{ID: id, Raw: raw})
		}
	}
	if err := store.ImportMessages(dbPath, batch); err != nil {
		return 0, err
	}
	logger.Info("loaded messages", zap.String("db", dbPath), zap.Int("count", len(seen)))
	return len(seen), nil
}

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/agentic-research/hl7find/api"
	"github.com/agentic-research/hl7find/internal/finder"
	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/agentic-research/hl7find/internal/index"
	"github.com/agentic-research/hl7find/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scanOut     string
	scanQueries []string
)

var errNoQueries = errors.New("no queries configured")

var scanCmd = &cobra.Command{
	Use:   "scan [messages.db]",
	Short: "Run configured queries over a message store and persist the matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queries := cfg.Queries
		if len(scanQueries) > 0 {
			queries = nil
			for _, name := range scanQueries {
				q, err := cfg.Query(name)
				if err != nil {
					return err
				}
				queries = append(queries, q)
			}
		}
		start := time.Now()
		idx, err := runScan(args[0], scanOut, queries, cfg.ProfileRegistry(), logger)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), idx, queries)
		logger.Info("scan complete", zap.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOut, "out", "o", "matches.db", "SQLite database receiving match records")
	scanCmd.Flags().StringSliceVarP(&scanQueries, "query", "q", nil, "Named queries to run (default: all configured)")
}

// runScan streams every stored message through each query, writing matches to
// outPath. The returned index maps query names to the ordinals (stream
// position) of messages with at least one match.
func runScan(dbPath, outPath string, queries []api.Query, reg hl7.Profiles, logger *zap.Logger) (*index.NameIndex, error) {
	if len(queries) == 0 {
		return nil, errNoQueries
	}
	if filepath.Clean(dbPath) == filepath.Clean(outPath) {
		return nil, fmt.Errorf("scan output %s must differ from the message store", outPath)
	}
	compiled := make([]finder.Predicate, len(queries))
	for i, q := range queries {
		p, err := finder.Compile(q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		compiled[i] = p
	}

	w, err := store.NewMatchWriter(outPath, logger)
	if err != nil {
		return nil, err
	}
	idx := index.New()
	var ordinal uint32
	streamErr := store.StreamMessages(dbPath, func(id, raw string) error {
		defer func() { ordinal++ }()
		msg, err := hl7.Parse([]byte(raw), hl7.WithProfiles(reg))
		if err != nil {
			logger.Warn("skipping message", zap.String("message_id", id), zap.Error(err))
			return nil
		}
		for i, q := range queries {
			matches := hl7.Visit(msg, finder.New(compiled[i], q.First)).Matches()
			if len(matches) == 0 {
				continue
			}
			idx.Add(q.Name, ordinal)
			for _, rec := range finder.Records(matches, id, q.Name) {
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err := w.Close(); err != nil && streamErr == nil {
		streamErr = err
	}
	if streamErr != nil {
		return nil, streamErr
	}
	return idx, nil
}

func printSummary(out io.Writer, idx *index.NameIndex, queries []api.Query) {
	names := make([]string, len(queries))
	for i, q := range queries {
		names[i] = q.Name
		fmt.Fprintf(out, "%-24s %d messages\n", q.Name, idx.Count(q.Name))
	}
	if len(names) > 1 {
		fmt.Fprintf(out, "%-24s %d messages\n", "(all)", len(idx.Common(names...)))
	}
}

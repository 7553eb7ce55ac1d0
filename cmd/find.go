package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/agentic-research/hl7find/api"
	"github.com/agentic-research/hl7find/internal/finder"
	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	findSegments []string
	findGroups   []string
	findField    string
	findValue    string
	findJSONPath string
	findFirst    bool
	findProfile  string
	findQuery    string
	findRoot     string
)

var findCmd = &cobra.Command{
	Use:   "find [files...]",
	Short: "Print matching segments and groups as JSON lines",
	Long: `Parse each file (one or more ER7 messages, batch envelopes allowed) and
print one JSON match record per structure accepted by the query, in
post-order. --first stops each message at its first match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := api.Query{}
		if findQuery != "" {
			var err error
			if q, err = cfg.Query(findQuery); err != nil {
				return err
			}
		}
		flags := cmd.Flags()
		if flags.Changed("segment") {
			q.Segments = findSegments
		}
		if flags.Changed("group") {
			q.Groups = findGroups
		}
		if flags.Changed("field") {
			q.Field = findField
		}
		if flags.Changed("value") {
			q.Value = findValue
		}
		if flags.Changed("jsonpath") {
			q.JSONPath = findJSONPath
		}
		if flags.Changed("first") {
			q.First = findFirst
		}

		reg := cfg.ProfileRegistry()
		opts := []hl7.ParseOption{hl7.WithProfiles(reg)}
		if findProfile != "" {
			p, err := reg.Get(findProfile)
			if err != nil {
				return err
			}
			opts = append(opts, hl7.WithProfile(p))
		}
		return runFind(cmd.OutOrStdout(), osfs.New(findRoot), args, q, logger, opts...)
	},
}

func init() {
	findCmd.Flags().StringSliceVarP(&findSegments, "segment", "s", nil, "Segment IDs to match (repeatable or comma separated)")
	findCmd.Flags().StringSliceVarP(&findGroups, "group", "g", nil, "Group names to match")
	findCmd.Flags().StringVarP(&findField, "field", "f", "", "Field reference the match must carry, e.g. OBX-3.1")
	findCmd.Flags().StringVar(&findValue, "value", "", "Value --field must equal; empty means any non-empty value")
	findCmd.Flags().StringVar(&findJSONPath, "jsonpath", "", "JSONPath evaluated against each structure's generic form")
	findCmd.Flags().BoolVar(&findFirst, "first", false, "Stop at the first match in each message")
	findCmd.Flags().StringVarP(&findProfile, "profile", "p", "", "Force a message profile instead of resolving it from MSH-9")
	findCmd.Flags().StringVarP(&findQuery, "query", "q", "", "Start from a named query in the config file")
	findCmd.Flags().StringVar(&findRoot, "root", ".", "Directory file arguments are relative to")
}

// runFind searches every message in paths and writes one JSON record per match.
func runFind(out io.Writer, fsys billy.Filesystem, paths []string, q api.Query, logger *zap.Logger, opts ...hl7.ParseOption) error {
	if _, err := finder.Compile(q); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	enc := json.NewEncoder(out)
	for _, path := range paths {
		msgs, err := readMessages(fsys, path)
		if err != nil {
			return err
		}
		for i, raw := range msgs {
			msg, err := hl7.Parse([]byte(raw), opts...)
			if err != nil {
				return fmt.Errorf("%s: message %d: %w", path, i+1, err)
			}
			matches, err := finder.Run(msg, q)
			if err != nil {
				return err
			}
			id := messageID(msg, path, i)
			logger.Debug("searched message",
				zap.String("path", path),
				zap.String("message_id", id),
				zap.String("structure", msg.Structure()),
				zap.Int("matches", len(matches)))
			for _, rec := range finder.Records(matches, id, q.Name) {
				if err := enc.Encode(rec); err != nil {
					return fmt.Errorf("write match: %w", err)
				}
			}
		}
	}
	return nil
}

func readMessages(fsys billy.Filesystem, path string) ([]string, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return hl7.SplitMessages(data), nil
}

// messageID is MSH-10, or path#n when the sender left it empty.
func messageID(msg *hl7.Message, path string, i int) string {
	if id := msg.ControlID(); id != "" {
		return id
	}
	return fmt.Sprintf("%s#%d", path, i+1)
}

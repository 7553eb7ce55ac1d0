package hl7

import "strings"

// batchEnvelope segments wrap messages in a file or batch; they belong to no message.
var batchEnvelope = map[string]bool{"FHS": true, "BHS": true, "BTS": true, "FTS": true}

// SplitMessages cuts a file holding one or more messages into individual
// messages, one per MSH segment. Envelope segments and anything before the
// first MSH are dropped. Each message is returned CR-terminated.
func SplitMessages(data []byte) []string {
	var (
		out []string
		cur []string
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\r")+"\r")
			cur = nil
		}
	}
	for _, line := range splitSegments(string(data)) {
		name := line
		if len(name) > 3 {
			name = name[:3]
		}
		switch {
		case name == "MSH":
			flush()
			cur = append(cur, line)
		case batchEnvelope[name]:
			flush()
		case cur != nil:
			cur = append(cur, line)
		}
	}
	flush()
	return out
}

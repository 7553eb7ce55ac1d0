package hl7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessages(t *testing.T) {
	batch := "FHS|^~\\&|LAB\n" +
		"BHS|^~\\&|LAB\n" +
		"MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.5\n" +
		"PID|1\n" +
		"\n" +
		"MSH|^~\\&|A|B|C|D|20240101||ADT^A08|2|P|2.5\r\n" +
		"PID|2\r\n" +
		"BTS|2\n" +
		"FTS|1\n"

	msgs := SplitMessages([]byte(batch))
	require.Len(t, msgs, 2)
	assert.Equal(t, "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.5\rPID|1\r", msgs[0])
	assert.Equal(t, "MSH|^~\\&|A|B|C|D|20240101||ADT^A08|2|P|2.5\rPID|2\r", msgs[1])

	for _, raw := range msgs {
		_, err := Parse([]byte(raw), WithProfiles(DefaultProfiles()))
		assert.NoError(t, err)
	}
}

func TestSplitMessages_Single(t *testing.T) {
	msgs := SplitMessages([]byte(oruMessage))
	require.Len(t, msgs, 1)
	assert.Equal(t, oruMessage, msgs[0])

	assert.Empty(t, SplitMessages([]byte("PID|1\rPV1|1\r")), "no header, no message")
	assert.Empty(t, SplitMessages(nil))
}

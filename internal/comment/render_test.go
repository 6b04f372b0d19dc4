package comment

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worlddriven/worlddriven/internal/repoconfig"
	"github.com/worlddriven/worlddriven/internal/scoring"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testSnapshot() *scoring.Snapshot {
	return scoring.Compute(&scoring.Input{
		Number:    1,
		Author:    "alice",
		CreatedAt: testNow.Add(-time.Hour),
		Contributors: []scoring.ContributorCommits{
			{Login: "alice", Commits: 3},
			{Login: "bob", Commits: 1},
		},
	}, repoconfig.Default(), testNow)
}

func entries(n int) []Entry {
	result := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, Entry{
			Time:    testNow.Add(time.Duration(i) * time.Minute),
			Message: fmt.Sprintf("activity `%d` happened", i),
		})
	}

	return result
}

func TestRenderParseRoundTrip(t *testing.T) {
	for n := 0; n <= MaxLogEntries; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			log := entries(n)

			body := Render(testSnapshot(), log)
			parsed := ParseLog(body)

			if n == 0 {
				assert.Empty(t, parsed)
				return
			}

			assert.Equal(t, log, parsed)
		})
	}
}

func TestRenderKeepsLastEntries(t *testing.T) {
	log := entries(MaxLogEntries + 3)

	parsed := ParseLog(Render(testSnapshot(), log))
	require.Len(t, parsed, MaxLogEntries)
	assert.Equal(t, log[3:], parsed)
}

func TestRenderSanitizesMultilineMessages(t *testing.T) {
	log := []Entry{{Time: testNow, Message: "first line\nsecond line"}}

	parsed := ParseLog(Render(testSnapshot(), log))
	require.Len(t, parsed, 1)
	assert.Equal(t, "first line second line", parsed[0].Message)
}

func TestRenderNormalizesEntries(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	log := []Entry{
		{Time: testNow.Add(1500 * time.Millisecond).In(berlin), Message: "  opened\r\n"},
		{Time: testNow.Add(time.Minute), Message: " \n "},
	}

	parsed := ParseLog(Render(testSnapshot(), log))
	assert.Equal(t, []Entry{{Time: testNow.Add(time.Second), Message: "opened"}}, parsed)
	assert.Equal(t, parsed, ParseLog(Render(testSnapshot(), parsed)))
}

func TestRenderContainsMarkerAndContributors(t *testing.T) {
	body := Render(testSnapshot(), nil)

	assert.True(t, strings.HasPrefix(body, Marker))
	assert.Contains(t, body, "| alice | 3 | approved |")
	assert.Contains(t, body, "| bob | 1 | - |")
	assert.Contains(t, body, "will be **merged**")
}

func TestParseLogIgnoresInvalidLines(t *testing.T) {
	body := Marker + "\n" + logBeginMarker + "\n" +
		"- `not a timestamp` broken\n" +
		"some text\n" +
		"- `2024-05-01T12:00:00Z` valid\n" +
		logEndMarker + "\n"

	assert.Equal(t, []Entry{{Time: testNow, Message: "valid"}}, ParseLog(body))
}

func TestParseLogWithoutLog(t *testing.T) {
	assert.Empty(t, ParseLog("a regular comment"))
	assert.Empty(t, ParseLog(Marker+"\n"+logBeginMarker+"\n- `2024-05-01T12:00:00Z` unterminated\n"))
}

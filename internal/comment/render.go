package comment

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/worlddriven/worlddriven/internal/scoring"
)

// Marker identifies the tracking comment of a pull request.
const Marker = "<!-- worlddriven:status -->"

const (
	logBeginMarker = "<!-- worlddriven:log:begin -->"
	logEndMarker   = "<!-- worlddriven:log:end -->"
)

// MaxLogEntries is the number of activity log entries that are kept in the
// comment, older entries are dropped.
const MaxLogEntries = 5

const timestampFormat = time.RFC3339

var logLineRegex = regexp.MustCompile("^- `([^`]+)` (.*)$")

// Entry is an activity log entry.
// Entries are stored with a second precision UTC timestamp and a single line
// message, Render normalizes entries accordingly.
type Entry struct {
	Time    time.Time
	Message string
}

// ParseLog returns the activity log entries embedded in a rendered comment
// body. Lines that can not be parsed are ignored.
func ParseLog(body string) []Entry {
	begin := strings.Index(body, logBeginMarker)
	if begin == -1 {
		return nil
	}

	rest := body[begin+len(logBeginMarker):]

	end := strings.Index(rest, logEndMarker)
	if end == -1 {
		return nil
	}

	var result []Entry
	for _, line := range strings.Split(rest[:end], "\n") {
		matches := logLineRegex.FindStringSubmatch(strings.TrimSpace(line))
		if len(matches) != 3 {
			continue
		}

		ts, err := time.Parse(timestampFormat, matches[1])
		if err != nil {
			continue
		}

		result = append(result, Entry{Time: ts, Message: matches[2]})
	}

	return result
}

// sanitizeMessage converts msg to a single line that can be parsed back by
// ParseLog.
func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, logEndMarker, "")
	return strings.TrimSpace(msg)
}

func normalizeEntry(e Entry) Entry {
	return Entry{
		Time:    e.Time.UTC().Truncate(time.Second),
		Message: sanitizeMessage(e.Message),
	}
}

// truncateLog returns the last MaxLogEntries entries of log.
func truncateLog(log []Entry) []Entry {
	if len(log) <= MaxLogEntries {
		return log
	}

	return log[len(log)-MaxLogEntries:]
}

func formatDuration(secs float64) string {
	return scoring.Seconds(secs).String()
}

// Render returns the body of the tracking comment for the snapshot with the
// given activity log. Only the last MaxLogEntries are rendered.
func Render(s *scoring.Snapshot, log []Entry) string {
	var sb strings.Builder

	sb.WriteString(Marker)
	sb.WriteString("\n### worlddriven status\n\n")

	switch s.Action {
	case scoring.ActionMerge:
		if s.Due() {
			sb.WriteString("This pull request is due to be **merged**.\n")
		} else {
			fmt.Fprintf(&sb,
				"This pull request will be **merged** at %s, in %s.\n",
				s.TargetAt.UTC().Format(timestampFormat), formatDuration(s.Remaining),
			)
		}

	case scoring.ActionClose:
		if s.Due() {
			sb.WriteString("This pull request is due to be **closed**.\n")
		} else {
			fmt.Fprintf(&sb,
				"This pull request will be **closed** at %s, in %s.\n",
				s.TargetAt.UTC().Format(timestampFormat), formatDuration(s.Remaining),
			)
		}
	}

	fmt.Fprintf(&sb,
		"\nCoefficient: %.2f (%d of %d weighted votes). Total merge time: %s, merge method: %s.\n",
		s.Coefficient, s.Votes, s.VotesTotal, formatDuration(s.TotalMergeTime), s.Config.MergeMethod,
	)

	if len(s.Contributors) > 0 {
		sb.WriteString("\n| Contributor | Commits | Review | Time value |\n")
		sb.WriteString("|---|---|---|---|\n")

		for _, c := range s.Contributors {
			fmt.Fprintf(&sb, "| %s | %d | %s | %s |\n",
				c.Name, c.CommitWeight, reviewSymbol(c.ReviewValue), formatDuration(c.TimeValue),
			)
		}
	}

	sb.WriteString("\n#### Activity\n")
	sb.WriteString(logBeginMarker)
	sb.WriteString("\n")

	for _, e := range truncateLog(log) {
		e = normalizeEntry(e)
		if e.Message == "" {
			continue
		}

		fmt.Fprintf(&sb, "- `%s` %s\n", e.Time.Format(timestampFormat), e.Message)
	}

	sb.WriteString(logEndMarker)
	sb.WriteString("\n")

	return sb.String()
}

func reviewSymbol(v int) string {
	switch {
	case v > 0:
		return "approved"
	case v < 0:
		return "changes requested"
	default:
		return "-"
	}
}

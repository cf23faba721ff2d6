package moderation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"emperror.dev/errors"
)

// MaxReportLength is the discord message length limit
const MaxReportLength = 2000

const showTimeFormat = "2006-01-02 15:04:05.999999-07:00"

// Result is the response to an invocation, Text is never empty
type Result struct {
	Text    string
	File    *File
	Summary *ExecutionSummary
}

type File struct {
	Name    string
	Content []byte
}

// PurgeReport formats the result of a message deletion
func PurgeReport(summary *ExecutionSummary) string {
	deleted := summary.Success
	if summary.Abort != nil && deleted == 0 {
		return AbortReason(summary.Abort)
	}

	lines := []string{countRemoved(deleted)}
	if deleted > 0 {
		lines = append(lines, "")
		for _, v := range summary.AuthorCounts() {
			lines = append(lines, fmt.Sprintf("**%s**: %d", v.Name, v.Count))
		}
	}

	if summary.Unauthorized > 0 {
		lines = append(lines, "", fmt.Sprintf("(%d message(s) skipped: not permitted)", summary.Unauthorized))
	}

	if summary.Abort != nil {
		lines = append(lines, "", "Stopped early: "+AbortReason(summary.Abort))
	}

	out := strings.Join(lines, "\n")
	if utf8.RuneCountInString(out) > MaxReportLength {
		return fmt.Sprintf("Successfully removed %d messages.", deleted)
	}

	return out
}

func countRemoved(n int) string {
	if n == 1 {
		return "1 message was removed."
	}

	return strconv.Itoa(n) + " messages were removed."
}

// AbortReason describes why a batch was stopped
func AbortReason(err error) string {
	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return "I do not have permissions to delete messages."
	}

	return fmt.Sprintf("Error: %s (try a smaller search?)", err)
}

// BanReport formats the result of a massban
func BanReport(summary *ExecutionSummary) string {
	out := fmt.Sprintf("Banned %d/%d", summary.Success, summary.Attempted())
	if summary.Unauthorized > 0 {
		out += fmt.Sprintf(" (%d member(s) skipped: not permitted)", summary.Unauthorized)
	}

	if summary.Abort != nil {
		out += "\nStopped early: " + summary.Abort.Error()
	}

	return out
}

// ReactionsReport formats the result of clearing reactions
func ReactionsReport(summary *ExecutionSummary) string {
	out := fmt.Sprintf("Successfully removed %d reactions.", summary.Reactions)
	if summary.Abort != nil {
		out += "\nStopped early: " + summary.Abort.Error()
	}

	return out
}

// MemberListing renders the massban --show file, members sorted by join date
func MemberListing(members []*MemberCandidate, now time.Time) *File {
	sorted := make([]*MemberCandidate, len(members))
	copy(sorted, members)

	joined := func(m *MemberCandidate) time.Time {
		if m.JoinedAt.IsZero() {
			return now
		}
		return m.JoinedAt
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return joined(sorted[i]).Before(joined(sorted[j]))
	})

	var buf strings.Builder
	buf.WriteString("Current Time: " + now.UTC().Format(showTimeFormat) + "\n")
	buf.WriteString("Total members: " + strconv.Itoa(len(sorted)) + "\n")

	for i, m := range sorted {
		joinedStr := "None"
		if !m.JoinedAt.IsZero() {
			joinedStr = m.JoinedAt.UTC().Format(showTimeFormat)
		}

		fmt.Fprintf(&buf, "%d\tJoined: %s\tCreated: %s\t%s", m.UserID, joinedStr, m.CreatedAt.UTC().Format(showTimeFormat), m.String())
		if i != len(sorted)-1 {
			buf.WriteByte('\n')
		}
	}

	return &File{
		Name:    "members.txt",
		Content: []byte(buf.String()),
	}
}

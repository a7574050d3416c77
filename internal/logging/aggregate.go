package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of depo.log.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	RunID     string         `json:"run_id,omitempty"`
	Project   string         `json:"project,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter defines criteria for filtering log entries. Zero values disable
// the corresponding criterion.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level string
	// Project keeps entries for this project local path.
	Project string
	// RunID keeps entries from a single run.
	RunID string
	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadEntries parses {logDir}/depo.log. Entries are sorted by timestamp.
// Lines that are not valid JSON are skipped.
func ReadEntries(logDir string) ([]LogEntry, error) {
	file, err := os.Open(filepath.Join(logDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", logDir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	return parseEntries(file)
}

func parseEntries(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for key, value := range raw {
		s, _ := value.(string)
		switch key {
		case "time":
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				entry.Timestamp = ts
			}
		case "level":
			entry.Level = s
		case "msg":
			entry.Message = s
		case "run_id":
			entry.RunID = s
		case "project":
			entry.Project = s
		case "stage":
			entry.Stage = s
		default:
			entry.Attrs[key] = value
		}
	}
	if len(entry.Attrs) == 0 {
		entry.Attrs = nil
	}
	return entry, nil
}

// FilterEntries returns the entries matching every criterion of filter.
func FilterEntries(entries []LogEntry, filter LogFilter) []LogEntry {
	minLevel, hasLevel := levelOrder[strings.ToUpper(filter.Level)]

	result := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		if hasLevel && levelOrder[strings.ToUpper(entry.Level)] < minLevel {
			continue
		}
		if filter.Project != "" && entry.Project != filter.Project {
			continue
		}
		if filter.RunID != "" && entry.RunID != filter.RunID {
			continue
		}
		if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
			continue
		}
		result = append(result, entry)
	}
	return result
}

// FormatEntry renders an entry as a single human-readable line.
func FormatEntry(entry LogEntry) string {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp.Format(time.RFC3339))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-5s", entry.Level))
	if entry.Project != "" {
		sb.WriteString(" [")
		sb.WriteString(entry.Project)
		sb.WriteString("]")
	}
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, entry.Attrs[k]))
	}
	return sb.String()
}

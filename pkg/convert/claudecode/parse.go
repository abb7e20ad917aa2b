package claudecode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// scanner sizing: a single line can carry a whole base64 screenshot.
const (
	scanInitialBuffer = 1024 * 1024
	scanMaxLine       = 64 * 1024 * 1024
)

// ParseFile reads a transcript from disk. Both JSON-Lines and a single
// JSON array of records are accepted; individual malformed lines are
// skipped, never fatal.
func ParseFile(path string, log *zap.Logger) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	head, _ := reader.Peek(1)
	if len(head) == 1 && head[0] == '[' {
		var records []Record
		if err := json.NewDecoder(reader).Decode(&records); err != nil {
			return nil, fmt.Errorf("parse transcript array: %w", err)
		}
		return records, nil
	}

	var records []Record
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, scanInitialBuffer), scanMaxLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Debug("skipping malformed transcript line",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return records, nil
}

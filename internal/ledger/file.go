package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/conduct-dev/conduct/internal/types"
)

// FileLedger appends events to a JSONL file, one object per line with
// lexicographically sorted keys so identical events always serialize to
// identical lines.
type FileLedger struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileLedger opens (creating if necessary) the ledger file at path in
// append mode. Parent directories are created as needed.
func NewFileLedger(path string) (*FileLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, types.WrapError(types.LEDGER_WRITE_FAILED,
				fmt.Sprintf("creating ledger directory %s", dir), err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, types.WrapError(types.LEDGER_WRITE_FAILED,
			fmt.Sprintf("opening ledger file %s", path), err)
	}
	return &FileLedger{path: path, file: f}, nil
}

// Record implements Ledger. The event is flushed to the file before
// Record returns.
func (l *FileLedger) Record(_ context.Context, event Event) error {
	line, err := marshalSorted(event)
	if err != nil {
		return types.WrapError(types.LEDGER_WRITE_FAILED, "encoding ledger event", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return types.WrapError(types.LEDGER_WRITE_FAILED,
			fmt.Sprintf("appending to ledger %s", l.path), err)
	}
	return nil
}

// Entries reads every event currently in the ledger, oldest first.
func (l *FileLedger) Entries() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.WrapError(types.LEDGER_WRITE_FAILED,
			fmt.Sprintf("reading ledger %s", l.path), err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, types.WrapError(types.LEDGER_WRITE_FAILED,
				fmt.Sprintf("decoding ledger line in %s", l.path), err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.WrapError(types.LEDGER_WRITE_FAILED,
			fmt.Sprintf("scanning ledger %s", l.path), err)
	}
	return events, nil
}

// Tail returns the last n events, oldest first. When the ledger holds
// fewer than n events all of them are returned.
func (l *FileLedger) Tail(n int) ([]Event, error) {
	events, err := l.Entries()
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(events) <= n {
		return events, nil
	}
	return events[len(events)-n:], nil
}

// Clear truncates the ledger file.
func (l *FileLedger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Truncate(0); err != nil {
		return types.WrapError(types.LEDGER_WRITE_FAILED,
			fmt.Sprintf("truncating ledger %s", l.path), err)
	}
	return nil
}

// Close flushes and closes the underlying file. The ledger must not be
// used after Close.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// marshalSorted serializes the event with sorted object keys. Structs
// marshal in field order, so the event is passed through a map, which
// encoding/json always emits in key order.
func marshalSorted(event Event) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

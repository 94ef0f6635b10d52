// Package audit provides audit logging for tool invocations.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const maxAuditLogBytes = 10 << 20 // 10MB per file

// Auditor logs tool invocations to a file with size-based rotation (10MB per
// file, filename includes creation date). Write failures never affect the
// tool outcome.
type Auditor struct {
	file        *os.File
	mu          sync.Mutex
	currentSize int64
	maxSize     int64
	dir         string
	base        string
	ext         string
}

// NewAuditor creates a new Auditor. On startup it reuses the most recent
// existing log file that is under 10MB; only creates a new file (with
// creation date in name) when none exists or all are full.
func NewAuditor(logFile string) (*Auditor, error) {
	dir := filepath.Dir(logFile)
	base := strings.TrimSuffix(filepath.Base(logFile), filepath.Ext(logFile))
	if base == "" {
		base = "audit"
	}
	ext := filepath.Ext(logFile)
	if ext == "" {
		ext = ".log"
	}

	a := &Auditor{
		maxSize: maxAuditLogBytes,
		dir:     dir,
		base:    base,
		ext:     ext,
	}
	if err := a.openOrCreate(); err != nil {
		return nil, err
	}
	return a, nil
}

// openOrCreate finds the most recent existing log file under maxSize and
// opens it for append, or creates a new file if none.
func (a *Auditor) openOrCreate() error {
	pattern := filepath.Join(a.dir, a.base+"_*"+a.ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return a.rotateOpen()
	}
	// Filename base_2006-01-02_150405.log; sort descending = newest first
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() < a.maxSize {
			file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				continue
			}
			a.file = file
			a.currentSize = info.Size()
			return nil
		}
	}
	return a.rotateOpen()
}

// rotateOpen opens a new file named base_YYYY-MM-DD_HHMMSS.ext and swaps it
// in. The current file is only closed after the new one is usable, so a
// failed rotation keeps the current file writable.
func (a *Auditor) rotateOpen() error {
	name := fmt.Sprintf("%s_%s%s", a.base, time.Now().Format("2006-01-02_150405"), a.ext)
	path := filepath.Join(a.dir, name)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit log file: %w", err)
	}
	if a.file != nil {
		a.file.Close()
	}
	a.file = file
	a.currentSize = info.Size()
	return nil
}

// Entry is one audit record: the invoked tool, the outcome status, the
// invocation detail (SQL text or redacted arguments), and the inspection
// results for SQL-carrying calls.
type Entry struct {
	Tool            string
	Detail          string
	StatementType   string
	MatchedKeywords []string
	Dangerous       bool
	DDL             bool
	Status          string
}

// Log writes one audit entry. When the current file reaches 10MB a new file
// is opened.
func (a *Auditor) Log(e Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339)
	stmtType := e.StatementType
	if stmtType == "" {
		stmtType = "none"
	}
	keywords := "none"
	if len(e.MatchedKeywords) > 0 {
		keywords = strings.Join(e.MatchedKeywords, ",")
	}

	header := fmt.Sprintf("AUDIT_TIME=%s\nAUDIT_TOOL=%s\nAUDIT_TYPE=%s\nAUDIT_KEYWORDS=%s\nAUDIT_DANGEROUS=%t\nAUDIT_DDL=%t\nAUDIT_STATUS=%s\nAUDIT_DETAIL=\n",
		timestamp, e.Tool, stmtType, keywords, e.Dangerous, e.DDL, e.Status)
	entry := header + e.Detail
	if !strings.HasSuffix(e.Detail, "\n") {
		entry += "\n"
	}
	entry += "######AUDIT_END######\n"
	size := int64(len(entry))

	if a.currentSize+size >= a.maxSize && a.currentSize > 0 {
		if err := a.rotateOpen(); err != nil {
			// On rotate failure still write to the current file to avoid
			// losing the entry
			_, _ = a.file.WriteString(entry)
			a.currentSize += size
			a.file.Sync()
			return
		}
	}

	a.file.WriteString(entry)
	a.currentSize += size
	a.file.Sync()
}

// Close closes the audit log file.
func (a *Auditor) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

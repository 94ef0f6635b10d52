package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readAuditFiles(t *testing.T, dir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	var sb strings.Builder
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			t.Fatalf("read %s failed: %v", m, err)
		}
		sb.Write(data)
	}
	return sb.String()
}

func TestAuditorLog(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAuditor(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("NewAuditor failed: %v", err)
	}
	defer a.Close()

	a.Log(Entry{
		Tool:          "query",
		Detail:        "SELECT * FROM emp",
		StatementType: "SELECT",
		Status:        "SUCCESS",
	})
	a.Log(Entry{
		Tool:            "execute",
		Detail:          "TRUNCATE TABLE emp",
		StatementType:   "TRUNCATE",
		MatchedKeywords: []string{"truncate"},
		Dangerous:       true,
		DDL:             true,
		Status:          "SUCCESS",
	})

	content := readAuditFiles(t, dir)

	if !strings.Contains(content, "AUDIT_TOOL=query") {
		t.Errorf("missing query entry, got:\n%s", content)
	}
	if !strings.Contains(content, "SELECT * FROM emp") {
		t.Errorf("missing query detail, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_TYPE=SELECT") {
		t.Errorf("missing statement type, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_TOOL=execute") {
		t.Errorf("missing execute entry, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_TYPE=TRUNCATE") {
		t.Errorf("missing TRUNCATE statement type, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_KEYWORDS=truncate") {
		t.Errorf("missing matched keywords, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_DANGEROUS=true") || !strings.Contains(content, "AUDIT_DDL=true") {
		t.Errorf("missing danger/DDL flags, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_KEYWORDS=none") {
		t.Errorf("expected 'none' keywords for clean SQL, got:\n%s", content)
	}
	if got := strings.Count(content, "######AUDIT_END######"); got != 2 {
		t.Errorf("expected 2 entry terminators, got %d", got)
	}
}

func TestAuditorLogWithoutSQL(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAuditor(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("NewAuditor failed: %v", err)
	}
	defer a.Close()

	a.Log(Entry{
		Tool:   "check_user_exists",
		Detail: "username=app_user",
		Status: "SUCCESS",
	})

	content := readAuditFiles(t, dir)
	if !strings.Contains(content, "AUDIT_TYPE=none") {
		t.Errorf("expected 'none' statement type for non-SQL call, got:\n%s", content)
	}
	if !strings.Contains(content, "AUDIT_DANGEROUS=false") {
		t.Errorf("expected false danger flag, got:\n%s", content)
	}
}

func TestAuditorReusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "audit.log")

	a, err := NewAuditor(logFile)
	if err != nil {
		t.Fatalf("NewAuditor failed: %v", err)
	}
	a.Log(Entry{Tool: "query", Detail: "SELECT 1 FROM dual", Status: "SUCCESS"})
	a.Close()

	// A second startup appends to the same file instead of creating another
	b, err := NewAuditor(logFile)
	if err != nil {
		t.Fatalf("second NewAuditor failed: %v", err)
	}
	b.Log(Entry{Tool: "query", Detail: "SELECT 2 FROM dual", Status: "SUCCESS"})
	b.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "audit_*.log"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 audit file, got %d: %v", len(matches), matches)
	}

	content := readAuditFiles(t, dir)
	if !strings.Contains(content, "SELECT 1 FROM dual") || !strings.Contains(content, "SELECT 2 FROM dual") {
		t.Errorf("expected both entries in the same file, got:\n%s", content)
	}
}

func TestAuditorRotateFailureKeepsCurrentFile(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAuditor(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("NewAuditor failed: %v", err)
	}
	defer a.Close()

	a.Log(Entry{Tool: "query", Detail: "SELECT 1 FROM dual", Status: "SUCCESS"})

	// Make the next rotation fail and force the size threshold
	a.dir = filepath.Join(dir, "missing")
	a.maxSize = 1

	a.Log(Entry{Tool: "query", Detail: "SELECT 2 FROM dual", Status: "SUCCESS"})

	content := readAuditFiles(t, dir)
	if !strings.Contains(content, "SELECT 2 FROM dual") {
		t.Errorf("entry lost when rotation failed, got:\n%s", content)
	}
}

func TestAuditorStatusRecorded(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAuditor(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("NewAuditor failed: %v", err)
	}
	defer a.Close()

	a.Log(Entry{
		Tool:   "create_user",
		Detail: "password=<redacted> username=app_user",
		Status: "ERROR: user APP_USER already exists",
	})

	content := readAuditFiles(t, dir)
	if !strings.Contains(content, "AUDIT_STATUS=ERROR: user APP_USER already exists") {
		t.Errorf("missing status line, got:\n%s", content)
	}
	if strings.Contains(content, "s3cret") {
		t.Errorf("password leaked into audit log:\n%s", content)
	}
}

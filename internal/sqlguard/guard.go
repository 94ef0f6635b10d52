// Package sqlguard provides lexical SQL inspection: statement typing,
// danger-keyword matching for the audit log, and the identifier allow-list
// applied before any name is interpolated into DDL.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// maxIdentifierLen is the classic Oracle identifier limit; also valid on 12.2+.
const maxIdentifierLen = 30

// ValidateIdentifier checks a caller-supplied identifier (user, table or
// tablespace name) against the allow-list: a leading letter followed by
// letters, digits and underscores, at most 30 bytes. Identifiers cannot be
// bound as statement parameters in Oracle DDL, so they are interpolated into
// statement text; this function is the single trust boundary for that.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier %q exceeds %d characters", name, maxIdentifierLen)
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) || r > unicode.MaxASCII {
				return fmt.Errorf("identifier %q must start with a letter", name)
			}
			continue
		}
		if r == '_' || (r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			continue
		}
		return fmt.Errorf("identifier %q contains invalid character %q", name, r)
	}
	return nil
}

// ValidatePrivilege checks a privilege string (e.g. "CREATE SESSION",
// "SELECT ANY TABLE"). Letters, digits, underscores and single spaces between
// words; nothing else, so the string is safe to interpolate into a GRANT.
func ValidatePrivilege(priv string) error {
	trimmed := strings.TrimSpace(priv)
	if trimmed == "" {
		return fmt.Errorf("privilege must not be empty")
	}
	words := strings.Fields(trimmed)
	if strings.Join(words, " ") != trimmed {
		return fmt.Errorf("privilege %q contains invalid whitespace", priv)
	}
	for _, w := range words {
		for _, r := range w {
			if r == '_' || (r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
				continue
			}
			return fmt.Errorf("privilege %q contains invalid character %q", priv, r)
		}
	}
	return nil
}

// ValidatePassword checks a password destined for CREATE USER ... IDENTIFIED
// BY "...". The password is embedded double-quoted, so double quotes and
// control characters are rejected.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	if len(password) > maxIdentifierLen {
		return fmt.Errorf("password exceeds %d characters", maxIdentifierLen)
	}
	for _, r := range password {
		if r == '"' || unicode.IsControl(r) {
			return fmt.Errorf("password contains invalid character")
		}
	}
	return nil
}

// Analysis is the result of danger-keyword inspection of a SQL text.
type Analysis struct {
	// MatchedKeywords contains the configured danger keywords found in the SQL.
	MatchedKeywords []string
	// IsDangerous indicates if the SQL matched any danger keyword.
	IsDangerous bool
	// IsDDL indicates if the SQL is a DDL statement.
	IsDDL bool
}

// Analyzer matches SQL against configured danger keywords. Matches are only
// recorded in the audit log; they never block execution.
type Analyzer struct {
	dangerKeywords []string
	ddlKeywords    []string
	matchMode      string // "whole_text" or "tokens"
}

// NewAnalyzer creates a new SQL analyzer with the given danger keywords and
// match mode. matchMode: "whole_text" = case-insensitive substring match on
// the full SQL (default, stricter); "tokens" = match on tokens after removing
// comments/string literals (fewer false positives).
func NewAnalyzer(dangerKeywords []string, matchMode string) *Analyzer {
	normalized := make([]string, len(dangerKeywords))
	for i, kw := range dangerKeywords {
		normalized[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	mode := strings.ToLower(strings.TrimSpace(matchMode))
	if mode != "whole_text" && mode != "tokens" {
		mode = "whole_text"
	}

	return &Analyzer{
		dangerKeywords: normalized,
		ddlKeywords: []string{
			"create",
			"drop",
			"alter",
			"truncate",
			"rename",
			"comment",
			"grant",
			"revoke",
		},
		matchMode: mode,
	}
}

// Analyze inspects the SQL for danger keywords and DDL.
func (a *Analyzer) Analyze(sql string) *Analysis {
	result := &Analysis{}

	noComments := removeComments(sql)
	noStrings := removeStringLiterals(noComments)
	tokens := tokenize(noStrings)

	result.IsDDL = a.isDDL(tokens)

	if a.matchMode == "whole_text" {
		result.MatchedKeywords = a.matchKeywordsWholeText(sql)
	} else {
		result.MatchedKeywords = a.matchKeywords(tokens)
	}
	result.IsDangerous = len(result.MatchedKeywords) > 0

	return result
}

// removeComments removes SQL comments (-- and /* */).
func removeComments(sql string) string {
	singleLinePattern := regexp.MustCompile(`--[^\r\n]*`)
	sql = singleLinePattern.ReplaceAllString(sql, " ")

	multiLinePattern := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	sql = multiLinePattern.ReplaceAllString(sql, " ")

	return sql
}

// removeStringLiterals removes string literals ('string') to prevent false positives.
// Example: SELECT 'drop table' FROM dual; should not match "drop table"
func removeStringLiterals(sql string) string {
	var result strings.Builder
	inString := false
	prevChar := rune(0)

	for _, char := range sql {
		if char == '\'' && prevChar != '\'' {
			inString = !inString
			result.WriteRune(' ')
		} else if inString {
			result.WriteRune(' ')
		} else {
			result.WriteRune(char)
		}
		prevChar = char
	}

	return result.String()
}

// tokenize splits the SQL into lowercase tokens.
func tokenize(sql string) []string {
	lower := strings.ToLower(sql)

	var tokens []string
	var currentToken strings.Builder

	for _, char := range lower {
		if unicode.IsLetter(char) || unicode.IsDigit(char) || char == '_' {
			currentToken.WriteRune(char)
		} else {
			if currentToken.Len() > 0 {
				tokens = append(tokens, currentToken.String())
				currentToken.Reset()
			}
		}
	}

	if currentToken.Len() > 0 {
		tokens = append(tokens, currentToken.String())
	}

	return tokens
}

// isDDL checks if the SQL is a DDL statement.
func (a *Analyzer) isDDL(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}

	firstToken := tokens[0]
	for _, ddlKw := range a.ddlKeywords {
		if firstToken == ddlKw {
			return true
		}
	}

	return false
}

// matchKeywordsWholeText finds all danger keywords as case-insensitive
// substrings in the full SQL. Any occurrence (in string literals, comments,
// object names, etc.) triggers a match.
func (a *Analyzer) matchKeywordsWholeText(sql string) []string {
	lower := strings.ToLower(sql)
	var matched []string
	for _, kw := range a.dangerKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// matchKeywords finds all danger keywords in the tokens.
func (a *Analyzer) matchKeywords(tokens []string) []string {
	var matched []string
	seen := make(map[string]bool)

	for _, kw := range a.dangerKeywords {
		if seen[kw] {
			continue
		}

		kwTokens := tokenize(kw)
		if len(kwTokens) == 0 {
			continue
		}

		if len(kwTokens) == 1 {
			// Single-word keyword - exact token match
			for _, token := range tokens {
				if token == kwTokens[0] {
					matched = append(matched, kw)
					seen[kw] = true
					break
				}
			}
		} else {
			// Multi-word keyword - consecutive token match
			if matchConsecutiveTokens(tokens, kwTokens) {
				matched = append(matched, kw)
				seen[kw] = true
			}
		}
	}

	return matched
}

// matchConsecutiveTokens checks if kwTokens appear consecutively in tokens.
func matchConsecutiveTokens(tokens, kwTokens []string) bool {
	if len(kwTokens) > len(tokens) {
		return false
	}

	for i := 0; i <= len(tokens)-len(kwTokens); i++ {
		match := true
		for j, kwToken := range kwTokens {
			if tokens[i+j] != kwToken {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

// StatementType returns the type of SQL statement (SELECT, INSERT, ...).
func StatementType(sql string) string {
	noComments := removeComments(sql)
	noStrings := removeStringLiterals(noComments)
	tokens := tokenize(noStrings)

	if len(tokens) == 0 {
		return "UNKNOWN"
	}

	switch tokens[0] {
	case "select", "with":
		return "SELECT"
	case "insert":
		return "INSERT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	case "create":
		return "CREATE"
	case "drop":
		return "DROP"
	case "alter":
		return "ALTER"
	case "truncate":
		return "TRUNCATE"
	case "grant":
		return "GRANT"
	case "revoke":
		return "REVOKE"
	case "rename":
		return "RENAME"
	case "comment":
		return "COMMENT"
	default:
		return strings.ToUpper(tokens[0])
	}
}

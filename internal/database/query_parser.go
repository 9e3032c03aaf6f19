package database

import (
	"bufio"
	"strings"
)

// parseNamedQueries extracts named queries from SQL content
// Queries are defined with -- name: QueryName format
func parseNamedQueries(content string) map[string]string {
	queries := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(content))

	var currentQuery strings.Builder
	var currentName string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "-- name:") {
			if currentName != "" && currentQuery.Len() > 0 {
				queries[currentName] = finishQuery(currentQuery.String())
			}

			currentName = strings.TrimSpace(strings.TrimPrefix(line, "-- name:"))
			currentQuery.Reset()
			continue
		}

		// comments and blank lines never reach the driver
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentName != "" {
			if currentQuery.Len() > 0 {
				currentQuery.WriteString("\n")
			}
			currentQuery.WriteString(line)
		}
	}

	if currentName != "" && currentQuery.Len() > 0 {
		queries[currentName] = finishQuery(currentQuery.String())
	}

	return queries
}

// finishQuery trims the query and its trailing semicolon
func finishQuery(query string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
}

// validateQueryName checks if a query name is valid
func validateQueryName(name string) bool {
	if name == "" {
		return false
	}

	// Query names should contain only alphanumeric characters and underscores
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}

	return true
}

// splitStatements breaks a migration script into single statements.
// Statements are separated by a semicolon at the end of a line; comment
// lines are dropped.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(trimmed)

		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSuffix(current.String(), ";"))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

package app

import (
	"regexp"
	"strconv"
	"strings"
)

const maxTracedQueryLength = 512

var (
	queryWhitespaceRegex = regexp.MustCompile(`\s+`)
	queryCommentRegex    = regexp.MustCompile(`--[^\n]*`)
	// Matches ", ($18, $19, ...)" tuples that follow the first VALUES row.
	extraValuesRowRegex = regexp.MustCompile(`\),\s*\((?:\$\d+(?:,\s*)?)+`)
)

// formatDBQueryForTrace turns a statement into a compact span attribute:
// comments dropped, whitespace collapsed, multi-row VALUES lists reduced to
// the first row plus a count.
func formatDBQueryForTrace(query string) string {
	query = strings.TrimSpace(queryCommentRegex.ReplaceAllString(query, ""))
	if query == "" {
		return query
	}

	normalized := queryWhitespaceRegex.ReplaceAllString(query, " ")
	normalized = collapseValuesRows(normalized)
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}
	return normalized[:maxTracedQueryLength] + "..."
}

func collapseValuesRows(query string) string {
	extra := extraValuesRowRegex.FindAllStringIndex(query, -1)
	if len(extra) == 0 {
		return query
	}
	first, last := extra[0][0], extra[len(extra)-1][1]
	return query[:first] + ") /* +" + strconv.Itoa(len(extra)) + " rows */" + strings.TrimPrefix(query[last:], ")")
}

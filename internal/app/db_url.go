package app

import (
	"net/url"
	"strings"
)

// dbTarget is DB_URL after application tagging, plus the parts the
// instrumentation and startup log want.
type dbTarget struct {
	DSN  string
	Name string
	Host string
}

// parseDBTarget accepts both postgres:// URLs and lib/pq keyword DSNs.
// application_name is added so connections can be told apart in
// pg_stat_activity; an explicit value wins.
func parseDBTarget(raw, applicationName string) dbTarget {
	raw = strings.TrimSpace(raw)
	applicationName = strings.TrimSpace(applicationName)

	if parsed, err := url.Parse(raw); err == nil && parsed.Scheme != "" {
		query := parsed.Query()
		if applicationName != "" && query.Get("application_name") == "" {
			query.Set("application_name", applicationName)
			parsed.RawQuery = query.Encode()
		}
		return dbTarget{
			DSN:  parsed.String(),
			Name: strings.TrimPrefix(parsed.Path, "/"),
			Host: parsed.Hostname(),
		}
	}

	params := keywordParams(raw)
	target := dbTarget{DSN: raw, Name: params["dbname"], Host: params["host"]}
	if applicationName != "" && raw != "" {
		if _, ok := params["application_name"]; !ok {
			target.DSN = raw + " application_name=" + quoteKeywordValue(applicationName)
		}
	}
	return target
}

func keywordParams(raw string) map[string]string {
	params := make(map[string]string)
	for _, token := range strings.Fields(raw) {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		params[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return params
}

func quoteKeywordValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

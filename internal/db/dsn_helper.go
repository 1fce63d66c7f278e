package db

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultStatementTimeoutMs = 60000
	applicationName           = "tour-crawler"
)

// connParam is a runtime parameter added to a DSN unless the DSN already sets it
type connParam struct {
	key   string
	value string
}

// connParams returns the session parameters every crawler connection carries
func connParams(timeoutMs int) []connParam {
	if timeoutMs <= 0 {
		timeoutMs = defaultStatementTimeoutMs
	}
	return []connParam{
		{key: "application_name", value: applicationName},
		{key: "statement_timeout", value: strconv.Itoa(timeoutMs)},
	}
}

// augmentDSN adds params to a DSN without overriding values it already has.
// Both URL (postgres://...) and key=value DSNs are supported.
func augmentDSN(dsn string, params []connParam) string {
	if dsn == "" {
		return dsn
	}

	if strings.HasPrefix(dsn, "postgresql://") || strings.HasPrefix(dsn, "postgres://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		for _, p := range params {
			if !q.Has(p.key) {
				q.Set(p.key, p.value)
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	present := make(map[string]bool)
	for _, field := range strings.Fields(dsn) {
		if key, _, ok := strings.Cut(field, "="); ok {
			present[key] = true
		}
	}

	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range params {
		if present[p.key] {
			continue
		}
		b.WriteString(" ")
		b.WriteString(p.key)
		b.WriteString("=")
		b.WriteString(p.value)
	}
	return b.String()
}

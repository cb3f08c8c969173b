package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavor a store accepts.
type Dialect string

const (
	// DialectWarehouse is the flavor the translator is instructed to write:
	// ANSI SELECT with CURRENT_DATE, INTERVAL arithmetic, DATE_TRUNC and LIMIT.
	DialectWarehouse Dialect = "warehouse"
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "sqlserver"
	DialectSQLite    Dialect = "sqlite"
	DialectDuckDB    Dialect = "duckdb"
)

// RewriteRule maps one warehouse construct onto the target dialects it names.
type RewriteRule struct {
	Name    string
	Targets []Dialect
	Pattern *regexp.Regexp
	// Replace receives the submatches of each occurrence.
	Replace func(target Dialect, m []string) string
}

func (r RewriteRule) appliesTo(target Dialect) bool {
	for _, t := range r.Targets {
		if t == target {
			return true
		}
	}
	return false
}

var allTargets = []Dialect{DialectPostgres, DialectSQLServer, DialectSQLite, DialectDuckDB}

// RewriteRules is the ordered rule table used by Rewrite. Order matters:
// DATEADD is normalized to interval arithmetic before intervals are mapped,
// and a trailing LIMIT is moved to OFFSET/FETCH or TOP last.
var RewriteRules = []RewriteRule{
	{
		Name:    "table_name",
		Targets: allTargets,
		Pattern: regexp.MustCompile(`(?i)(?:"SWINE_ALERT"|\bSWINE_ALERT\b)`),
		Replace: func(Dialect, []string) string { return "swine_alert" },
	},
	{
		Name:    "quoted_upper_identifier",
		Targets: allTargets,
		Pattern: regexp.MustCompile(`"([A-Z][A-Z0-9_]*)"`),
		Replace: func(_ Dialect, m []string) string { return strings.ToLower(m[1]) },
	},
	{
		Name:    "nvl",
		Targets: allTargets,
		Pattern: regexp.MustCompile(`(?i)\b(?:NVL|IFNULL)\s*\(`),
		Replace: func(Dialect, []string) string { return "COALESCE(" },
	},
	{
		Name:    "postgres_date_cast",
		Targets: []Dialect{DialectSQLite, DialectSQLServer},
		Pattern: regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_.]*)::date\b`),
		Replace: func(target Dialect, m []string) string {
			if target == DialectSQLite {
				return "date(" + m[1] + ")"
			}
			return "CAST(" + m[1] + " AS DATE)"
		},
	},
	{
		Name:    "date_trunc",
		Targets: []Dialect{DialectSQLite, DialectSQLServer},
		Pattern: regexp.MustCompile(`(?i)\bDATE_TRUNC\s*\(\s*'(day|week|month|year)'\s*,\s*([^()]+?)\s*\)`),
		Replace: rewriteDateTrunc,
	},
	{
		Name:    "date_function",
		Targets: []Dialect{DialectPostgres, DialectDuckDB, DialectSQLServer, DialectSQLite},
		Pattern: regexp.MustCompile(`(?i)\bDATE\s*\(([^()]+)\)`),
		Replace: func(target Dialect, m []string) string {
			if target == DialectSQLite {
				return "date(" + strings.TrimSpace(m[1]) + ")"
			}
			return "CAST(" + strings.TrimSpace(m[1]) + " AS DATE)"
		},
	},
	{
		Name:    "dateadd_to_interval",
		Targets: []Dialect{DialectPostgres, DialectDuckDB, DialectSQLite},
		Pattern: regexp.MustCompile(`(?i)\bDATEADD\s*\(\s*'?(day|days|week|weeks|month|months|year|years)'?\s*,\s*-\s*(\d+)\s*,\s*CURRENT_DATE(?:\s*\(\s*\))?\s*\)`),
		Replace: func(_ Dialect, m []string) string {
			return fmt.Sprintf("CURRENT_DATE - INTERVAL '%s %s'", m[2], pluralUnit(m[1]))
		},
	},
	{
		Name:    "interval_arithmetic",
		Targets: []Dialect{DialectSQLite, DialectSQLServer},
		Pattern: regexp.MustCompile(`(?i)\bCURRENT_DATE\s*-\s*INTERVAL\s*'\s*(\d+)\s*(day|days|week|weeks|month|months|year|years)\s*'`),
		Replace: rewriteInterval,
	},
	{
		Name:    "current_date",
		Targets: []Dialect{DialectSQLServer},
		Pattern: regexp.MustCompile(`(?i)\bCURRENT_DATE\b(?:\s*\(\s*\))?`),
		Replace: func(Dialect, []string) string { return "CAST(GETDATE() AS DATE)" },
	},
	{
		Name:    "ilike",
		Targets: []Dialect{DialectSQLite, DialectSQLServer},
		Pattern: regexp.MustCompile(`(?i)\bILIKE\b`),
		Replace: func(Dialect, []string) string { return "LIKE" },
	},
	{
		Name:    "limit_offset_to_fetch",
		Targets: []Dialect{DialectSQLServer},
		Pattern: regexp.MustCompile(`(?is)^(\s*SELECT\b.*?)\s+LIMIT\s+(\d+)\s+OFFSET\s+(\d+)\s*(;?)\s*$`),
		Replace: func(_ Dialect, m []string) string {
			body := strings.TrimSpace(m[1])
			// OFFSET ... FETCH is only valid after an ORDER BY
			if !hasOuterOrderBy(body) {
				body += " ORDER BY (SELECT NULL)"
			}
			return body + " OFFSET " + m[3] + " ROWS FETCH NEXT " + m[2] + " ROWS ONLY" + m[4]
		},
	},
	{
		Name:    "limit_to_top",
		Targets: []Dialect{DialectSQLServer},
		Pattern: regexp.MustCompile(`(?is)^\s*SELECT\s+(DISTINCT\s+)?(.*?)\s+LIMIT\s+(\d+)\s*(;?)\s*$`),
		Replace: func(_ Dialect, m []string) string {
			return "SELECT " + m[1] + "TOP " + m[3] + " " + m[2] + m[4]
		},
	},
}

// Rewrite maps a warehouse-dialect statement onto target using RewriteRules.
// It returns the rewritten statement and the names of the rules that fired.
// The rewrite is heuristic: constructs outside the rule table pass through,
// and a match starting inside a string literal is left alone.
func Rewrite(statement string, target Dialect) (string, []string) {
	if target == DialectWarehouse || target == "" {
		return statement, nil
	}

	var applied []string
	out := statement
	for _, rule := range RewriteRules {
		if !rule.appliesTo(target) {
			continue
		}
		rewritten := replaceAllSubmatch(rule.Pattern, out, func(m []string) string {
			return rule.Replace(target, m)
		})
		if rewritten != out {
			applied = append(applied, rule.Name)
			out = rewritten
		}
	}
	return out, applied
}

func replaceAllSubmatch(re *regexp.Regexp, s string, fn func([]string) string) string {
	idx := re.FindAllStringSubmatchIndex(s, -1)
	if idx == nil {
		return s
	}

	literals := literalSpans(s)
	var b strings.Builder
	last := 0
	for _, loc := range idx {
		if insideSpan(literals, loc[0]) {
			continue
		}
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// literalSpans returns the [start, end) offsets of single-quoted string
// literals in s. Quoted identifiers are skipped so a quote inside one does
// not open a literal.
func literalSpans(s string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if end := strings.IndexByte(s[i+1:], '"'); end >= 0 {
				i += end + 1
			}
		case '\'':
			start := i
			i++
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						i += 2
						continue
					}
					break
				}
				i++
			}
			spans = append(spans, [2]int{start, i + 1})
		}
	}
	return spans
}

func insideSpan(spans [][2]int, pos int) bool {
	for _, sp := range spans {
		if pos >= sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}

var orderByPattern = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)

// hasOuterOrderBy reports whether the last ORDER BY in body belongs to the
// outer query rather than a subquery closed after it.
func hasOuterOrderBy(body string) bool {
	locs := orderByPattern.FindAllStringIndex(body, -1)
	if locs == nil {
		return false
	}
	depth := 0
	for _, c := range body[locs[len(locs)-1][1]:] {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return true
}

func pluralUnit(unit string) string {
	unit = strings.ToLower(unit)
	if !strings.HasSuffix(unit, "s") {
		unit += "s"
	}
	return unit
}

func rewriteInterval(target Dialect, m []string) string {
	n, _ := strconv.Atoi(m[1])
	unit := pluralUnit(m[2])

	if target == DialectSQLite {
		// SQLite date modifiers have no weeks
		if unit == "weeks" {
			n, unit = n*7, "days"
		}
		return fmt.Sprintf("date('now', '-%d %s')", n, unit)
	}

	part := strings.TrimSuffix(unit, "s")
	return fmt.Sprintf("DATEADD(%s, -%d, CAST(GETDATE() AS DATE))", part, n)
}

func rewriteDateTrunc(target Dialect, m []string) string {
	unit := strings.ToLower(m[1])
	expr := strings.TrimSpace(m[2])

	if target == DialectSQLite {
		switch unit {
		case "day":
			return "date(" + expr + ")"
		case "week":
			return "date(" + expr + ", '-6 days', 'weekday 1')"
		case "month":
			return "strftime('%Y-%m-01', " + expr + ")"
		default:
			return "strftime('%Y-01-01', " + expr + ")"
		}
	}

	switch unit {
	case "day":
		return "CAST(" + expr + " AS DATE)"
	case "week":
		// Monday-based weeks whatever the server's DATEFIRST setting
		return "DATEADD(day, -((DATEPART(weekday, " + expr + ") + @@DATEFIRST - 2) % 7), CAST(" + expr + " AS DATE))"
	case "month":
		return "DATEFROMPARTS(YEAR(" + expr + "), MONTH(" + expr + "), 1)"
	default:
		return "DATEFROMPARTS(YEAR(" + expr + "), 1, 1)"
	}
}

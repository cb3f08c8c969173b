package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LimitPolicy bounds the rows a generated statement may return.
type LimitPolicy struct {
	Default int
	Ceiling int
}

var (
	trailingLimitPattern = regexp.MustCompile(`(?is)\bLIMIT\s+(\d+)(\s+OFFSET\s+\d+)?\s*$`)
	trailingLimitAll     = regexp.MustCompile(`(?is)\bLIMIT\s+ALL\s*$`)
	leadingTopPattern    = regexp.MustCompile(`(?is)^SELECT\s+(DISTINCT\s+)?TOP\s*\(?\s*(\d+)\s*\)?\s+`)
	fetchFirstPattern    = regexp.MustCompile(`(?is)\bFETCH\s+(?:FIRST|NEXT)\s+(\d+)\s+ROWS?\s+ONLY\s*$`)
	boundedPattern       = regexp.MustCompile(`(?is)^SELECT\b.*LIMIT\s+\d+`)
)

// EnforceLimit gives the statement a trailing LIMIT: the policy default when
// none is present, clamped to the ceiling otherwise. TOP n and FETCH FIRST n
// are folded into LIMIT so every statement shares one bounded shape.
// Comments are dropped first: a LIMIT inside a comment bounds nothing.
func EnforceLimit(statement string, policy LimitPolicy) (string, int, error) {
	res := ValidateAndNormalize(StripComments(statement))
	if res.Error != nil {
		return "", 0, res.Error
	}
	body := res.NormalizedSQL

	requested := 0
	if m := leadingTopPattern.FindStringSubmatch(body); m != nil {
		requested, _ = strconv.Atoi(m[2])
		body = "SELECT " + m[1] + body[len(m[0]):]
	}
	if m := fetchFirstPattern.FindStringSubmatchIndex(body); m != nil {
		requested, _ = strconv.Atoi(body[m[2]:m[3]])
		body = strings.TrimSpace(body[:m[0]])
	}
	body = strings.TrimSpace(trailingLimitAll.ReplaceAllString(body, ""))

	if m := trailingLimitPattern.FindStringSubmatchIndex(body); m != nil {
		n, _ := strconv.Atoi(body[m[2]:m[3]])
		offset := ""
		if m[4] >= 0 {
			offset = body[m[4]:m[5]]
		}
		n = clampLimit(n, policy)
		body = body[:m[0]] + "LIMIT " + strconv.Itoa(n) + offset
		return body + ";", n, nil
	}

	n := policy.Default
	if requested > 0 {
		n = clampLimit(requested, policy)
	}
	if n <= 0 {
		return "", 0, fmt.Errorf("limit policy has no default")
	}
	return body + "\nLIMIT " + strconv.Itoa(n) + ";", n, nil
}

func clampLimit(n int, policy LimitPolicy) int {
	if policy.Ceiling > 0 && n > policy.Ceiling {
		return policy.Ceiling
	}
	return n
}

// IsBounded reports whether statement has the canonical bounded shape:
// starts with SELECT and carries a numeric LIMIT.
func IsBounded(statement string) bool {
	return boundedPattern.MatchString(strings.TrimSpace(statement))
}

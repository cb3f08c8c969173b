package mssql

import (
	"errors"
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
)

// SQL Server error numbers that mean the server or database is not usable,
// as opposed to a bad statement.
var connectivityErrorNumbers = map[int32]bool{
	18456: true, // login failed
	18452: true, // login from untrusted domain
	4060:  true, // cannot open database requested by the login
	40613: true, // database not currently available (Azure)
	40615: true, // client IP not allowed by server firewall (Azure)
	40532: true, // cannot open server requested by the login (Azure)
	10928: true, // resource limit reached (Azure)
	-2:    true, // timeout expired
}

// firewallErrorNumbers are refusals caused by network policy.
var firewallErrorNumbers = map[int32]bool{
	40615: true,
	40532: true,
}

// classify maps go-mssqldb failures onto the store taxonomy.
func classify(err error) error {
	var msErr mssqldb.Error
	if errors.As(err, &msErr) {
		if connectivityErrorNumbers[msErr.Number] {
			storeErr := datasource.NewConnectivityError(Type, err)
			storeErr.Policy = storeErr.Policy || firewallErrorNumbers[msErr.Number]
			return storeErr
		}
		return datasource.NewSQLError(Type, err)
	}
	return datasource.ClassifyError(Type, err)
}

// convertValue turns driver values into JSON-friendly forms. DECIMAL, NUMERIC
// and MONEY arrive as their textual digits.
func convertValue(databaseType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return datasource.NormalizeValue(v)
	}

	switch strings.ToUpper(databaseType) {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
		return string(b)
	case "UNIQUEIDENTIFIER":
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
		return string(b)
	default:
		return string(b)
	}
}

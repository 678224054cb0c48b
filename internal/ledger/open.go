package ledger

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	httpSchemePrefixConstant   = "http://"
	httpsSchemePrefixConstant  = "https://"
	sqliteSchemePrefixConstant = "sqlite://"
)

// Open returns the ledger addressed by location: an HTTP service for http(s) urls, otherwise a SQLite
// database at a sqlite:// url or a bare path.
func Open(executionContext context.Context, location string, project string, logger *zap.Logger) (Ledger, error) {
	trimmedLocation := strings.TrimSpace(location)
	lowerLocation := strings.ToLower(trimmedLocation)
	if strings.HasPrefix(lowerLocation, httpSchemePrefixConstant) || strings.HasPrefix(lowerLocation, httpsSchemePrefixConstant) {
		httpLedger, buildError := NewHTTPLedger(HTTPLedgerOptions{BaseURL: trimmedLocation, Project: project, Logger: logger})
		if buildError != nil {
			return nil, buildError
		}
		return httpLedger, nil
	}

	path := trimmedLocation
	if strings.HasPrefix(lowerLocation, sqliteSchemePrefixConstant) {
		path = trimmedLocation[len(sqliteSchemePrefixConstant):]
	}
	sqliteLedger, openError := NewSQLiteLedger(SQLiteLedgerOptions{Path: path, Project: project, Logger: logger})
	if openError != nil {
		return nil, openError
	}
	if pingError := sqliteLedger.database.PingContext(executionContext); pingError != nil {
		sqliteLedger.Close()
		return nil, pingError
	}
	return sqliteLedger, nil
}

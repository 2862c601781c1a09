package postgres

// Test-only exports for the external postgres_test package.
const (
	PQLockNotAvailable = pqLockNotAvailable
	PQUniqueViolation  = pqUniqueViolation
)

var SortColumn = sortColumn

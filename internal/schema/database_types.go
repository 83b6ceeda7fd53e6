package schema

import "strings"

// DatabaseType represents supported database types
type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
)

// String returns the string representation of the database type
func (dt DatabaseType) String() string {
	return string(dt)
}

// IsValid checks if the database type is supported
func (dt DatabaseType) IsValid() bool {
	switch dt {
	case PostgreSQL, SQLite:
		return true
	default:
		return false
	}
}

// ParseDatabaseType parses a string into a DatabaseType
func ParseDatabaseType(s string) DatabaseType {
	switch strings.ToLower(s) {
	case "postgresql", "postgres", "pgsql", "pgx":
		return PostgreSQL
	case "sqlite", "sqlite3":
		return SQLite
	default:
		return ""
	}
}

// DriverName returns the database/sql driver registered for the type.
func (dt DatabaseType) DriverName() string {
	switch dt {
	case PostgreSQL:
		return "pgx"
	default:
		return "sqlite3"
	}
}

// GetBooleanColumnType returns the appropriate boolean column type for each database
func (dt DatabaseType) GetBooleanColumnType() string {
	return "BOOLEAN"
}

// GetIntegerColumnType returns the appropriate integer column type for each database
func (dt DatabaseType) GetIntegerColumnType() string {
	switch dt {
	case PostgreSQL:
		return "BIGINT"
	default:
		return "INTEGER"
	}
}

// GetTimestampColumnType returns the appropriate timestamp column type for each database
func (dt DatabaseType) GetTimestampColumnType() string {
	switch dt {
	case PostgreSQL:
		return "TIMESTAMP WITH TIME ZONE"
	default:
		return "DATETIME"
	}
}

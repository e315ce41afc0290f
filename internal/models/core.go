package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// JSON holds a raw JSON document in a text column.
type JSON []byte

// Scan implements sql.Scanner. SQLite hands text back as string, Postgres as []byte.
func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into JSON", value)
	}

	if !json.Valid(raw) {
		return fmt.Errorf("models: invalid JSON document")
	}
	*j = append((*j)[0:0], raw...)
	return nil
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// PerformWrite executes a write transaction with retry logic for SQLite busy errors.
func PerformWrite(logger *slog.Logger, dbConn *gorm.DB, f func(tx *gorm.DB) error) error {
	return sqlite.PerformWrite(logger, dbConn, f)
}

// Write runs f in a transaction on either backend. SQLite writes go
// through PerformWrite; Postgres uses a plain transaction.
func Write(logger *slog.Logger, dbConn *gorm.DB, f func(tx *gorm.DB) error) error {
	if dbConn.Dialector.Name() == "postgres" {
		return dbConn.Transaction(f)
	}
	return PerformWrite(logger, dbConn, f)
}

// Records returns the models that hold analytics data, without the
// ingestion queue.
func Records() []any {
	return []any{
		&Session{},
		&PageView{},
		&FormSubmission{},
		&Lead{},
	}
}

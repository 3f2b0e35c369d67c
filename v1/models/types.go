package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JSONMap is a json-backed map column used for ledger snapshots and
// task selections
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface for JSONMap
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType gorm common data type
func (JSONMap) GormDataType() string {
	return "jsonb"
}

// GormValue implements the GormValuerInterface
func (m JSONMap) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	data, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal JSONMap to JSON: %v", err))
	}

	if db != nil && db.Dialector.Name() == "sqlite" {
		return clause.Expr{SQL: "?", Vars: []interface{}{string(data)}}
	}
	return clause.Expr{SQL: "?::jsonb", Vars: []interface{}{string(data)}}
}

// StringList is a json-backed string array column used for categories and
// attachment URL lists
type StringList []string

// Scan implements the sql.Scanner interface for StringList
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}

	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface for StringList
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType gorm common data type
func (StringList) GormDataType() string {
	return "jsonb"
}

// GormValue implements the GormValuerInterface
func (l StringList) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	data, err := json.Marshal(l)
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal StringList to JSON: %v", err))
	}

	if db != nil && db.Dialector.Name() == "sqlite" {
		return clause.Expr{SQL: "?", Vars: []interface{}{string(data)}}
	}
	return clause.Expr{SQL: "?::jsonb", Vars: []interface{}{string(data)}}
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSONB column into dst. NULL leaves dst untouched.
func scanJSON(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func jsonValue(v interface{}) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

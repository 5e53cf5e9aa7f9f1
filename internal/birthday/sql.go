package birthday

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.UnmarshalText(v)
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidDate, src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDate, d.String())
	}
	return d.String(), nil
}

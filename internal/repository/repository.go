package repository

import (
	"database/sql"
	"errors"

	"ardf-results/internal/timing"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanTimeValue(s sql.NullString) (*timing.TimeValue, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	tv, err := timing.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &tv, nil
}

func timeValueArg(t *timing.TimeValue) any {
	if t == nil {
		return nil
	}
	return t.String()
}

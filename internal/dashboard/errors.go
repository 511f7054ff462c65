package dashboard

import (
	"errors"
)

var (
	ErrNoColumns      = errors.New("no indicator columns selected")
	ErrNoData         = errors.New("no data returned")
	ErrNoOverlap      = errors.New("no overlapping data")
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// warnings 是各页面原有的提示文案。
var warnings = map[error]string{
	ErrNoColumns: "Please select at least one indicator column.",
	ErrNoData:    "No data returned. Check your date range or table selection.",
	ErrNoOverlap: "No overlapping data. Check your date range or table selection.",
}

// Warning 返回 err 对应的用户提示；没有时返回 err.Error()。
func Warning(err error) string {
	for sentinel, msg := range warnings {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

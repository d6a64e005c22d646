package schedule

import "errors"

var (
	ErrInvalidID      = errors.New("schedule: invalid master id")
	ErrInvalidDate    = errors.New("schedule: invalid date")
	ErrInvalidRange   = errors.New("schedule: invalid date range")
	ErrRangeRequired  = errors.New("schedule: start and end dates are required")
	ErrDuplicateDate  = errors.New("schedule: duplicate date in request")
	ErrForbidden      = errors.New("schedule: forbidden")
	ErrMasterNotFound = errors.New("schedule: master not found")
)

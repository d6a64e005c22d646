package master

import "errors"

var (
	ErrInvalidID      = errors.New("master: invalid id")
	ErrInvalidName    = errors.New("master: invalid name")
	ErrInvalidLogin   = errors.New("master: invalid login")
	ErrInvalidCities  = errors.New("master: at least one city is required")
	ErrInvalidStatus  = errors.New("master: invalid status")
	ErrInvalidPage    = errors.New("master: invalid page")
	ErrInvalidRange   = errors.New("master: invalid date range")
	ErrForbidden      = errors.New("master: forbidden")
	ErrMasterNotFound = errors.New("master: not found")
	ErrLoginTaken     = errors.New("master: login already exists")
	ErrHasOrders      = errors.New("master: master has orders")
)

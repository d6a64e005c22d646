package handover

import "errors"

var (
	ErrInvalidID       = errors.New("handover: invalid id")
	ErrMissingActor    = errors.New("handover: actor is required")
	ErrForbidden       = errors.New("handover: forbidden")
	ErrInvalidStatus   = errors.New("handover: invalid cash status")
	ErrInvalidDecision = errors.New("handover: invalid decision")
	ErrOrderNotFound   = errors.New("handover: order not found")
	ErrMasterNotFound  = errors.New("handover: master not found")
	ErrAlreadyDecided  = errors.New("handover: cash handover already decided")
)

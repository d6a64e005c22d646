package handler

import (
	"errors"
	"net/http"

	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/master"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
	pgdb "github.com/ogurasousui/masters-service/internal/platform/db/postgres"
)

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pgdb.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, errMissingIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, errMalformedBody),
		errors.Is(err, errInvalidQuery),
		errors.Is(err, handover.ErrInvalidID),
		errors.Is(err, handover.ErrMissingActor),
		errors.Is(err, handover.ErrInvalidStatus),
		errors.Is(err, handover.ErrInvalidDecision),
		errors.Is(err, master.ErrInvalidID),
		errors.Is(err, master.ErrInvalidName),
		errors.Is(err, master.ErrInvalidLogin),
		errors.Is(err, master.ErrInvalidCities),
		errors.Is(err, master.ErrInvalidStatus),
		errors.Is(err, master.ErrInvalidPage),
		errors.Is(err, master.ErrInvalidRange),
		errors.Is(err, schedule.ErrInvalidID),
		errors.Is(err, schedule.ErrInvalidDate),
		errors.Is(err, schedule.ErrInvalidRange),
		errors.Is(err, schedule.ErrRangeRequired),
		errors.Is(err, schedule.ErrDuplicateDate):
		return http.StatusBadRequest
	case errors.Is(err, handover.ErrOrderNotFound),
		errors.Is(err, handover.ErrMasterNotFound),
		errors.Is(err, master.ErrMasterNotFound),
		errors.Is(err, schedule.ErrMasterNotFound):
		return http.StatusNotFound
	case errors.Is(err, handover.ErrAlreadyDecided),
		errors.Is(err, master.ErrLoginTaken),
		errors.Is(err, master.ErrHasOrders):
		return http.StatusConflict
	case errors.Is(err, handover.ErrForbidden),
		errors.Is(err, master.ErrForbidden),
		errors.Is(err, schedule.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

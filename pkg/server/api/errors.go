package api

import (
	"errors"
	"net/http"

	"github.com/lockbook/lockbook-core/pkg/lberrors"
	"github.com/lockbook/lockbook-core/pkg/server/store"
)

// wireError is the body pkg/syncclient's serverError decodes: the
// inverse side of that package's mapServerError. Status is never part of
// the JSON body; it only decides the HTTP status code written.
type wireError struct {
	code    string
	message string
	fileIDs []string
	status  int
}

func (e *wireError) Error() string { return e.code + ": " + e.message }

type wireErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	FileIDs []string `json:"file_ids,omitempty"`
}

func (e *wireError) body() wireErrorBody {
	return wireErrorBody{Code: e.code, Message: e.message, FileIDs: e.fileIDs}
}

func (e *wireError) httpStatus() int {
	if e.status != 0 {
		return e.status
	}
	switch e.code {
	case "NOT_FOUND", "USER_NOT_FOUND":
		return http.StatusNotFound
	case "NOT_PERMISSIONED":
		return http.StatusForbidden
	case "ACCOUNT_EXISTS":
		return http.StatusConflict
	case "BAD_REQUEST":
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// mapError translates a store/business error into the wire error code
// pkg/syncclient.mapServerError knows how to turn back into an *LbError
// on the client. Errors that are already a *wireError pass through
// unchanged.
func mapError(err error) *wireError {
	var we *wireError
	if errors.As(err, &we) {
		return we
	}

	switch {
	case errors.Is(err, store.ErrAccountExists):
		return &wireError{code: "ACCOUNT_EXISTS", message: err.Error()}
	case errors.Is(err, store.ErrAccountNotFound):
		return &wireError{code: "USER_NOT_FOUND", message: err.Error()}
	case errors.Is(err, store.ErrOldVersionRequired):
		return &wireError{code: "OLD_VERSION_REQUIRED", message: err.Error()}
	case errors.Is(err, store.ErrDeletedFileUpdated):
		return &wireError{code: "DELETED_FILE_UPDATED", message: err.Error()}
	case errors.Is(err, errEditConflict):
		return &wireError{code: "EDIT_CONFLICT", message: err.Error()}
	case errors.Is(err, errNotPermissioned):
		return &wireError{code: "NOT_PERMISSIONED", message: err.Error()}
	case errors.Is(err, errOverDataCap):
		return &wireError{code: "USAGE_IS_OVER_DATA_CAP", message: err.Error()}
	case errors.Is(err, errFileNotFound):
		return &wireError{code: "NOT_FOUND", message: err.Error()}
	}

	var lb *lberrors.LbError
	if errors.As(err, &lb) {
		switch {
		case lb.Code == lberrors.CodeCycle:
			return &wireError{code: "VALIDATION_CYCLE", message: lb.Message, fileIDs: causeIDs(lb)}
		case lb.Kind == lberrors.KindValidation:
			return &wireError{code: "VALIDATION_PATH_CONFLICT", message: lb.Message, fileIDs: causeIDs(lb)}
		}
	}

	return &wireError{code: "INTERNAL", message: "internal server error", status: http.StatusInternalServerError}
}

func causeIDs(lb *lberrors.LbError) []string {
	if lb.Cause == nil {
		return nil
	}
	return lb.Cause.FileIDs
}

package server

import (
	"errors"
	"net/http"

	membership "firmdesk/backend/internal/membership/service"
	reassignment "firmdesk/backend/internal/reassignment/service"
	userdomain "firmdesk/backend/internal/user/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// mapError translates service sentinel errors to an HTTP status and a stable
// machine-readable code. Unknown errors become 500 with no internal detail.
func mapError(err error) (int, errorBody) {
	switch {
	case errors.Is(err, membership.ErrSeatsExhausted):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "seats_exhausted"}
	case errors.Is(err, membership.ErrAlreadyMember):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "already_member"}
	case errors.Is(err, membership.ErrForeignMember):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "foreign_member"}
	case errors.Is(err, membership.ErrAlreadyAffiliated):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "already_affiliated"}
	case errors.Is(err, membership.ErrCannotRemoveSelf):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "cannot_remove_self"}
	case errors.Is(err, membership.ErrSeatCapExceeded):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "seat_cap_exceeded"}
	case errors.Is(err, membership.ErrInvitationNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "invitation_not_found"}
	case errors.Is(err, membership.ErrMemberNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "member_not_found"}
	case errors.Is(err, membership.ErrEmailMismatch):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "email_mismatch"}
	case errors.Is(err, membership.ErrNotAuthorized),
		errors.Is(err, reassignment.ErrNotAuthorized):
		return http.StatusForbidden, errorBody{Error: err.Error(), Code: "not_authorized"}
	case errors.Is(err, membership.ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired, errorBody{Error: err.Error(), Code: "payment_verification_failed"}
	case errors.Is(err, membership.ErrTransientConflict),
		errors.Is(err, reassignment.ErrTransientConflict):
		return http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "transient_conflict"}
	case errors.Is(err, reassignment.ErrTargetNotActiveMember):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "target_not_active_member"}
	case errors.Is(err, reassignment.ErrNoCases),
		errors.Is(err, userdomain.ErrInvalidEmail):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
	}
}

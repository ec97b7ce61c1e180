package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	membership "firmdesk/backend/internal/membership/service"
	reassignment "firmdesk/backend/internal/reassignment/service"
	"firmdesk/backend/pkg/logger"
)

// MembershipHandler exposes the membership lifecycle over HTTP.
type MembershipHandler struct {
	svc *membership.MembershipService
	log *zap.Logger
}

func NewMembershipHandler(svc *membership.MembershipService, log *zap.Logger) *MembershipHandler {
	return &MembershipHandler{svc: svc, log: log}
}

// respondError writes the mapped error response. Transient conflicts carry a
// Retry-After hint so well-behaved clients back off before retrying.
func respondError(c echo.Context, base *zap.Logger, err error) error {
	status, body := mapError(err)
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		logger.FromContext(c, base).Error("request failed", zap.Error(err))
	}
	return c.JSON(status, body)
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (h *MembershipHandler) InviteMember(c echo.Context) error {
	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "invalid_request"})
	}
	res, err := h.svc.InviteMember(c.Request().Context(), ActorID(c), req.Email)
	recordOperation("invite_member", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id":         res.UserID,
		"email":           res.Email,
		"account_created": res.AccountCreated,
	})
}

func (h *MembershipHandler) IssueInvitation(c echo.Context) error {
	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "invalid_request"})
	}
	inv, err := h.svc.IssueInvitation(c.Request().Context(), ActorID(c), req.Email)
	recordOperation("issue_invitation", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":      inv.Token,
		"email":      inv.InvitedEmail,
		"expires_at": inv.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *MembershipHandler) AcceptInvitation(c echo.Context) error {
	err := h.svc.AcceptInvitation(c.Request().Context(), ActorID(c), c.Param("token"))
	recordOperation("accept_invitation", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "accepted"})
}

func (h *MembershipHandler) RejectInvitation(c echo.Context) error {
	err := h.svc.RejectInvitation(c.Request().Context(), ActorID(c), c.Param("token"))
	recordOperation("reject_invitation", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "rejected"})
}

func (h *MembershipHandler) RemoveMember(c echo.Context) error {
	res, err := h.svc.RemoveMember(c.Request().Context(), ActorID(c), c.Param("userID"))
	recordOperation("remove_member", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"removed_user_id":            res.RemovedUserID,
		"cases_needing_reassignment": res.CasesNeedingReassignment,
	})
}

type increaseSeatsRequest struct {
	AdditionalSeats int    `json:"additional_seats"`
	PaymentID       string `json:"payment_id"`
}

func (h *MembershipHandler) IncreaseSeats(c echo.Context) error {
	var req increaseSeatsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "invalid_request"})
	}
	newMax, err := h.svc.IncreaseSeats(c.Request().Context(), ActorID(c), req.AdditionalSeats, req.PaymentID)
	recordOperation("increase_seats", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"max_seats": newMax})
}

func (h *MembershipHandler) GetOrganization(c echo.Context) error {
	view, err := h.svc.GetOrganization(c.Request().Context(), ActorID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                  view.Org.ID,
		"name":                view.Org.Name,
		"plan":                view.Org.Plan,
		"max_seats":           view.Org.MaxSeats,
		"active_members":      view.ActiveMembers,
		"seats_remaining":     view.SeatsRemaining,
		"subscription_status": view.Org.SubscriptionStatus,
	})
}

func (h *MembershipHandler) ListActiveMembers(c echo.Context) error {
	members, err := h.svc.ListActiveMembers(c.Request().Context(), ActorID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]echo.Map, 0, len(members))
	for _, m := range members {
		out = append(out, echo.Map{
			"user_id":   m.UserID,
			"role":      m.Role,
			"joined_at": m.JoinedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"members": out})
}

func (h *MembershipHandler) ListPendingInvitations(c echo.Context) error {
	invs, err := h.svc.ListPendingInvitations(c.Request().Context(), ActorID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]echo.Map, 0, len(invs))
	for _, inv := range invs {
		out = append(out, echo.Map{
			"token":      inv.Token,
			"email":      inv.InvitedEmail,
			"expires_at": inv.ExpiresAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"invitations": out})
}

// ReassignmentHandler exposes case-ownership reassignment over HTTP.
type ReassignmentHandler struct {
	svc *reassignment.ReassignmentService
	log *zap.Logger
}

func NewReassignmentHandler(svc *reassignment.ReassignmentService, log *zap.Logger) *ReassignmentHandler {
	return &ReassignmentHandler{svc: svc, log: log}
}

type reassignRequest struct {
	FromUserID string   `json:"from_user_id"`
	ToUserID   string   `json:"to_user_id"`
	CaseIDs    []string `json:"case_ids"`
}

func (h *ReassignmentHandler) ReassignCases(c echo.Context) error {
	var req reassignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "invalid_request"})
	}
	res, err := h.svc.ReassignCases(c.Request().Context(), ActorID(c), req.FromUserID, req.ToUserID, req.CaseIDs)
	recordOperation("reassign_cases", err)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"requested_cases": res.RequestedCases,
		"modified_cases":  res.ModifiedCases,
	})
}

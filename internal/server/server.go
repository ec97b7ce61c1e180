// Package server wires the HTTP surface: echo routes, auth, request ids,
// metrics, and the sentinel-to-status error mapper.
package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"firmdesk/backend/pkg/logger"
)

// Deps bundles everything the router needs.
type Deps struct {
	Membership   *MembershipHandler
	Reassignment *ReassignmentHandler
	Auth         *AuthVerifier
	Log          *zap.Logger
}

// New builds the echo instance with all middleware and routes registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(RequestIDMiddleware)
	e.Use(logger.Middleware(d.Log))
	e.Use(MetricsMiddleware)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", MetricsHandler())

	v1 := e.Group("/api/v1/org", AuthMiddleware(d.Auth))
	v1.GET("", d.Membership.GetOrganization)
	v1.GET("/members", d.Membership.ListActiveMembers)
	v1.POST("/members/invite", d.Membership.InviteMember)
	v1.DELETE("/members/:userID", d.Membership.RemoveMember)
	v1.GET("/invitations", d.Membership.ListPendingInvitations)
	v1.POST("/invitations", d.Membership.IssueInvitation)
	v1.POST("/invitations/:token/accept", d.Membership.AcceptInvitation)
	v1.POST("/invitations/:token/reject", d.Membership.RejectInvitation)
	v1.POST("/seats/increase", d.Membership.IncreaseSeats)
	v1.POST("/cases/reassign", d.Reassignment.ReassignCases)

	return e
}

// RequestIDMiddleware ensures every request carries an X-Request-ID, echoed
// back on the response and available to the request logger.
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(logger.RequestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Request().Header.Set(logger.RequestIDKey, requestID)
		c.Response().Header().Set(logger.RequestIDKey, requestID)
		c.Set(logger.RequestIDKey, requestID)
		return next(c)
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/tripgate/tripgate/internal/apierror"
	"github.com/tripgate/tripgate/internal/middleware"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/session"
)

// respond writes the standard success envelope.
func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail writes the standard error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	middleware.AbortWithError(c, err, s.config.Production)
}

// handleHealth reports process and store health. The store check is
// best effort so a redis outage shows as degraded, not down.
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			status = "degraded"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// handleMe returns the authenticated account and, when a device session
// was bound, its id and expiry.
func (s *Server) handleMe(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		s.fail(c, apierror.Unauthorized("authentication required"))
		return
	}

	data := gin.H{"user": user}
	if sess, ok := middleware.GetSession(c); ok {
		data["session"] = gin.H{
			"id":        sess.ID,
			"deviceId":  sess.DeviceID,
			"expiresAt": sess.ExpiresAt,
		}
	}

	respond(c, http.StatusOK, data)
}

// logoutRequest names a session to end when no device session is bound.
type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

// handleLogout ends one device session: the bound one when the request
// carries a known device id, otherwise the one named in the body.
func (s *Server) handleLogout(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		s.fail(c, apierror.Unauthorized("authentication required"))
		return
	}

	sessionID := ""
	if sess, ok := middleware.GetSession(c); ok {
		sessionID = sess.ID
	} else {
		var req logoutRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			sessionID = req.SessionID
		}
		if sessionID != "" {
			// A bound session is always active; a session named in the
			// body may already have been revoked.
			named, err := s.sessions.Get(c.Request.Context(), user.ID, sessionID)
			if err == nil && named.RevokedAt != nil {
				s.fail(c, apierror.SessionRevoked())
				return
			}
		}
	}
	if sessionID == "" {
		s.fail(c, apierror.BadRequest("no session to log out"))
		return
	}

	err := s.sessions.Destroy(c.Request.Context(), user.ID, sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		s.fail(c, apierror.FromError(err))
		return
	}

	s.logger.Info("session ended",
		observability.String("user_id", user.ID),
		observability.String("session_id", sessionID),
	)

	respond(c, http.StatusOK, gin.H{"loggedOut": true})
}

// handleLogoutAll ends every session the user has.
func (s *Server) handleLogoutAll(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		s.fail(c, apierror.Unauthorized("authentication required"))
		return
	}

	count, err := s.sessions.DestroyUserSessions(c.Request.Context(), user.ID)
	if err != nil {
		s.fail(c, apierror.FromError(err))
		return
	}

	s.logger.Info("all sessions ended",
		observability.String("user_id", user.ID),
		observability.Int("count", count),
	)

	respond(c, http.StatusOK, gin.H{"loggedOut": true, "sessions": count})
}

// optimizeTripRequest is the trip optimization request body.
type optimizeTripRequest struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	DepartureDate string   `json:"departureDate"`
	Stops         []string `json:"stops"`
}

// Validate checks the request body field by field.
func (r optimizeTripRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Origin, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Destination, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.DepartureDate, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&r.Stops, validation.Length(0, 10)),
	)
}

// handleOptimizeTrip accepts a trip optimization request. Tier gating
// happened in the middleware chain; here the body is validated and the
// job is accepted for processing.
func (s *Server) handleOptimizeTrip(c *gin.Context) {
	var req optimizeTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apierror.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		s.fail(c, apierror.FromError(err))
		return
	}

	respond(c, http.StatusAccepted, gin.H{
		"tripId": uuid.NewString(),
		"status": "queued",
	})
}

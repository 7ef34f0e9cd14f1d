package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"matchroom-service/internal/apperr"
	"matchroom-service/internal/models"
)

// MatchService is the negotiation engine behind the match endpoints.
type MatchService interface {
	CreateChallenge(ctx context.Context, actorID int, req models.ChallengeRequest) (models.Match, error)
	Accept(ctx context.Context, actorID, matchID int) (models.Match, error)
	Confirm(ctx context.Context, actorID, matchID int) (models.Match, models.ChatRoom, error)
	Cancel(ctx context.Context, actorID, matchID int) (models.Match, error)
	GetMatch(ctx context.Context, actorID, matchID int) (models.Match, error)
	RoomForMatch(ctx context.Context, actorID, matchID int) (models.ChatRoom, error)
}

// MatchHandler exposes match negotiation over HTTP.
type MatchHandler struct {
	service MatchService
}

// NewMatchHandler builds a MatchHandler.
func NewMatchHandler(service MatchService) *MatchHandler {
	return &MatchHandler{service: service}
}

type challengeRequest struct {
	InitiatingTeamID int        `json:"initiating_team_id"`
	InvitedTeamID    int        `json:"invited_team_id"`
	BookingID        *int       `json:"booking_id"`
	MatchDate        *time.Time `json:"match_date"`
	Location         *string    `json:"location"`
}

// CreateChallenge starts a negotiation from the caller's team.
func (h *MatchHandler) CreateChallenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	m, err := h.service.CreateChallenge(c.Request.Context(), c.GetInt("userID"), models.ChallengeRequest{
		InitiatingTeamID: req.InitiatingTeamID,
		InvitedTeamID:    req.InvitedTeamID,
		BookingID:        req.BookingID,
		MatchDate:        req.MatchDate,
		Location:         req.Location,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Challenge sent successfully", "match": m})
}

// Accept moves a challenge to initiator confirmation.
func (h *MatchHandler) Accept(c *gin.Context) {
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}
	m, err := h.service.Accept(c.Request.Context(), c.GetInt("userID"), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Challenge accepted, awaiting final confirmation", "match": m})
}

// Confirm finalizes a match and opens its chat room.
func (h *MatchHandler) Confirm(c *gin.Context) {
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}
	m, room, err := h.service.Confirm(c.Request.Context(), c.GetInt("userID"), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Match confirmed successfully! Chat room created.", "match": m, "chat_room_id": room.ID})
}

// Cancel withdraws a match and archives its room if any.
func (h *MatchHandler) Cancel(c *gin.Context) {
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}
	m, err := h.service.Cancel(c.Request.Context(), c.GetInt("userID"), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Match cancelled successfully.", "match": m})
}

func (h *MatchHandler) GetMatch(c *gin.Context) {
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}
	m, err := h.service.GetMatch(c.Request.Context(), c.GetInt("userID"), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": m})
}

func (h *MatchHandler) GetMatchRoom(c *gin.Context) {
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}
	room, err := h.service.RoomForMatch(c.Request.Context(), c.GetInt("userID"), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_room": room})
}

func matchIDParam(c *gin.Context) (int, bool) {
	matchID, err := strconv.Atoi(c.Param("match_id"))
	if err != nil || matchID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return 0, false
	}
	return matchID, true
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": apperr.MessageOf(err)}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Status != "" {
		body["status"] = appErr.Status
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

package lobby

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	PlayerName string `json:"playerName"`
	NumCPUs    int    `json:"numCPUs"`
}

type joinRequest struct {
	PlayerName string `json:"playerName"`
	RoomCode   string `json:"roomCode"`
}

type seatResponse struct {
	PlayerID     string `json:"playerId"`
	ConnectionID string `json:"connectionId"`
	Room         State  `json:"room"`
}

// POST /lobby/create  body: {playerName, numCPUs}
//
// HTTP fallback for clients that set up the room before opening a socket.
// The seat starts with a placeholder connection id; the client binds its
// live socket by sending rejoin with the returned playerId over the
// websocket, which rebinds the seat to that connection.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	connID := uuid.NewString()
	room, p, err := h.svc.Join(c.Request.Context(), JoinRequest{
		ConnectionID: connID,
		Name:         req.PlayerName,
		NumCPUs:      req.NumCPUs,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, seatResponse{
		PlayerID:     p.ID,
		ConnectionID: connID,
		Room:         h.svc.State(room),
	})
}

// POST /lobby/join  body: {playerName, roomCode}
func (h *Handler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	connID := uuid.NewString()
	room, p, err := h.svc.Join(c.Request.Context(), JoinRequest{
		ConnectionID: connID,
		Name:         req.PlayerName,
		RoomCode:     strings.ToUpper(strings.TrimSpace(req.RoomCode)),
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, seatResponse{
		PlayerID:     p.ID,
		ConnectionID: connID,
		Room:         h.svc.State(room),
	})
}

// GET /lobby/:code
func (h *Handler) Get(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	room, ok := h.svc.Room(code)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.State(room))
}

func statusFor(err error) int {
	switch err {
	case ErrRoomNotFound:
		return http.StatusNotFound
	case ErrRoomFull, ErrAlreadyStarted, ErrDuplicateJoin:
		return http.StatusConflict
	case ErrInvalidName, ErrInvalidRoomCode, ErrInvalidPlayerCount:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/house"
	"github.com/dukerupert/flatmate/internal/websocket"
)

type HouseHandler struct {
	houses *house.Service
	hub    Broadcaster
	logger *slog.Logger
}

func NewHouseHandler(houses *house.Service, hub Broadcaster, logger *slog.Logger) *HouseHandler {
	return &HouseHandler{houses: houses, hub: hub, logger: logger}
}

// broadcast notifies the creator and members of a house, plus any extra
// users such as one who just left.
func (h *HouseHandler) broadcast(r *http.Request, houseID int64, msg websocket.Message, extra ...int64) {
	if h.hub == nil {
		return
	}
	ids, err := h.houses.AudienceIDs(r.Context(), houseID)
	if err != nil {
		h.logger.Warn("broadcast audience", "house_id", houseID, "error", err)
		return
	}
	h.hub.BroadcastTo(append(ids, extra...), msg)
}

func (h *HouseHandler) List(w http.ResponseWriter, r *http.Request) {
	houses, err := h.houses.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, houses)
}

type houseRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *HouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req houseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	summary, err := h.houses.Create(r.Context(), auth.UserID(r.Context()), req.Name, req.Description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HouseHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}

	members, err := h.houses.Members(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (h *HouseHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	invited, hs, err := h.houses.Invite(r.Context(), auth.UserID(r.Context()), id, req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(r, hs.ID, websocket.NewMessage("house_member", "joined", invited.ID, hs.ID, map[string]any{
		"user_id": invited.ID,
		"name":    invited.Name,
	}))
	writeMessage(w, fmt.Sprintf("Successfully invited %s to %s", invited.Name, hs.Name))
}

func (h *HouseHandler) Exit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	hs, err := h.houses.Exit(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(r, hs.ID, websocket.NewMessage("house_member", "left", userID, hs.ID, map[string]any{"user_id": userID}), userID)
	writeMessage(w, "Successfully exited house")
}

func (h *HouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}

	// The audience is gone once the house is, so collect it first.
	audience, err := h.houses.AudienceIDs(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hs, err := h.houses.Delete(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastTo(audience, websocket.NewMessage("house", "deleted", hs.ID, hs.ID, nil))
	}
	writeMessage(w, "House deleted successfully")
}

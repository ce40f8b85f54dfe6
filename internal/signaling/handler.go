package signaling

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/appctx"
)

// Handler exposes the invite coordination endpoints.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a handler over the given coordinator.
func NewHandler(c *Coordinator) *Handler {
	return &Handler{coordinator: c}
}

// RegisterInviteRequest is the POST /invite body. ExpectedGuests defaults
// to zero when omitted.
type RegisterInviteRequest struct {
	InviteLink     *string `json:"invite_link"`
	ExpectedGuests int     `json:"expected_guests"`
}

// HandleRegisterInvite handles POST /api/v1/signaling/invite.
// The host calls this once it has the invite link; any in-flight
// invitation is superseded and its join progress discarded.
func (h *Handler) HandleRegisterInvite(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req RegisterInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid JSON body")
		return
	}
	if req.InviteLink == nil || *req.InviteLink == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "invite_link is required")
		return
	}
	if req.ExpectedGuests < 0 {
		api.WriteBadRequest(w, api.ReasonInvalidField, "expected_guests must be non-negative")
		return
	}

	h.coordinator.Register(*req.InviteLink, req.ExpectedGuests)

	log.Info("invite registered", "expected_guests", req.ExpectedGuests)

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "invite registered",
	})
}

// HandleGetInvite handles GET /api/v1/signaling/invite.
// Guests poll this until the invite link is set.
func (h *Handler) HandleGetInvite(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]*string{
		"invite_link": h.coordinator.Invite(),
	})
}

// HandleGetShareLink handles GET /api/v1/signaling/share_link.
func (h *Handler) HandleGetShareLink(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]*string{
		"share_link": h.coordinator.ShareLink(),
	})
}

// HandlePromoteShareLink handles POST /api/v1/signaling/share_link.
// The host calls this to make the registered invite link shareable.
func (h *Handler) HandlePromoteShareLink(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.PromoteShareLink(); err != nil {
		if errors.Is(err, ErrNoInvite) {
			api.WriteError(w, http.StatusBadRequest, api.ReasonPreconditionFailed,
				"invite link must be set before share link")
			return
		}
		api.WriteInternalError(w, "failed to promote share link")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "share link registered",
	})
}

// HandleGetGuestCount handles GET /api/v1/signaling/guest_count.
// The host polls this to see how many guests have joined.
func (h *Handler) HandleGetGuestCount(w http.ResponseWriter, r *http.Request) {
	guests, expected := h.coordinator.GuestCount()

	api.WriteJSON(w, http.StatusOK, map[string]int{
		"guest_count":     guests,
		"expected_guests": expected,
	})
}

// HandleJoin handles POST /api/v1/signaling/guest_join.
// Each guest calls this once it has joined the room. A full invitation
// rejects the join; an overshoot should be impossible and is reported as
// an internal error, never corrected.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	count, err := h.coordinator.Join()
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			api.WriteConflict(w, api.ReasonCapacityExceeded, "all guests already joined")
			return
		}
		if errors.Is(err, ErrInvariantViolation) {
			log.Error("guest count invariant violated", "guest_count", count, "error", err)
			api.WriteInternalError(w, "guest count invariant violated")
			return
		}
		api.WriteInternalError(w, "join failed")
		return
	}

	log.Info("guest joined", "guest_count", count)

	api.WriteJSON(w, http.StatusOK, map[string]int{
		"guest_count": count,
	})
}

// HandleClear handles GET /api/v1/signaling/clear.
// Kept as a GET to match existing clients.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Clear()

	appctx.GetLogger(r.Context()).Info("invite state cleared")

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "state cleared",
	})
}

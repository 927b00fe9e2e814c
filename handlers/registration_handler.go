package handlers

import (
	"net/http"
	"strconv"

	"github.com/playforge/esports-platform/middleware"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/services"
)

const maxImageUploadBytes = 10 << 20 // 10MB

type RegistrationHandler struct {
	registrations *services.RegistrationService
	groups        *services.GroupService
}

func NewRegistrationHandler(registrations *services.RegistrationService, groups *services.GroupService) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		groups:        groups,
	}
}

func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var team services.TeamSubmission
	if err := readJSON(w, r, &team); err != nil {
		badRequestResponse(w, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	reg, err := h.registrations.Submit(r.Context(), tournamentID, claims.UserID, team)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	reg, err := h.registrations.Get(r.Context(), id)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// AttachImage принимает multipart-форму с полями slot, image_number и file.
func (h *RegistrationHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		badRequestResponse(w, err)
		return
	}

	slot := models.PlayerSlot(r.FormValue("slot"))
	imageNumber, _ := strconv.Atoi(r.FormValue("image_number"))

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	img, err := h.registrations.AttachImage(r.Context(), id, slot, imageNumber, contentType, file)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (h *RegistrationHandler) DetachImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	imageID, err := idParam(r, "imageID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.registrations.DetachImage(r.Context(), id, imageID); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyRequest struct {
	Override bool `json:"override"`
}

func (h *RegistrationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	req := verifyRequest{}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			badRequestResponse(w, err)
			return
		}
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.registrations.Verify(r.Context(), id, claims.UserID, req.Override); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var req rejectRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.registrations.Reject(r.Context(), id, claims.UserID, req.Reason); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.registrations.Cancel(r.Context(), id, claims.UserID); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistrationHandler) ForceDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.registrations.ForceDelete(r.Context(), id); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pinGroupRequest struct {
	Group string `json:"group"`
}

// PinGroup закрепляет заявку за явной группой вне автоматической раскладки.
func (h *RegistrationHandler) PinGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var req pinGroupRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.groups.Pin(r.Context(), id, req.Group); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistrationHandler) UnpinGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "registrationID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.groups.Unpin(r.Context(), id); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/playforge/esports-platform/middleware"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/services"
)

type TournamentHandler struct {
	tournaments *services.TournamentService
	engine      *services.StatusEngine
	groups      *services.GroupService
}

func NewTournamentHandler(
	tournaments *services.TournamentService,
	engine *services.StatusEngine,
	groups *services.GroupService,
) *TournamentHandler {
	return &TournamentHandler{
		tournaments: tournaments,
		engine:      engine,
		groups:      groups,
	}
}

type createTournamentRequest struct {
	Name                 string           `json:"name"`
	Description          *string          `json:"description"`
	GameType             models.GameType  `json:"game_type"`
	Status               string           `json:"status"`
	RegistrationDeadline *time.Time       `json:"registration_deadline"`
	StartDate            *time.Time       `json:"start_date"`
	EndDate              *time.Time       `json:"end_date"`
	MaxParticipants      int              `json:"max_participants"`
	GroupingEnabled      bool             `json:"grouping_enabled"`
	GroupSize            int              `json:"group_size"`
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())

	t := &models.Tournament{
		Name:                 req.Name,
		Description:          req.Description,
		GameType:             req.GameType,
		OrganizerID:          claims.UserID,
		Status:               models.TournamentStatus(req.Status),
		RegistrationDeadline: req.RegistrationDeadline,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		MaxParticipants:      req.MaxParticipants,
		Grouping: models.GroupingConfig{
			Enabled:   req.GroupingEnabled,
			GroupSize: req.GroupSize,
		},
	}

	if err := h.tournaments.Create(r.Context(), t); err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tournaments, err := h.tournaments.List(r.Context(), limit, offset)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments})
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	t, err := h.tournaments.Get(r.Context(), id)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := h.tournaments.Cancel(r.Context(), id); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if err := h.tournaments.Delete(r.Context(), id, force); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type serverStatusRequest struct {
	Status models.TournamentStatus `json:"status"`
}

func (h *TournamentHandler) SetServerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	var req serverStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.tournaments.SetServerStatus(r.Context(), id, req.Status); err != nil {
		mapServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TournamentHandler) GetServerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	status, err := h.tournaments.GetServerStatus(r.Context(), id)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": status})
}

// Sweep запускает пакетный обход статусов вручную (админ/отладка);
// тот же код регулярно зовёт планировщик.
func (h *TournamentHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	updated, err := h.engine.SweepStatuses(r.Context())
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"updated_count": updated})
}

func (h *TournamentHandler) AssignGroups(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	updated, totalGroups, err := h.groups.Recompute(r.Context(), id)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{
		"updated_count": updated,
		"total_groups":  totalGroups,
	})
}

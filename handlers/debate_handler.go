package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/debatearena/debate-platform/middleware"
	"github.com/debatearena/debate-platform/repositories"
)

type DebateHandler struct {
	debateRepo repositories.DebateRepository
}

func NewDebateHandler(debateRepo repositories.DebateRepository) *DebateHandler {
	return &DebateHandler{debateRepo: debateRepo}
}

// GetDebate отдаёт запись дебатов, включая журнал и итог. Доступна только
// участникам этих дебатов.
func (h *DebateHandler) GetDebate(w http.ResponseWriter, r *http.Request) {
	debateID, err := strconv.Atoi(chi.URLParam(r, "debateID"))
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid debate id"))
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		errorResponse(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	debate, err := h.debateRepo.GetByID(r.Context(), debateID)
	if err != nil {
		mapRepositoryErrorToHTTP(w, r, err)
		return
	}
	if debate.User1ID != userID && debate.User2ID != userID {
		forbiddenResponse(w, r, "you are not a participant of this debate")
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"debate": debate}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

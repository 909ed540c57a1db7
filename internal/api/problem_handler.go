package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/radixapp/radix/internal/auth"
	"github.com/radixapp/radix/internal/database"
	"github.com/radixapp/radix/internal/domain"
)

// visibleTestCases is how many test cases a non-author sees when
// viewing a problem.
const visibleTestCases = 5

// ProblemHandler handles problem CRUD and browsing endpoints
type ProblemHandler struct {
	problems *database.ProblemRepository
	logger   *slog.Logger
}

func NewProblemHandler(problems *database.ProblemRepository, logger *slog.Logger) *ProblemHandler {
	return &ProblemHandler{problems: problems, logger: logger}
}

// CreateProblem handles POST /problems: inserts an empty untitled
// problem owned by the caller and returns its ID.
func (h *ProblemHandler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.problems.CreateEmpty(r.Context(), user.ToPublic())
	if err != nil {
		h.logger.Error("create problem failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create problem")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// GetProblem handles GET /problems/{id}. The author sees every test
// case; everyone else gets the first few.
func (h *ProblemHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem ID")
		return
	}

	problem, err := h.problems.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProblemNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		h.logger.Error("get problem failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get problem")
		return
	}

	if problem.Author.ID != user.ID && len(problem.TestCases) > visibleTestCases {
		problem.TestCases = problem.TestCases[:visibleTestCases]
	}

	writeJSON(w, http.StatusOK, problem)
}

// UpdateProblem handles PUT /problems/{id} (author only).
func (h *ProblemHandler) UpdateProblem(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem ID")
		return
	}

	var input database.UpdateProblem
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.problems.Update(r.Context(), id, user.ID, &input); err != nil {
		if errors.Is(err, domain.ErrNotAuthor) {
			writeError(w, http.StatusForbidden, "not the author of this problem")
			return
		}
		h.logger.Error("update problem failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update problem")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ListProblems handles GET /problems/infinite?cursor=<id> with keyset
// pagination.
func (h *ProblemHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	var cursor *uuid.UUID
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = &id
	}

	problems, err := h.problems.GetPaginate(r.Context(), cursor)
	if err != nil {
		h.logger.Error("list problems failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}
	if problems == nil {
		problems = []domain.ListingProblem{}
	}

	writeJSON(w, http.StatusOK, problems)
}

// SearchProblems handles GET /problems/search?query=
func (h *ProblemHandler) SearchProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.problems.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.logger.Error("search problems failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search problems")
		return
	}
	if problems == nil {
		problems = []domain.ListingProblem{}
	}

	writeJSON(w, http.StatusOK, problems)
}

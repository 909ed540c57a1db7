package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/radixapp/radix/internal/auth"
	"github.com/radixapp/radix/internal/database"
	"github.com/radixapp/radix/internal/domain"
	"github.com/radixapp/radix/internal/room"
)

// ProblemsFilter selects which problems a new room starts with.
// Currently one variant: {"t":"Single","c":{"id":<uuid>}}.
type ProblemsFilter struct {
	T string          `json:"t"`
	C json.RawMessage `json:"c"`
}

type singleFilter struct {
	ID uuid.UUID `json:"id"`
}

// RoomHandler handles room creation, listing and the websocket upgrade.
type RoomHandler struct {
	registry *room.Registry
	problems *database.ProblemRepository
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewRoomHandler(registry *room.Registry, problems *database.ProblemRepository, corsOrigin string, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		registry: registry,
		problems: problems,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || corsOrigin == "*" || origin == corsOrigin
			},
		},
		logger: logger,
	}
}

// CreateRoom handles POST /room
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input struct {
		Name     string           `json:"name"`
		Public   bool             `json:"public"`
		Problems []ProblemsFilter `json:"problems"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Name == "" {
		writeError(w, http.StatusBadRequest, "room name is required")
		return
	}

	problems, err := h.resolveProblems(r, input.Problems)
	if err != nil {
		if errors.Is(err, domain.ErrProblemNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		h.logger.Error("resolve room problems failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.CreateRoom(*user, input.Name, input.Public, problems); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyConnected):
			writeError(w, http.StatusForbidden, "already connected to a room")
		case errors.Is(err, domain.ErrRoomNameTaken):
			writeError(w, http.StatusForbidden, "room name already taken")
		default:
			h.logger.Error("create room failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create room")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "created"})
}

func (h *RoomHandler) resolveProblems(r *http.Request, filters []ProblemsFilter) ([]domain.Problem, error) {
	problems := make([]domain.Problem, 0, len(filters))
	for _, filter := range filters {
		switch filter.T {
		case "Single":
			var single singleFilter
			if err := json.Unmarshal(filter.C, &single); err != nil {
				return nil, errors.New("invalid Single problem filter")
			}
			problem, err := h.problems.GetByID(r.Context(), single.ID)
			if err != nil {
				return nil, err
			}
			problems = append(problems, *problem)
		default:
			return nil, errors.New("unknown problem filter " + filter.T)
		}
	}
	return problems, nil
}

// ListRooms handles GET /room/list
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// CanConnect handles GET /room/{name}/can-connect. Advisory only; the
// answer can go stale before the client actually connects.
func (h *RoomHandler) CanConnect(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	canConnect, reason := h.registry.CanConnect(user.ID, r.PathValue("name"))
	writeJSON(w, http.StatusOK, map[string]any{
		"canConnect": canConnect,
		"reason":     reason,
	})
}

// Connect handles GET /room/{name}: joins the room, upgrades to a
// websocket and pumps until the connection ends.
func (h *RoomHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	name := r.PathValue("name")

	mailbox, err := h.registry.Join(user.ID, name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "room not found")
		case errors.Is(err, domain.ErrAlreadyConnected):
			writeError(w, http.StatusForbidden, "already connected to a room")
		default:
			h.logger.Error("join room failed", "room", name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to join room")
		}
		return
	}
	defer h.registry.Leave(user.ID)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "room", name, "error", err)
		return
	}

	conn, err := room.NewConnection(ws, *user, mailbox, h.logger)
	if err != nil {
		// Room stopped between Join and registration.
		if data, encErr := room.EncodeError("room is no longer available"); encErr == nil {
			_ = ws.WriteMessage(websocket.TextMessage, data)
		}
		_ = ws.Close()
		return
	}

	conn.Run()
}

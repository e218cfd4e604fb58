package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// AdminHandler exposes the moderation endpoints. The router gates all of
// them behind a valid admin bearer token.
type AdminHandler struct {
	svc    *AdminService
	logger *zap.SugaredLogger
}

func NewAdminHandler(svc *AdminService, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// StatusRequest selects the moderation action. Duration is in seconds and
// required for "disable".
type StatusRequest struct {
	Function string `json:"function"`
	Duration *int64 `json:"duration"`
}

func (h *AdminHandler) AccountStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	message, err := h.svc.SetStatus(r.Context(), id, req.Function, req.Duration)
	if err != nil {
		h.logger.Debugw("account status update failed", "account_id", id, "err", err)
		switch {
		case errors.Is(err, ErrInvalidAction):
			writeJSON(w, http.StatusBadRequest, errBody("Invalid function. Must be 'enable' or 'disable'"))
		case errors.Is(err, ErrMissingDuration):
			writeJSON(w, http.StatusBadRequest, errBody("Duration is required for disabling an account"))
		case errors.Is(err, ErrNotFound):
			writeJSON(w, http.StatusNotFound, errBody("User not found"))
		default:
			h.internal(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// List serves all accounts as sanitized summaries sorted by id.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context())
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// UpdateInformationRequest names the field to rewrite and its new value.
type UpdateInformationRequest struct {
	Update string `json:"update"`
	To     string `json:"to"`
}

func (h *AdminHandler) UpdateInformation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateInformationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Update == "" {
		writeJSON(w, http.StatusBadRequest, errBody("Invalid request. 'update' and 'to' fields are required."))
		return
	}
	if err := h.svc.UpdateInformation(r.Context(), id, req.Update, req.To); err != nil {
		switch {
		case errors.Is(err, ErrInvalidField):
			writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
		case errors.Is(err, ErrNotFound):
			writeJSON(w, http.StatusNotFound, errBody("User not found"))
		case errors.Is(err, ErrDuplicateEmail):
			writeJSON(w, http.StatusBadRequest, errBody("Email already exists"))
		default:
			h.internal(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Information updated successfully!"})
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errBody("User not found"))
			return
		}
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully."})
}

func (h *AdminHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid account id"))
		return 0, false
	}
	return id, true
}

func (h *AdminHandler) internal(w http.ResponseWriter, err error) {
	h.logger.Errorw("admin request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
}

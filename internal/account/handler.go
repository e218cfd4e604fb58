package account

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/thriftique/service-account-go/internal/account/entity"
	"github.com/thriftique/service-account-go/internal/token"
)

// Handler exposes the user-facing HTTP endpoints: register, login, who-am-i,
// change-password, verification and profiles.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRequest request body for the register endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	summary, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("register failed", "email", req.Email, "err", err)
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			h.writeJSON(w, http.StatusBadRequest, errBody("Email already exists"))
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPasswordTooWeak):
			h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
		default:
			h.internal(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created successfully",
		"account": summary,
	})
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	tok, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "email", req.Email, "err", err)
		var attempts *AttemptsError
		var locked *LockedError
		var disabled *DisabledError
		switch {
		case errors.As(err, &attempts):
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":              "Invalid email or password",
				"attempts_remaining": attempts.Remaining,
			})
		case errors.As(err, &locked):
			h.writeJSON(w, http.StatusForbidden, map[string]any{
				"error":             "Account locked due to repeated failed attempts",
				"remaining_minutes": int(math.Ceil(locked.Remaining.Minutes())),
			})
		case errors.As(err, &disabled):
			h.writeJSON(w, http.StatusForbidden, errBody("Account disabled by administrator"))
		case errors.Is(err, ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, errBody("Invalid email or password"))
		case errors.Is(err, ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
		default:
			h.internal(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

// Me returns the identity claims of the presented bearer token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := token.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errBody("unauthenticated"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":       claims.AccountID,
		"username": claims.Username,
		"role":     claims.Role,
	})
}

// ChangePasswordRequest carries the current and replacement secrets.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	claims, ok := token.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errBody("unauthenticated"))
		return
	}
	if claims.AccountID != id {
		h.writeJSON(w, http.StatusForbidden, errBody("You can only change your own password"))
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrWrongPassword):
			h.writeJSON(w, http.StatusUnauthorized, errBody("Current password is incorrect"))
		case errors.Is(err, ErrPasswordTooWeak):
			h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, errBody("User not found"))
		default:
			h.internal(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully!"})
}

// VerifyRequest carries the emailed confirmation code.
type VerifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	if err := h.svc.Verify(r.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, errBody("Invalid verification code"))
		default:
			h.internal(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully!"})
}

// Profile returns the full profile to its owner or an administrator.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	claims, ok := token.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errBody("unauthenticated"))
		return
	}
	if claims.AccountID != id && claims.Role != string(entity.RoleAdmin) {
		h.writeJSON(w, http.StatusForbidden, errBody("forbidden"))
		return
	}
	acc, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		h.notFoundOrInternal(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"profile": profileBody(acc)})
}

// UpdateProfileRequest carries optional profile edits.
type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Bio      *string `json:"bio"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	claims, ok := token.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errBody("unauthenticated"))
		return
	}
	if claims.AccountID != id {
		h.writeJSON(w, http.StatusForbidden, errBody("forbidden"))
		return
	}
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	err := h.svc.UpdateProfile(r.Context(), id, ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Bio:      req.Bio,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeJSON(w, http.StatusNotFound, errBody("User not found"))
		case errors.Is(err, ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
		case errors.Is(err, ErrDuplicateEmail):
			h.writeJSON(w, http.StatusBadRequest, errBody("Email already exists"))
		default:
			h.internal(w, err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully!"})
}

// PublicProfile serves the public view of an account, sans credentials.
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		h.notFoundOrInternal(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"profile": publicBody(acc)})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid account id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) notFoundOrInternal(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errBody("User not found"))
		return
	}
	h.internal(w, err)
}

func (h *Handler) internal(w http.ResponseWriter, err error) {
	h.logger.Errorw("request failed", "err", err)
	h.writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func profileBody(acc *entity.Account) map[string]any {
	return map[string]any{
		"id":             acc.ID,
		"username":       acc.Username,
		"email":          acc.Email,
		"role":           acc.Role,
		"status":         acc.Status,
		"phone":          acc.Phone,
		"bio":            acc.Bio,
		"disabled":       acc.Disabled,
		"disabled_until": disabledUntilBody(acc),
	}
}

func publicBody(acc *entity.Account) map[string]any {
	return map[string]any{
		"id":       acc.ID,
		"username": acc.Username,
		"bio":      acc.Bio,
	}
}

func disabledUntilBody(acc *entity.Account) any {
	if acc.DisabledUntil == nil {
		return nil
	}
	return acc.DisabledUntil.Format(time.RFC3339)
}

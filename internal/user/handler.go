package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

// Handler exposes the account endpoints over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type LoginVerifyRequest struct {
	Username   string `json:"username"`
	Code       string `json:"code"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResponse is returned by both login steps. Token fields are empty
// while an MFA challenge is pending.
type LoginResponse struct {
	RequiresMFA bool        `json:"requiresMfa"`
	Message     string      `json:"message,omitempty"`
	Token       string      `json:"token,omitempty"`
	Username    string      `json:"username,omitempty"`
	FullName    string      `json:"fullname,omitempty"`
	Role        entity.Role `json:"role,omitempty"`
}

type RegisterRequest struct {
	Username  string      `json:"username"`
	Password  string      `json:"password"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Role      entity.Role `json:"role"`
}

type RegisterResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type MeResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type errorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeLogin(w, res)
}

func (h *Handler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var req LoginVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.ConfirmMFA(r.Context(), req.Username, req.Code, req.RememberMe)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeLogin(w, res)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.svc.Register(r.Context(), RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, RegisterResponse{
		Message:  "User registered. Please check your email to verify your account.",
		Username: u.Username,
	})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "Verification token is required."})
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), token); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "Email verified. You can now log in."})
}

func (h *Handler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "If an account exists for that email, a reset link has been sent."})
}

func (h *Handler) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, MessageResponse{Message: "Password has been reset."})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(session.CookieName); err == nil {
		token = c.Value
	}
	h.svc.Logout(r.Context(), token)
	session.ClearCookie(w)
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out."})
}

// Me must run behind session authentication.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "unauthorized", Message: "Not authenticated"})
		return
	}
	h.writeJSON(w, http.StatusOK, MeResponse{Username: c.Username, Role: c.Role})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

func (h *Handler) writeLogin(w http.ResponseWriter, res *LoginResult) {
	if res.Token != "" {
		session.SetCookie(w, res.Token, res.Lifetime)
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{
		RequiresMFA: res.RequiresMFA,
		Message:     res.Message,
		Token:       res.Token,
		Username:    res.Username,
		FullName:    res.FullName,
		Role:        res.Role,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "Invalid request."})
		return false
	}
	return true
}

// writeError maps error kinds to fixed messages. Only the password policy
// reports detail; everything unrecognised is a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var pe *PolicyError
	switch {
	case errors.As(err, &pe):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:  "error",
			Message: "Password does not meet requirements",
			Details: pe.Violations,
		})
	case errors.Is(err, ErrInvalidAccount):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "Invalid request."})
	case errors.Is(err, ErrInvalidCredentials):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "Invalid username or password."})
	case errors.Is(err, ErrUnverifiedAccount):
		h.writeJSON(w, http.StatusForbidden, errorResponse{Status: "error", Message: "Please verify your email first."})
	case errors.Is(err, ErrDuplicateAccount):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "Unable to register user at this time."})
	case errors.Is(err, ErrNoPendingChallenge), errors.Is(err, ErrChallengeExpired), errors.Is(err, ErrInvalidChallenge):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "Invalid or expired login code."})
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "Invalid or expired token."})
	default:
		h.logger.Errorw("request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "application error", Message: "There was an error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/flatmate/internal/account"
	"github.com/dukerupert/flatmate/internal/auth"
)

type AuthHandler struct {
	accounts *account.Service
	logger   *slog.Logger
}

func NewAuthHandler(accounts *account.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	sess, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user registered", "user_id", sess.User.ID)
	writeJSON(w, http.StatusOK, sess)
}

// loginRequest accepts the email under "username" for OAuth2-style clients
// or under "email".
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	email := req.Username
	if email == "" {
		email = req.Email
	}
	h.login(w, r, email, req.Password)
}

// LoginForm is the form-encoded variant of Login.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form")
		return
	}
	h.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, email, password string) {
	if email == "" || password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}
	sess, err := h.accounts.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, u)
}

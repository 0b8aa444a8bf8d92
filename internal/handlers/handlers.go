package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"bizconnect/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Ограничение размера JSON-тела
const maxBodyBytes = 1048576

type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	AuthRatePerSec float64
	AuthBurst      int
}

// Handler оборачивает Storage для доступа к данным
type Handler struct {
	Store     StorageInterface
	Tokens    *auth.TokenIssuer
	Log       *zap.Logger
	Validate  *validator.Validate
	UploadDir string
	MaxUpload int64
	Now       func() time.Time

	started     time.Time
	authLimiter *RateLimiter
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, tokens *auth.TokenIssuer, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = 10
	}
	if cfg.AuthRatePerSec <= 0 {
		cfg.AuthRatePerSec = 5
	}

	v := validator.New()
	// в сообщениях об ошибках: имена полей из JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// тег max считает руны, а bcrypt ограничен байтами
	v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	})

	return &Handler{
		Store:       store,
		Tokens:      tokens,
		Log:         log,
		Validate:    v,
		UploadDir:   cfg.UploadDir,
		MaxUpload:   cfg.MaxUploadBytes,
		Now:         time.Now,
		started:     time.Now(),
		authLimiter: NewRateLimiter(cfg.AuthRatePerSec, cfg.AuthBurst, log),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// serverError отдаёт 500 с исходным текстом ошибки.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.Log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// hashPassword хеширует пароль; слишком длинный пароль даёт 400.
// При ошибке ответ уже записан.
func (h *Handler) hashPassword(w http.ResponseWriter, r *http.Request, password string) (string, bool) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
			return "", false
		}
		h.serverError(w, r, err)
		return "", false
	}
	return hash, true
}

// readJSON читает тело, приводит ключи к camelCase и раскладывает в dst.
// При ошибке ответ уже записан.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	body, err = normalizeKeys(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format: "+err.Error())
		return false
	}
	return true
}

// validationMessage превращает первую ошибку валидатора в текст для клиента.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "pwbytes":
		return fmt.Sprintf("%s must be at most %d bytes", fe.Field(), auth.MaxPasswordBytes)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fe.Field() + " is invalid"
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// optional: пустая строка в БД хранится как NULL
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type databaseHealth struct {
	Status string  `json:"status"`
	Detail *string `json:"detail"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Database  databaseHealth `json:"database"`
	Uptime    float64        `json:"uptime"`
	Timestamp string         `json:"timestamp"`
}

// HealthHandler сообщает о работе сервера и доступности БД
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbHealth := databaseHealth{Status: "ok"}
	if err := h.Store.Ping(ctx); err != nil {
		detail := err.Error()
		dbHealth = databaseHealth{Status: "error", Detail: &detail}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Database:  dbHealth,
		Uptime:    time.Since(h.started).Seconds(),
		Timestamp: h.Now().UTC().Format(time.RFC3339),
	})
}

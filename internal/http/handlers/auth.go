package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/geocoder89/authservice/internal/service"
	"github.com/gin-gonic/gin"
)

const requestTimeout = 3 * time.Second

type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Session, error)
	Login(ctx context.Context, in service.LoginInput) (service.Session, error)
	VerifyIdentity(ctx context.Context, header string) (auth.Identity, error)
	GetProfile(ctx context.Context, userID string) (user.PublicView, error)
	DeductWalletBalance(ctx context.Context, userID string, amount int64) error
	NotifyOrder(ctx context.Context, userID, transactionID string, amount float64) error
}

type CookieConfig struct {
	Name   string
	Secure bool
}

func CookieConfigFrom(cfg config.Config) CookieConfig {
	return CookieConfig{Name: cfg.CookieName, Secure: cfg.IsProd()}
}

type AuthHandler struct {
	svc    AuthService
	cookie CookieConfig
	log    *slog.Logger
}

func NewAuthHandler(svc AuthService, cookie CookieConfig, log *slog.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{svc: svc, cookie: cookie, log: log}
}

type RegisterRequest struct {
	Email                  string `json:"email" binding:"required,email"`
	Password               string `json:"password" binding:"required,min=6"`
	Name                   string `json:"name" binding:"required"`
	NotificationPreference string `json:"notificationPreference" binding:"omitempty,oneof=email sms"`
	PhoneNumber            string `json:"phoneNumber"`
	ReferralCodeUsed       string `json:"referralCodeUsed"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type DeductBalanceRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type NotifyOrderRequest struct {
	TransactionID string  `json:"transactionId" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	sess, err := h.svc.Register(cctx, service.RegisterInput(req))
	if err != nil {
		var inErr *service.InputError

		switch {
		case errors.As(err, &inErr):
			RespondBadRequest(ctx, "Invalid request body", inputErrorDetails(inErr))
		case errors.Is(err, user.ErrDuplicateEmail):
			RespondError(ctx, http.StatusBadRequest, "email_taken", "User with this email already exists", nil)
		default:
			h.log.ErrorContext(ctx.Request.Context(), "register failed", "err", err)
			RespondInternal(ctx, "Registration failed")
		}
		return
	}

	h.setSessionCookie(ctx, sess)

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"token":   sess.Token,
		"user":    sess.User,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	sess, err := h.svc.Login(cctx, service.LoginInput(req))
	if err != nil {
		var inErr *service.InputError

		switch {
		case errors.As(err, &inErr):
			RespondBadRequest(ctx, "Invalid request body", inputErrorDetails(inErr))
		case errors.Is(err, service.ErrInvalidCredentials):
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "login failed", "err", err)
			RespondInternal(ctx, "Login failed")
		}
		return
	}

	h.setSessionCookie(ctx, sess)

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   sess.Token,
		"user":    sess.User,
	})
}

// Verify only looks at the Authorization header. Failure bodies keep
// "valid": false next to the usual error envelope.
func (h *AuthHandler) Verify(ctx *gin.Context) {
	id, err := h.svc.VerifyIdentity(ctx.Request.Context(), ctx.GetHeader("Authorization"))
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{
			"valid": false,
			"error": apiError(ctx, "unauthorized", verifyMessage(err), nil),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"userId": id.UserID,
		"email":  id.Email,
	})
}

// verifyMessage distinguishes header problems only. Token problems share one
// message so expired and tampered tokens look the same to the caller.
func verifyMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingAuthorization):
		return "No authorization header provided"
	case errors.Is(err, auth.ErrMalformedAuthorization):
		return "Invalid authorization header format"
	default:
		return "Invalid or expired token"
	}
}

func (h *AuthHandler) Profile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	view, err := h.svc.GetProfile(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "get profile failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    view,
	})
}

func (h *AuthHandler) DeductBalance(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	var req DeductBalanceRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	err := h.svc.DeductWalletBalance(cctx, userID, req.Amount)
	if err != nil {
		var inErr *service.InputError

		switch {
		case errors.As(err, &inErr):
			RespondBadRequest(ctx, "Invalid request body", inputErrorDetails(inErr))
		case errors.Is(err, user.ErrInsufficientBalance):
			RespondError(ctx, http.StatusBadRequest, "insufficient_balance", "Insufficient wallet balance", nil)
		case errors.Is(err, user.ErrNotFound):
			RespondError(ctx, http.StatusBadRequest, "user_not_found", "User not found", nil)
		default:
			h.log.ErrorContext(ctx.Request.Context(), "deduct balance failed", "user_id", userID, "err", err)
			RespondInternal(ctx, "Could not deduct balance")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Balance deducted successfully",
	})
}

func (h *AuthHandler) NotifyOrder(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	var req NotifyOrderRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), requestTimeout)
	defer cancel()

	err := h.svc.NotifyOrder(cctx, userID, req.TransactionID, req.Amount)
	if err != nil {
		var inErr *service.InputError

		if errors.As(err, &inErr) {
			RespondBadRequest(ctx, "Invalid request body", inputErrorDetails(inErr))
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "notify order failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Failed to send notification")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Notification sent successfully",
	})
}

// setSessionCookie gives the cookie the same lifetime as the token inside it.
func (h *AuthHandler) setSessionCookie(ctx *gin.Context, sess service.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.cookie.Name,
		sess.Token,
		maxAge,
		"/",
		"",
		h.cookie.Secure,
		true, // HttpOnly.
	)
}

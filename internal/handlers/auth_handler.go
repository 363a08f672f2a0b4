package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"fooddelivery/internal/middleware"
	"fooddelivery/internal/models"
	"fooddelivery/internal/services"
	"fooddelivery/pkg/apperr"
	"fooddelivery/pkg/logger"
)

// RefreshTokenCookie holds the refresh token set at login.
const RefreshTokenCookie = "refresh_token"

// CookieConfig controls the attributes of the auth cookies.
// Debug relaxes them for local development over plain HTTP.
type CookieConfig struct {
	Debug bool
}

func (cc CookieConfig) sameSite() string {
	if cc.Debug {
		return fiber.CookieSameSiteLaxMode
	}
	return fiber.CookieSameSiteStrictMode
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	cookies     CookieConfig
	log         *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, cookies CookieConfig, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		validate:    NewValidator(),
		cookies:     cookies,
		log:         log.With("handler", "AuthHandler"),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/refresh", h.HandleRefresh)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Get("/profile", middleware.AuthRequired(h.authService), h.HandleProfile)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,number,min=11,max=15"`
	Password string `json:"password" validate:"required,min=6"`
}

var registerMessages = fieldMessages{
	"phone.number": "Phone must contain digits only.",
	"phone.min":    "Phone number too short.",
	"phone.max":    "Phone number too long.",
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Registration failed. Check input.",
			"errors":  validationMessages(err, registerMessages),
		})
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	}
	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		if apperr.IsCode(err, apperr.CodeValidation) {
			h.log.Warn("Registration failed", "errors", apperr.FieldsOf(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": apperr.MessageOf(err),
				"errors":  apperr.FieldsOf(err),
			})
		}
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Account created successfully. Please log in to continue",
		"username": user.Username,
		"email":    user.Email,
		"phone":    user.Phone,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates the user and sets the access and refresh cookies.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	pair, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.setCookie(c, middleware.AccessTokenCookie, pair.AccessToken, h.authService.AccessTTL())
	h.setCookie(c, RefreshTokenCookie, pair.RefreshToken, h.authService.RefreshTTL())
	return c.JSON(fiber.Map{
		"message":      "Login successful",
		"access_token": pair.AccessToken,
	})
}

// HandleRefresh issues a new access cookie from the refresh cookie.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshTokenCookie)
	if refreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Refresh token not provided",
		})
	}

	access, _, err := h.authService.RefreshAccessToken(c.UserContext(), refreshToken)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.setCookie(c, middleware.AccessTokenCookie, access, h.authService.AccessTTL())
	return c.JSON(fiber.Map{
		"message":      "Access token refreshed",
		"access_token": access,
	})
}

// HandleLogout revokes the refresh token and clears both cookies.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), c.Cookies(RefreshTokenCookie)); err != nil {
		h.log.Error("Unexpected error during logout", "error", err)
	}

	h.clearCookie(c, middleware.AccessTokenCookie)
	h.clearCookie(c, RefreshTokenCookie)
	c.Set(fiber.HeaderCacheControl, "no-store, must-revalidate")
	return c.JSON(fiber.Map{"message": "Logout successful"})
}

func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	user, err := h.authService.Profile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{
		"username": user.Username,
		"email":    user.Email,
	})
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HTTPOnly: true,
		Secure:   !h.cookies.Debug,
		SameSite: h.cookies.sameSite(),
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   !h.cookies.Debug,
		SameSite: h.cookies.sameSite(),
	})
}

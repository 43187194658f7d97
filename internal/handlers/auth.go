package handlers

import (
	"context"
	"log"
	"time"

	"github.com/dimitrije/vericheck-api/internal/oauth"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/dimitrije/vericheck-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type AuthHandler struct {
	authService AuthServiceInterface
	google      oauth.Provider
	states      *oauth.StateStore
}

// NewAuthHandler builds the public auth endpoints. google may be nil when
// server-side Google sign-in is not configured.
func NewAuthHandler(authService AuthServiceInterface, google oauth.Provider, states *oauth.StateStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		google:      google,
		states:      states,
	}
}

func (h *AuthHandler) Register(c *drift.Context) {
	var req dto.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.authService.Register(ctx, services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err, "registration failed")
		return
	}

	_ = c.JSON(201, dto.UserMessageResponse{
		Message: "user registered successfully",
		User:    toUserResponse(user),
	})
}

func (h *AuthHandler) Login(c *drift.Context) {
	var req dto.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err, "login failed")
		return
	}

	_ = c.JSON(200, toAuthResponse("login successful", result))
}

// GoogleAuth accepts an identity the client already obtained from Google.
func (h *AuthHandler) GoogleAuth(c *drift.Context) {
	var req dto.GoogleAuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Email == "" || req.GoogleID == "" {
		c.BadRequest("missing google credentials")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.authService.GoogleSignIn(ctx, services.GoogleInput{
		Email:     req.Email,
		GoogleID:  req.GoogleID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err, "google authentication failed")
		return
	}

	_ = c.JSON(200, toAuthResponse("google auth successful", result))
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	if h.google == nil {
		c.NotFound("google sign-in is not configured")
		return
	}

	state, err := h.states.Issue()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	_ = c.JSON(200, dto.ConsentURLResponse{
		URL: h.google.GetConsentURL(state),
	})
}

// Callback completes the server-side Google flow and answers with a session token.
func (h *AuthHandler) Callback(c *drift.Context) {
	if h.google == nil {
		c.NotFound("google sign-in is not configured")
		return
	}

	if !h.states.Consume(c.QueryParam("state")) {
		c.BadRequest("invalid or expired state")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		c.BadRequest("missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	info, err := h.google.ExchangeCode(ctx, code)
	if err != nil {
		log.Printf("google: code exchange failed: %v", err)
		c.Unauthorized("failed to exchange code")
		return
	}

	result, err := h.authService.GoogleSignIn(ctx, services.GoogleInput{
		Email:     info.Email,
		GoogleID:  info.ID,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
	})
	if err != nil {
		respondError(c, err, "google authentication failed")
		return
	}

	_ = c.JSON(200, toAuthResponse("google auth successful", result))
}

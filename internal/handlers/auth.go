package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/divyandj/IMAGE-Hackathon/internal/middleware"
	"github.com/divyandj/IMAGE-Hackathon/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"omitempty,max=256"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"omitempty,max=256"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	ID       string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Credits  int    `json:"credits"`
	Plan     string `json:"plan"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, "email and username are required") {
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: result.Token})
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "email is required") {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: result.Token})
}

func (h HandlerSet) Profile(c *gin.Context) {
	user, err := h.auth.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Credits:  user.Credits,
		Plan:     user.Plan,
	})
}

package handler

import (
	"net/http"

	"anoa.com/storerating/internal/modules/user/dto"
	userService "anoa.com/storerating/internal/modules/user/service"
	"anoa.com/storerating/pkg/apperror"
	"anoa.com/storerating/pkg/response"
	"anoa.com/storerating/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService userService.AuthService
}

func NewAuthHandler(authService userService.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input dto.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.authService.Register(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     res.Token,
		"tokenType": res.TokenType,
		"expiresAt": res.ExpiresAt,
		"user":      res.User,
	})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": res})
}

func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.UpdatePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	if err := h.authService.UpdatePassword(c.Request.Context(), userID, input); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func badRequest(err error) error {
	return apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput)
}

package handler

import (
	"net/http"

	"anoa.com/storerating/internal/modules/admin/dto"
	adminService "anoa.com/storerating/internal/modules/admin/service"
	"anoa.com/storerating/pkg/apperror"
	commonDto "anoa.com/storerating/pkg/dto"
	"anoa.com/storerating/pkg/response"
	"anoa.com/storerating/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	adminService adminService.AdminService
}

func NewAdminHandler(adminService adminService.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var input dto.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.adminService.CreateUser(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    res,
	})
}

func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	var q dto.UserListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.adminService.ListUsers(c.Request.Context(), q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	res, err := h.adminService.GetUser(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": res})
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	var input dto.UpdateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.adminService.UpdateUser(c.Request.Context(), id, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    res,
	})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actorID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), actorID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func badRequest(err error) error {
	return apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput)
}

func bindID(c *gin.Context) (uuid.UUID, bool) {
	var uri commonDto.IDUri
	if err := c.ShouldBindUri(&uri); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "Invalid id", apperror.ErrInvalidInput))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "Invalid id", apperror.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

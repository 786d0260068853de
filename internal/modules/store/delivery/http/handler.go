package handler

import (
	"net/http"

	"anoa.com/storerating/internal/modules/store/dto"
	storeService "anoa.com/storerating/internal/modules/store/service"
	"anoa.com/storerating/pkg/apperror"
	commonDto "anoa.com/storerating/pkg/dto"
	"anoa.com/storerating/pkg/response"
	"anoa.com/storerating/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StoreHandler struct {
	storeService storeService.StoreService
}

func NewStoreHandler(storeService storeService.StoreService) *StoreHandler {
	return &StoreHandler{storeService: storeService}
}

func (h *StoreHandler) ListStores(c *gin.Context) {
	var q dto.StoreListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.storeService.List(c.Request.Context(), q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *StoreHandler) SearchStores(c *gin.Context) {
	var q dto.StoreListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}
	if q.Search == "" {
		q.Search = c.Query("q")
	}

	res, err := h.storeService.Search(c.Request.Context(), q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *StoreHandler) GetStore(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	// anonymous callers simply get no userRating
	var callerID *uuid.UUID
	if uid, err := response.GetUserID(c); err == nil {
		callerID = &uid
	}

	res, err := h.storeService.Get(c.Request.Context(), id, callerID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"store": res})
}

func (h *StoreHandler) CreateStore(c *gin.Context) {
	var input dto.CreateStoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.storeService.Create(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Store created successfully",
		"store":   res,
	})
}

func (h *StoreHandler) UpdateStore(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	var input dto.UpdateStoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	res, err := h.storeService.Update(c.Request.Context(), id, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Store updated successfully",
		"store":   res,
	})
}

func (h *StoreHandler) DeleteStore(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.storeService.Delete(c.Request.Context(), id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Store deleted successfully"})
}

// OwnedStores is the store owner dashboard: every store the caller owns with its current aggregate.
func (h *StoreHandler) OwnedStores(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	stores, err := h.storeService.Owned(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stores": stores})
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

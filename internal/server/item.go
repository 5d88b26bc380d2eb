package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	itemdomain "github.com/smallbiznis/billdesk/internal/item/domain"
)

type createItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Price       *int64  `json:"price" binding:"required,min=0"`
}

type updateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price" binding:"omitempty,min=0"`
}

func (s *Server) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.itemSvc.Create(c.Request.Context(), itemdomain.CreateRequest{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       *req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListItems(c *gin.Context) {
	var query struct {
		Page   int    `form:"page" binding:"omitempty,min=1"`
		Limit  int    `form:"limit" binding:"omitempty,min=1"`
		Search string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.itemSvc.List(c.Request.Context(), itemdomain.ListRequest{
		Search: strings.TrimSpace(query.Search),
		Page:   query.Page,
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetItemByID(c *gin.Context) {
	resp, err := s.itemSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	resp, err := s.itemSvc.Update(c.Request.Context(), itemdomain.UpdateRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Name:        trimmedPtr(req.Name),
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteItem(c *gin.Context) {
	if err := s.itemSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isItemValidationError(err error) bool {
	switch {
	case errors.Is(err, itemdomain.ErrInvalidName),
		errors.Is(err, itemdomain.ErrInvalidPrice):
		return true
	default:
		return false
	}
}

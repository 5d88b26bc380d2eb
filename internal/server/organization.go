package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billdesk/internal/authorization"
	organizationdomain "github.com/smallbiznis/billdesk/internal/organization/domain"
	"github.com/smallbiznis/billdesk/internal/orgcontext"
)

type meResponse struct {
	UserID      string   `json:"user_id"`
	OrgID       string   `json:"org_id,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Me returns the caller and the permissions its role grants.
func (s *Server) Me(c *gin.Context) {
	identity, ok := orgcontext.IdentityFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	perms := authorization.Permissions(identity.Role)
	resp := meResponse{
		UserID:      identity.UserID.String(),
		Role:        identity.Role,
		Permissions: make([]string, 0, len(perms)),
	}
	if identity.OrgID != 0 {
		resp.OrgID = identity.OrgID.String()
	}
	for _, perm := range perms {
		resp.Permissions = append(resp.Permissions, perm.String())
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateOrganizationRequest struct {
	Name     string  `json:"name" binding:"required"`
	Currency *string `json:"currency" binding:"omitempty,len=3,alpha"`
}

func (s *Server) GetOrganization(c *gin.Context) {
	org, err := s.organizationSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	org, err := s.organizationSvc.Update(c.Request.Context(), organizationdomain.UpdateOrganizationRequest{
		Name:     strings.TrimSpace(req.Name),
		Currency: trimmedPtr(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

func isOrganizationValidationError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidCurrency):
		return true
	default:
		return false
	}
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/gatherly/gatherly/internal/membership/domain"
)

type sendInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) SendInvitation(c *gin.Context) {
	orgID, ok := s.orgIDFromParam(c)
	if !ok {
		return
	}

	var req sendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	result, err := s.membershipSvc.SendInvitation(c.Request.Context(), orgID, req.Email, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// A failed dispatch is reported alongside the token, which stays valid.
	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token.ID,
		"delivered": result.Delivered(),
	})
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	orgID, ok := s.orgIDFromParam(c)
	if !ok {
		return
	}
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	tokenID := strings.TrimSpace(c.Query("token"))
	if tokenID == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	if err := s.membershipSvc.AcceptInvitation(c.Request.Context(), orgID, accountID, tokenID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveAccount(c *gin.Context) {
	orgID, ok := s.orgIDFromParam(c)
	if !ok {
		return
	}
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	if err := s.membershipSvc.RemoveAccount(c.Request.Context(), orgID, accountID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) LeaveOrganization(c *gin.Context) {
	orgID, ok := s.orgIDFromParam(c)
	if !ok {
		return
	}
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	if err := s.membershipSvc.LeaveOrganization(c.Request.Context(), orgID, accountID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type changeRoleRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) ChangeRole(c *gin.Context) {
	orgID, ok := s.orgIDFromParam(c)
	if !ok {
		return
	}
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := membershipdomain.ParseRole(req.From)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := membershipdomain.ParseRole(req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.membershipSvc.ChangeRole(c.Request.Context(), orgID, accountID, from, to); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListOrganizationAccounts(c *gin.Context) {
	orgID, ok := s.orgIDFromParam(c)
	if !ok {
		return
	}

	accounts, err := s.membershipSvc.ListAccounts(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

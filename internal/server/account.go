package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/gatherly/gatherly/internal/account/domain"
)

type createAccountRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Secret    string `json:"secret"`
	Icon      string `json:"icon"`
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Create(c.Request.Context(), accountdomain.CreateAccountRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Secret:    req.Secret,
		Icon:      req.Icon,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (s *Server) GetAccount(c *gin.Context) {
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	account, err := s.accountSvc.GetByID(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) UpdateAccount(c *gin.Context) {
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	var patch accountdomain.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Update(c.Request.Context(), accountID, patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) DeleteAccount(c *gin.Context) {
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	if err := s.accountSvc.Delete(c.Request.Context(), accountID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ManagedOrganizations(c *gin.Context) {
	accountID, ok := s.accountIDFromParam(c)
	if !ok {
		return
	}

	orgs, err := s.membershipSvc.ManagedOrganizations(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orgs})
}

func (s *Server) accountIDFromParam(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("accountId"))
	if raw == "" {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
		return 0, false
	}
	accountID, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
		return 0, false
	}
	return accountID, true
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Azizbek961/crm-edu-crm/internal/middleware"
	"github.com/Azizbek961/crm-edu-crm/internal/models"
	"github.com/Azizbek961/crm-edu-crm/internal/service"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func scopeFromContext(c *gin.Context, scopes *service.ScopeService) (models.Scope, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Scope{}, appErrors.ErrUnauthorized
	}
	return scopes.Resolve(c.Request.Context(), claims)
}

func auditMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-events-api/internal/middleware"
	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
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

func malformedBody(err error) error {
	e := appErrors.Clone(appErrors.ErrMalformedInput, "request body must be a valid JSON object")
	e.Err = err
	return e
}

func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

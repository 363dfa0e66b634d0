// Package response renders the envelope every endpoint returns: data on
// success, a typed error on failure, optional pagination and meta.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/models"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

// Envelope is the wire shape of every JSON response.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Responses carry roster and schedule state that changes out from under
// caches, so every write marks the body non-cacheable.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON writes a success envelope. Pagination may be nil; at most one
// meta map is honored.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	env := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		env.Meta = meta[0]
	}
	c.JSON(status, env)
}

// OK writes a 200 envelope without pagination.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, nil)
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error coerces err through appErrors.FromError and writes the mapped
// status with the error envelope.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent writes an empty 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/resolver"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	messageCodeExists     = "Code already exists"
	messageCodeGeneration = "Failed to generate unique code"
	messageInvalidJSON    = "Invalid JSON format"
	messageNotFound       = "Not found"
)

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// handleError обрабатывает ошибки и возвращает соответствующие HTTP коды.
// Детали внутренних ошибок клиенту не отдаются.
func handleError(c *gin.Context, err error) {
	if validationErr := apperrors.GetValidationError(err); validationErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrLinkNotFound):
		writeError(c, http.StatusNotFound, resolver.MessageNotFound)
	case errors.Is(err, apperrors.ErrCodeExists):
		writeError(c, http.StatusConflict, messageCodeExists)
	case apperrors.IsStoreUnavailable(err):
		log.Printf("Store unavailable: %v", err)
		writeError(c, http.StatusServiceUnavailable, resolver.MessageStoreUnavailable)
	case errors.Is(err, apperrors.ErrCodeGeneration):
		log.Printf("Code generation failed: %v", err)
		writeError(c, http.StatusInternalServerError, messageCodeGeneration)
	default:
		log.Printf("Unexpected error: %v", err)
		writeError(c, http.StatusInternalServerError, resolver.MessageInternal)
	}
}

// handleBindError отличает битый JSON от не прошедших binding полей
func handleBindError(c *gin.Context, err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, io.EOF) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		writeError(c, http.StatusBadRequest, messageInvalidJSON)
		return
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := fieldErrs[0]
		if field.Field() == "URL" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required", "field": "url"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": field.Error(), "field": field.Field()})
		return
	}

	writeError(c, http.StatusBadRequest, messageInvalidJSON)
}

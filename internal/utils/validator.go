package utils

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/Kosench/shortlink/internal/errors"
)

const maxURLLength = 2048

// IsValidShortCode reports whether s is 6-8 ASCII letters or digits.
// Anything else is never looked up in the store.
func IsValidShortCode(s string) bool {
	if len(s) < MinShortCodeLength || len(s) > MaxShortCodeLength {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		isDigit := c >= '0' && c <= '9'
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isDigit && !isLetter {
			return false
		}
	}

	return true
}

func ValidateShortCode(code string) error {
	if !IsValidShortCode(code) {
		return apperrors.NewValidationError("code", "Code must be 6-8 alphanumeric characters")
	}
	return nil
}

func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return apperrors.NewValidationError("url", "URL cannot be empty")
	}

	if len(rawURL) > maxURLLength {
		return apperrors.NewValidationError("url", fmt.Sprintf("URL is too long (max %d characters)", maxURLLength))
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("url", "Please enter a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.NewValidationError("url", "URL must start with http:// or https://")
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("url", "URL must contain a valid host")
	}

	return nil
}

func SanitizeInput(input string) string {
	// Удаляем управляющие символы и обрезаем пробелы
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, input)

	return strings.TrimSpace(result)
}

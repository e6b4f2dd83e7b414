package auth

import (
	"fmt"
	"strings"
)

const BearerScheme = "Bearer"

var (
	ErrMissingAuthorization   = fmt.Errorf("%w: no authorization header", ErrInvalidToken)
	ErrMalformedAuthorization = fmt.Errorf("%w: authorization header is not \"Bearer <token>\"", ErrInvalidToken)
)

// ParseBearer extracts the token from an Authorization value of exactly the
// form "Bearer <token>": one space, case-sensitive scheme, nothing else.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.Split(header, " ")

	if len(parts) != 2 || parts[0] != BearerScheme || parts[1] == "" {
		return "", ErrMalformedAuthorization
	}

	return parts[1], nil
}

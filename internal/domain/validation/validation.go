// Package validation holds the typed, validated inputs of every service
// operation and the shared validator instance that checks them.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// AddUserInput is the input of AddUser.
type AddUserInput struct {
	Username  string `validate:"required,notblank,max=50"`
	Score     int64  `validate:"min=0"`
	AvatarURL string `validate:"omitempty,url,max=2048"`
}

// UpdateScoreInput is the input of UpdateScore.
type UpdateScoreInput struct {
	ID    int64 `validate:"gt=0"`
	Score int64 `validate:"min=0"`
}

// UserIDInput identifies a single user.
type UserIDInput struct {
	ID int64 `validate:"gt=0"`
}

// TopNInput is the input of TopN.
type TopNInput struct {
	Limit int `validate:"gt=0"`
}

// NeighborsInput is the input of Neighbors.
type NeighborsInput struct {
	ID     int64 `validate:"gt=0"`
	Radius int   `validate:"min=0"`
}

var validate *validator.Validate //nolint:gochecknoglobals // shared validator caches struct metadata

func init() { //nolint:gochecknoinits // register custom rules once
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("notblank", notBlank)
}

// notBlank rejects strings made only of whitespace.
func notBlank(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

// Struct validates in and returns one message per failing field, or nil.
func Struct(in any) []string {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s must not be empty", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func fieldName(field string) string {
	names := map[string]string{
		"Username":  "username",
		"Score":     "score",
		"AvatarURL": "avatar_url",
		"ID":        "id",
		"Limit":     "limit",
		"Radius":    "radius",
	}
	if name, ok := names[field]; ok {
		return name
	}
	return field
}

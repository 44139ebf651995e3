// Package validation checks user input before it reaches the chain or the
// realtime server.
//
// Struct rules use go-playground/validator tags plus the custom tags
// ethaddr, username, roomname and nohtml. Failures are returned as
// FieldErrors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// Limits applied by the input structs
const (
	MaxContentLength     = 1000
	MaxDescriptionLength = 500
	MaxBioLength         = 280
	MinRoomNameLength    = 3
	MaxRoomNameLength    = 50
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// MessageInput is a chat message about to be sent
type MessageInput struct {
	RoomID  string `json:"roomId" validate:"required,max=78"`
	Content string `json:"content" validate:"required,max=1000"`
	Sender  string `json:"sender,omitempty" validate:"omitempty,ethaddr"`
}

// RoomInput creates a room
type RoomInput struct {
	Name        string `json:"name" validate:"required,roomname"`
	Description string `json:"description,omitempty" validate:"max=500,nohtml"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
}

// RoomSettingsInput updates an existing room
type RoomSettingsInput struct {
	Name        string `json:"name" validate:"required,roomname"`
	Description string `json:"description" validate:"max=500,nohtml"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
}

// ProfileInput updates the user's profile
type ProfileInput struct {
	Address   string `json:"address" validate:"required,ethaddr"`
	Name      string `json:"name" validate:"required,username"`
	Bio       string `json:"bio,omitempty" validate:"max=280,nohtml"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	AvatarURL string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

// FieldError is one failed rule
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// FieldErrors is returned by Struct when any rule fails
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields maps field name to message
func (fe FieldErrors) Fields() map[string]string {
	out := make(map[string]string, len(fe))
	for _, e := range fe {
		out[e.Field] = e.Message
	}
	return out
}

// Validator wraps a configured validator.Validate. It is safe for
// concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom tags registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	must(v.RegisterValidation("ethaddr", func(fl validator.FieldLevel) bool {
		return IsAddress(fl.Field().String())
	}))
	must(v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
		return isRoomName(fl.Field().String())
	}))
	must(v.RegisterValidation("nohtml", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "<>")
	}))

	return &Validator{v: v}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s and returns FieldErrors on failure
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// Var validates a single value against tag
func (v *Validator) Var(field any, tag string) error {
	return v.v.Var(field, tag)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "ethaddr":
		return field + " must be a valid wallet address"
	case "username":
		return field + " must be 3-20 letters, digits or underscores"
	case "roomname":
		return fmt.Sprintf("%s must be %d-%d printable characters", field, MinRoomNameLength, MaxRoomNameLength)
	case "nohtml":
		return field + " must not contain HTML"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// IsAddress reports whether s is a 0x-prefixed 20 byte hex address
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

func isRoomName(s string) bool {
	if strings.TrimSpace(s) != s {
		return false
	}
	n := utf8.RuneCountInString(s)
	if n < MinRoomNameLength || n > MaxRoomNameLength {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) || r == '<' || r == '>' {
			return false
		}
	}
	return true
}

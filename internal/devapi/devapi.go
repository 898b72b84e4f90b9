// Package devapi is a development stand-in for the registration backend.
//
// It accepts POST /register with a JSON {"username","password"} body,
// stores the user in SQLite with a bcrypt password hash and answers
// 201 {"msg":"User created successfully"}. Every rejected request is a 400 with a
// {"msg": ...} body, which is the contract the form's client expects.
package devapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/pthm/hxsignup/lib/client"
	"github.com/pthm/hxsignup/lib/schema"
)

// MsgCreated is the success message.
const MsgCreated = "User created successfully"

// MsgUsernameTaken is returned for duplicate usernames.
const MsgUsernameTaken = "username taken"

// MsgPasswordTooLong is returned when the password exceeds MaxPasswordBytes
// once encoded, even if it is within the character limit.
const MsgPasswordTooLong = "Password must be at most 72 bytes long"

// RegisterRequest is the bound request body.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=5,max=80"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Message is the response body.
type Message struct {
	Msg string `json:"msg"`
}

// CustomValidator wraps go-playground validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the echo.Validator used by the dev API.
func NewValidator() echo.Validator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator. The first failing field becomes the
// response message, worded like the form's own inline errors.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, fieldMessage(verrs[0]))
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "Username" && fe.Tag() != "max":
		return schema.MsgUsernameTooShort
	case fe.Field() == "Password" && fe.Tag() != "max":
		return schema.MsgPasswordTooShort
	case fe.Field() == "Username":
		return "Username must be at most 80 characters long"
	case fe.Field() == "Password":
		return "Password must be at most 72 characters long"
	}
	return fe.Error()
}

// Server serves the dev API.
type Server struct {
	users *UserStore
	log   *slog.Logger
}

// NewServer creates a Server over users.
func NewServer(users *UserStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{users: users, log: log.With("component", "devapi")}
}

// Routes registers the API on e. e.Validator is set when empty.
func (s *Server) Routes(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = NewValidator()
	}
	e.POST(client.RegisterPath, s.handleRegister)
}

func (s *Server) handleRegister(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, Message{Msg: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return c.JSON(he.Code, Message{Msg: messageOf(he)})
		}
		return c.JSON(http.StatusBadRequest, Message{Msg: err.Error()})
	}

	ctx := c.Request().Context()
	u, err := s.users.Create(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return c.JSON(http.StatusBadRequest, Message{Msg: MsgPasswordTooLong})
	case errors.Is(err, ErrUsernameTaken):
		s.log.Info("duplicate registration", "username", req.Username)
		return c.JSON(http.StatusBadRequest, Message{Msg: MsgUsernameTaken})
	case err != nil:
		s.log.Error("create user failed", "username", req.Username, "err", err)
		return c.JSON(http.StatusInternalServerError, Message{Msg: "internal error"})
	}

	s.log.Info("user created", "username", u.Username, "user_id", u.ID)
	return c.JSON(http.StatusCreated, Message{Msg: MsgCreated})
}

func messageOf(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return http.StatusText(he.Code)
}

package ctrlauth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"go.senan.xyz/crate/auth"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/server/ctrlbase"
	"go.senan.xyz/crate/validation"
)

const defaultNext = "/dashboard"

type userResponse struct {
	User *db.User `json:"user"`
}

func (c *Controller) ServeSignUp(w http.ResponseWriter, r *http.Request) *ctrlbase.Response {
	var creds auth.Credentials
	if err := ctrlbase.DecodeBody(r, &creds); err != nil {
		return ctrlbase.Error(http.StatusBadRequest, "Invalid request body")
	}
	user, err := c.auth.SignUp(creds)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return ctrlbase.Error(http.StatusConflict, "An account with that email already exists")
	case errors.Is(err, validation.ErrInvalid):
		return ctrlbase.Error(http.StatusBadRequest, "%v", err)
	case err != nil:
		log.Printf("error signing up: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Internal server error")
	}
	c.startSession(w, r, user)
	return ctrlbase.JSON(userResponse{User: user})
}

func (c *Controller) ServeLogin(w http.ResponseWriter, r *http.Request) *ctrlbase.Response {
	var creds auth.Credentials
	if err := ctrlbase.DecodeBody(r, &creds); err != nil {
		return ctrlbase.Error(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return ctrlbase.Error(http.StatusBadRequest, "Email and password are required")
	}
	user, err := c.auth.SignIn(creds.Email, creds.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ctrlbase.Error(http.StatusUnauthorized, "Invalid email or password")
	case err != nil:
		log.Printf("error signing in: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Internal server error")
	}
	c.startSession(w, r, user)
	return ctrlbase.JSON(userResponse{User: user})
}

func (c *Controller) ServeLogout(w http.ResponseWriter, r *http.Request) *ctrlbase.Response {
	session := ctrlbase.Session(r)
	ctrlbase.ExpireSession(session)
	ctrlbase.SessLogSave(session, w, r)
	return ctrlbase.Redirect("/")
}

// ServeCallback sends a signed in user on to next, and everyone else back to
// the login page
func (c *Controller) ServeCallback(r *http.Request) *ctrlbase.Response {
	if ctrlbase.User(r) == nil {
		return ctrlbase.Redirect("/auth/login?error=auth_callback_error")
	}
	next := r.URL.Query().Get("next")
	if !isRelative(next) {
		next = defaultNext
	}
	return ctrlbase.Redirect(next)
}

type changePasswordRequest struct {
	PasswordOne string `mapstructure:"password_one"`
	PasswordTwo string `mapstructure:"password_two"`
}

func (c *Controller) ServeChangePassword(r *http.Request) *ctrlbase.Response {
	var req changePasswordRequest
	if err := ctrlbase.DecodeBody(r, &req); err != nil {
		return ctrlbase.Error(http.StatusBadRequest, "Invalid request body")
	}
	user := ctrlbase.User(r)
	err := c.auth.ChangePassword(user, req.PasswordOne, req.PasswordTwo)
	switch {
	case errors.Is(err, auth.ErrPasswordsNotSame):
		return ctrlbase.Error(http.StatusBadRequest, "Passwords do not match")
	case errors.Is(err, validation.ErrInvalid):
		return ctrlbase.Error(http.StatusBadRequest, "%v", err)
	case err != nil:
		log.Printf("error changing password: %v", err)
		return ctrlbase.Error(http.StatusInternalServerError, "Internal server error")
	}
	return ctrlbase.JSON(struct {
		Message string `json:"message"`
	}{"Password updated successfully"})
}

func (c *Controller) startSession(w http.ResponseWriter, r *http.Request, user *db.User) {
	// a signed in session never keeps the id it had before
	if err := c.RenewSession(r); err != nil {
		log.Printf("error renewing session: %v", err)
	}
	// put the user id into the session. future requests are wrapped with
	// WithUser() which will get the id from the session and put the row
	// into the request context
	session := ctrlbase.Session(r)
	session.Values["user"] = user.ID
	ctrlbase.SessLogSave(session, w, r)
}

// isRelative allows paths on this host only, so that next can't send users
// elsewhere
func isRelative(next string) bool {
	return strings.HasPrefix(next, "/") &&
		!strings.HasPrefix(next, "//") &&
		!strings.Contains(next, `\`)
}

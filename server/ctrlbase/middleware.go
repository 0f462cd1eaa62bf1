package ctrlbase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	gcontext "github.com/gorilla/context"
	"github.com/gorilla/sessions"
	"github.com/jinzhu/gorm"
)

func (c *Controller) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer gcontext.Clear(r)

		// on a bad cookie we still get a fresh session
		session, err := c.Sessions.Get(r, SessionName)
		if err != nil {
			log.Printf("error getting session, starting a new one: %v", err)
		}
		ctx := context.WithValue(r.Context(), CtxSession, session)
		ctx = context.WithValue(ctx, CtxSessionRequest, r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUser puts the session's user row into the request context if there is
// one. requests without a user pass through
func (c *Controller) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := Session(r)
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := session.Values["user"].(string)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		user, err := c.DB.GetUserByID(userID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// the user id in the client's session no longer relates to a
			// user in the database (maybe the user was deleted)
			ExpireSession(session)
			SessLogSave(session, w, r)
			next.ServeHTTP(w, r)
			return
		case err != nil:
			log.Printf("error getting session user: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			return
		}
		withUser := context.WithValue(r.Context(), CtxUser, user)
		next.ServeHTTP(w, r.WithContext(withUser))
	})
}

// WithRequireUser responds 401 when WithUser found no user
func (c *Controller) WithRequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if User(r) == nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExpireSession marks the session to be deleted on the next save
func ExpireSession(session *sessions.Session) {
	// the options pointer may be shared with the store's defaults
	opts := sessions.Options{}
	if session.Options != nil {
		opts = *session.Options
	}
	opts.MaxAge = -1
	session.Options = &opts
}

func SessLogSave(s *sessions.Session, w http.ResponseWriter, r *http.Request) {
	if err := s.Save(sessionRequest(r), w); err != nil {
		log.Printf("error saving session: %v\n", err)
	}
}

// RenewSession deletes the request's stored session and empties it. the next
// save stores it under a new id
func (c *Controller) RenewSession(r *http.Request) error {
	session := Session(r)
	if session == nil {
		return nil
	}
	if session.ID != "" {
		err := c.DB.
			Exec("DELETE FROM "+SessionTable+" WHERE id=?", session.ID).
			Error
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	gcontext.Clear(sessionRequest(r))

	// a session from a request without cookies has the store's default
	// options, the old ones may have been expired
	fresh, err := c.Sessions.New(&http.Request{Header: http.Header{}}, SessionName)
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	session.ID = ""
	session.IsNew = true
	session.Options = fresh.Options
	for k := range session.Values {
		delete(session.Values, k)
	}
	return nil
}

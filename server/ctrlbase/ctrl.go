// Package ctrlbase holds what the http controllers share: the database,
// blob store, sessions, json responses, and the middleware around them
package ctrlbase

import (
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/sessions"

	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/handlerutil"
)

type CtxKey int

const (
	CtxUser CtxKey = iota
	CtxSession
	// the request the session was loaded with. gormstore keys its row on
	// that pointer, so saves must use it too
	CtxSessionRequest
)

const (
	SessionName = "crate"
	// gormstore's default table
	SessionTable = "sessions"
)

type Controller struct {
	DB          *db.DB
	Blobs       *blob.Store
	Sessions    sessions.Store
	ProxyPrefix string
	// PublicURL is the scheme and host clients reach us on. when empty it is
	// guessed from each request
	PublicURL string
}

// Path returns a URL path with the proxy prefix included
func (c *Controller) Path(rel string) string {
	return path.Join("/", c.ProxyPrefix, rel)
}

// BaseURL returns the absolute url of the app root, without a trailing slash
func (c *Controller) BaseURL(r *http.Request) string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	return handlerutil.BaseURL(r) + strings.TrimSuffix(c.Path("/"), "/")
}

// ObjectURL returns the public url of an object in the blob store
func (c *Controller) ObjectURL(r *http.Request, bucket, key string) string {
	return blob.PublicURL(c.BaseURL(r), bucket, key)
}

// User returns the signed in user of the request, or nil
func User(r *http.Request) *db.User {
	user, _ := r.Context().Value(CtxUser).(*db.User)
	return user
}

// Session returns the session WithSession attached to the request, or nil
func Session(r *http.Request) *sessions.Session {
	session, _ := r.Context().Value(CtxSession).(*sessions.Session)
	return session
}

func sessionRequest(r *http.Request) *http.Request {
	if orig, ok := r.Context().Value(CtxSessionRequest).(*http.Request); ok {
		return orig
	}
	return r
}

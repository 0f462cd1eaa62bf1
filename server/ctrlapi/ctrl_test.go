package ctrlapi_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	jd "github.com/josephburnett/jd/lib"
	"github.com/sentriz/gormstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.senan.xyz/crate/auth"
	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/imagecache"
	"go.senan.xyz/crate/musicbrainz"
	"go.senan.xyz/crate/server/ctrlapi"
	"go.senan.xyz/crate/server/ctrlauth"
	"go.senan.xyz/crate/server/ctrlbase"
)

const testBaseURL = "https://crate.example.com"

var (
	testDataDir   = "testdata"
	testCamelExpr = regexp.MustCompile("([a-z0-9])([A-Z])")
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type harness struct {
	t       *testing.T
	db      *db.DB
	blobs   *blob.Store
	router  *mux.Router
	cookies []*http.Cookie
}

func newHarness(t *testing.T, musicBrainz *musicbrainz.Client) *harness {
	t.Helper()

	dbc, err := db.NewMock()
	require.NoError(t, err)
	t.Cleanup(func() { dbc.Close() })
	require.NoError(t, dbc.Migrate())

	blobs, err := blob.NewStore(t.TempDir(), blob.BucketAlbumArt, blob.BucketProfilePhotos)
	require.NoError(t, err)
	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	base := &ctrlbase.Controller{
		DB:        dbc,
		Blobs:     blobs,
		Sessions:  gormstore.New(dbc.DB, securecookie.GenerateRandomKey(32)),
		PublicURL: testBaseURL,
	}
	router := mux.NewRouter()
	ctrlauth.AddRoutes(ctrlauth.New(base, auth.NewCost(dbc, bcrypt.MinCost)), router.PathPrefix("/auth").Subrouter())
	ctrlapi.AddRoutes(ctrlapi.New(base, musicBrainz, cache), router.PathPrefix("/api").Subrouter())

	return &harness{t: t, db: dbc, blobs: blobs, router: router}
}

func (h *harness) signUp(email string) *db.User {
	h.t.Helper()

	h.cookies = nil
	form := url.Values{"email": {email}, "password": {"hunter22"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := h.serve(req)
	require.Equal(h.t, http.StatusOK, rr.Code, rr.Body.String())

	user, err := h.db.GetUserByEmail(email)
	require.NoError(h.t, err)
	return user
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()

	for _, cookie := range h.cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	if cookies := rr.Result().Cookies(); len(cookies) > 0 {
		h.cookies = cookies
	}
	return rr
}

func (h *harness) do(method, target string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.serve(httptest.NewRequest(method, target, nil))
}

func (h *harness) doJSON(method, target, body string) *httptest.ResponseRecorder {
	h.t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return h.serve(req)
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func (h *harness) doMultipart(method, target string, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	h.t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.name+`"`)
		header.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(h.t, err)
		_, err = part.Write(file.data)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.serve(req)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func makeGoldenPath(test string) string {
	// convert test name to golden file path
	snake := testCamelExpr.ReplaceAllString(test, "${1}_${2}")
	lower := strings.ToLower(snake)
	relPath := strings.ReplaceAll(lower, "/", "_")
	return path.Join(testDataDir, relPath)
}

func requireGolden(t *testing.T, name, body string) {
	t.Helper()

	goldenPath := makeGoldenPath(name)
	if goldenRegen := os.Getenv("CRATE_REGEN"); goldenRegen == "*" || goldenRegen == name {
		_ = os.WriteFile(goldenPath, []byte(body), 0o600)
		t.Logf("golden file %q regenerated for %s", goldenPath, name)
		return
	}

	expected, err := jd.ReadJsonFile(goldenPath)
	if err != nil {
		t.Fatalf("parsing expected: %v", err)
	}
	actual, err := jd.ReadJsonString(body)
	if err != nil {
		t.Fatalf("parsing actual: %v", err)
	}
	if diff := expected.Diff(actual); len(diff) > 0 {
		t.Errorf("\u001b[31;1mhandler json differs from test json\u001b[0m")
		t.Errorf("\u001b[33;1mif you want to regenerate it, re-run with CRATE_REGEN=%s\u001b[0m\n", name)
		t.Error(diff.Render())
	}
}

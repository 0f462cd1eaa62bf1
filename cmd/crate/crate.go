//nolint:lll,forbidigo
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff"
	"github.com/sentriz/gormstore"

	"go.senan.xyz/crate"
	"go.senan.xyz/crate/auth"
	"go.senan.xyz/crate/blob"
	"go.senan.xyz/crate/db"
	"go.senan.xyz/crate/imagecache"
	"go.senan.xyz/crate/musicbrainz"
	"go.senan.xyz/crate/server/ctrlapi"
	"go.senan.xyz/crate/server/ctrlauth"
	"go.senan.xyz/crate/server/ctrlbase"
	"go.senan.xyz/crate/server/ctrlstorage"
)

func main() {
	set := flag.NewFlagSet(crate.Name, flag.ExitOnError)
	confListenAddr := set.String("listen-addr", "0.0.0.0:4848", "listen address (optional)")

	confTLSCert := set.String("tls-cert", "", "path to TLS certificate (optional)")
	confTLSKey := set.String("tls-key", "", "path to TLS private key (optional)")

	confDBPath := set.String("db-path", "crate.db", "path to database (optional)")
	confDataPath := set.String("data-path", "", "path to store uploaded album art and profile photos")
	confCachePath := set.String("cache-path", "", "path to cache scaled images")

	confPublicURL := set.String("public-url", "", "url clients reach crate on, used for object urls. eg 'https://crate.example.com' (optional)")
	confProxyPrefix := set.String("proxy-prefix", "", "url path prefix to use if behind proxy. eg '/crate' (optional)")
	confHTTPLog := set.Bool("http-log", true, "http request logging (optional)")

	confMusicBrainzUserAgent := set.String("musicbrainz-user-agent", fmt.Sprintf("%s/%s ( https://go.senan.xyz/crate )", crate.Name, crate.Version), "user agent sent to musicbrainz, should include contact details (optional)")

	confShowVersion := set.Bool("version", false, "show crate version")
	_ = set.String("config-path", "", "path to config (optional)")

	if err := ff.Parse(set, os.Args[1:],
		ff.WithConfigFileFlag("config-path"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(crate.NameUpper),
	); err != nil {
		log.Fatalf("error parsing args: %v\n", err)
	}

	if *confShowVersion {
		fmt.Printf("v%s\n", crate.Version)
		os.Exit(0)
	}

	var err error
	if *confDataPath, err = validatePath(*confDataPath); err != nil {
		log.Fatalf("checking data directory: %v", err)
	}
	if *confCachePath, err = validatePath(*confCachePath); err != nil {
		log.Fatalf("checking cache directory: %v", err)
	}

	log.Printf("starting %s v%s", crate.Name, crate.Version)
	log.Printf("provided config\n")
	set.VisitAll(func(f *flag.Flag) {
		value := f.Value.String()
		if f.Name == "tls-key" && value != "" {
			value = "[redacted]"
		}
		log.Printf("    %-25s %s\n", f.Name, value)
	})

	dbc, err := db.New(*confDBPath, db.DefaultOptions())
	if err != nil {
		log.Fatalf("error opening database: %v\n", err)
	}
	defer dbc.Close()

	if err := dbc.Migrate(); err != nil {
		log.Panicf("error migrating database: %v\n", err)
	}

	blobs, err := blob.NewStore(filepath.Join(*confDataPath, "storage"), blob.BucketAlbumArt, blob.BucketProfilePhotos)
	if err != nil {
		log.Panicf("error creating blob store: %v\n", err)
	}
	imageCache, err := imagecache.New(filepath.Join(*confCachePath, "images"))
	if err != nil {
		log.Panicf("error creating image cache: %v\n", err)
	}

	sessKey, err := dbc.GetSetting(db.SessionKey)
	if err != nil {
		log.Panicf("error getting session key: %v\n", err)
	}
	if sessKey == "" {
		sessKey = string(securecookie.GenerateRandomKey(32))
		if err := dbc.SetSetting(db.SessionKey, sessKey); err != nil {
			log.Panicf("error setting session key: %v\n", err)
		}
	}
	sessDB := gormstore.New(dbc.DB, []byte(sessKey))
	sessDB.SessionOpts.HttpOnly = true
	sessDB.SessionOpts.SameSite = http.SameSiteLaxMode
	sessDB.SessionOpts.Path = "/"
	if *confProxyPrefix != "" {
		sessDB.SessionOpts.Path = *confProxyPrefix
	}

	ctrlBase := &ctrlbase.Controller{
		DB:          dbc,
		Blobs:       blobs,
		Sessions:    sessDB,
		ProxyPrefix: *confProxyPrefix,
		PublicURL:   *confPublicURL,
	}
	ctrlAuth := ctrlauth.New(ctrlBase, auth.New(dbc))
	ctrlAPI := ctrlapi.New(ctrlBase, musicbrainz.NewClient(*confMusicBrainzUserAgent), imageCache)
	ctrlStorage := ctrlstorage.New(ctrlBase, imageCache)

	mux := mux.NewRouter()
	ctrlbase.AddRoutes(ctrlBase, mux, *confHTTPLog)
	ctrlauth.AddRoutes(ctrlAuth, mux.PathPrefix("/auth").Subrouter())
	ctrlapi.AddRoutes(ctrlAPI, mux.PathPrefix("/api").Subrouter())
	ctrlstorage.AddRoutes(ctrlStorage, mux.PathPrefix(blob.PublicPrefix).Subrouter())

	var handler http.Handler = mux
	if *confProxyPrefix != "" {
		handler = http.StripPrefix(*confProxyPrefix, mux)
	}

	noCleanup := func(_ error) {}

	var g run.Group
	g.Add(func() error {
		log.Print("starting job 'http'\n")
		server := &http.Server{
			Addr:              *confListenAddr,
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      80 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if *confTLSCert != "" && *confTLSKey != "" {
			return server.ListenAndServeTLS(*confTLSCert, *confTLSKey)
		}
		return server.ListenAndServe()
	}, noCleanup)

	g.Add(func() error {
		log.Printf("starting job 'session clean'\n")
		ticker := time.NewTicker(10 * time.Minute)
		for range ticker.C {
			sessDB.Cleanup()
		}
		return nil
	}, noCleanup)

	if err := g.Run(); err != nil {
		log.Panicf("error in job: %v", err)
	}
}

var errNotADir = errors.New("not a directory")

func validatePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path can't be empty")
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		if err := os.MkdirAll(p, os.ModePerm); err != nil {
			return "", fmt.Errorf("create %q: %w", p, err)
		}
	}
	stat, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", p, err)
	}
	if !stat.IsDir() {
		return "", fmt.Errorf("%q: %w", p, errNotADir)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("make absolute: %w", err)
	}
	return abs, nil
}

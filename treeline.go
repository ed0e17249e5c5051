package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/treelinecms/treeline/auth"
	"github.com/treelinecms/treeline/backend"
	"github.com/treelinecms/treeline/core"
	"github.com/treelinecms/treeline/sqldb"
	"github.com/treelinecms/treeline/sqldb/mysql"
	"github.com/treelinecms/treeline/sqldb/sqlite3"
	"github.com/xo/dburl"
	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/ini.v1"
)

var log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// config carries the optional ini file values. Hosts maps a HTTP host header
// to a site id; unknown hosts get site 0.
type config struct {
	Listen          string
	DefaultLanguage string
	Hosts           map[string]int
}

func loadConfig(path string) (*config, error) {

	var cfg = &config{
		Listen:          "127.0.0.1:8080",
		DefaultLanguage: "en",
		Hosts:           map[string]int{},
	}

	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	var main = file.Section("treeline")
	if v := main.Key("listen").String(); v != "" {
		cfg.Listen = v
	}
	if v := main.Key("default_language").String(); v != "" {
		cfg.DefaultLanguage = v
	}

	for _, key := range file.Section("hosts").Keys() {
		site, err := key.Int()
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", key.Name(), err)
		}
		cfg.Hosts[key.Name()] = site
	}

	return cfg, nil
}

func main() {

	var dbArg string // is in both FlagSets

	// default FlagSet

	var configPath = flag.String("config", "", "read additional configuration from this ini `file`")
	flag.StringVar(&dbArg, "db", "sqlite3:treeline.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared", "sql database url, see github.com/xo/dburl")
	var listenAddr = flag.String("listen", "", "serve HTTP content at this `ip:port`, overrides the config file")

	// init FlagSet

	var initFlags = flag.NewFlagSet("init", flag.ExitOnError)

	initFlags.StringVar(&dbArg, "db", "sqlite3:treeline.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared", "sql database url, see github.com/xo/dburl") // copied from above
	var initInsert = initFlags.Bool("insert", false, "creates the given group or user")
	var initJoin = initFlags.Bool("join", false, "joins the given user to the given group")
	var initMakeAdmin = initFlags.Bool("make-admin", false, "gives every capability on every site to the given group")
	var initSuperuser = initFlags.Bool("superuser", false, "makes the given user a superuser")
	var groupname = initFlags.String("group", "", "specifies a group `name`")
	var username = initFlags.String("user", "", "specifies a user `name`")

	if len(os.Args) > 1 && os.Args[1] == "init" {
		initFlags.Parse(os.Args[2:])
	} else {
		flag.Parse()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("could not read config file")
		return
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	// database

	dbURL, err := dburl.Parse(dbArg)
	if err != nil {
		log.Error().Err(err).Msg("could not parse database url")
		return
	}

	sqlDB, err := sqlx.Open(dbURL.Driver, dbURL.DSN)
	if err != nil {
		log.Error().Err(err).Msg("could not open sql database")
		return
	}

	if err = sqlDB.Ping(); err != nil {
		log.Error().Err(err).Msg("could not ping sql database")
		return
	}

	log.Info().Str("url", dbURL.String()).Msg("using database")

	// assemble stuff

	var sessionStore scs.Store
	switch dbURL.Driver {
	case "mysql":
		sessionStore = mysql.NewSessionStore(sqlDB.DB)
	case "sqlite3":
		sessionStore = sqlite3.NewSessionStore(sqlDB.DB)
	default:
		log.Error().Str("driver", dbURL.Driver).Msg("unknown database backend")
		return
	}

	db := &core.CoreDB{}
	db.Store = sqldb.NewStore(sqlDB)
	db.Auth = &auth.AuthDB{
		GroupDB: sqldb.NewGroupDB(sqlDB),
		UserDB:  sqldb.NewUserDB(sqlDB),
	}
	db.Log = log

	if err := db.Init(sessionStore, ""); err != nil {
		log.Error().Err(err).Msg("init failed")
		return
	}

	defer func() {
		log.Info().Msg("closing database")
		sqlDB.Close()
	}()

	// init

	if initFlags.Parsed() {
		switch {
		case *initInsert:
			if *groupname != "" {
				insertGroup(db, *groupname)
			}
			if *username != "" {
				insertUser(db, *username)
			}
		case *initJoin:
			if *groupname != "" && *username != "" {
				join(db, *groupname, *username)
			}
		case *initMakeAdmin:
			if *groupname != "" {
				makeAdmin(db, *groupname)
			}
		case *initSuperuser:
			if *username != "" {
				makeSuperuser(db, *username)
			}
		}
		return
	}

	listen(db, cfg)
}

func groupByName(db *core.CoreDB, name string) (auth.Group, error) {
	groups, err := db.Auth.GetAllGroups(1000, 0)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name() == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group %s not found", name)
}

func userByName(db *core.CoreDB, name string) (auth.User, error) {
	users, err := db.Auth.GetAllUsers(10000, 0)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Name() == name {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", name)
}

func insertGroup(db *core.CoreDB, name string) {
	if _, err := db.Auth.InsertGroup(name); err != nil {
		log.Error().Err(err).Str("group", name).Msg("error creating group")
	}
}

func insertUser(db *core.CoreDB, name string) {

	fmt.Printf("password for user %s: ", name)
	pass1, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		log.Error().Err(err).Msg("error reading password")
		return
	}

	fmt.Printf("repeat password: ")
	pass2, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		log.Error().Err(err).Msg("error reading password")
		return
	}

	if !bytes.Equal(pass1, pass2) {
		log.Error().Msg("passwords don't match")
		return
	}

	user, err := db.Auth.InsertUser(name)
	if err != nil {
		log.Error().Err(err).Str("user", name).Msg("error creating user")
		return
	}

	if err := db.Auth.SetPassword(user, string(pass1)); err != nil {
		log.Error().Err(err).Msg("error setting password")
		return
	}
}

func join(db *core.CoreDB, groupname string, username string) {

	group, err := groupByName(db, groupname)
	if err != nil {
		log.Error().Err(err).Msg("error getting group")
		return
	}

	user, err := userByName(db, username)
	if err != nil {
		log.Error().Err(err).Msg("error getting user")
		return
	}

	if err := db.Auth.Join(group, user); err != nil {
		log.Error().Err(err).Msg("error joining")
		return
	}
}

var allCaps = core.CapView | core.CapAdd | core.CapChange | core.CapDelete |
	core.CapAdvanced | core.CapPermissions | core.CapMove | core.CapRecover

func makeAdmin(db *core.CoreDB, groupname string) {

	group, err := groupByName(db, groupname)
	if err != nil {
		log.Error().Err(err).Msg("error getting group")
		return
	}

	if err := db.AddGlobalGrant(&core.GlobalGrant{
		GroupID: group.ID(),
		Caps:    allCaps,
	}); err != nil {
		log.Error().Err(err).Msg("error granting admin capabilities")
		return
	}
}

func makeSuperuser(db *core.CoreDB, username string) {

	user, err := userByName(db, username)
	if err != nil {
		log.Error().Err(err).Msg("error getting user")
		return
	}

	if err := db.Auth.SetSuperuser(user, true); err != nil {
		log.Error().Err(err).Msg("error making superuser")
		return
	}
}

func listen(db *core.CoreDB, cfg *config) {

	var waitingControllers sync.WaitGroup

	http.Handle("/backend/", http.StripPrefix("/backend", backend.NewBackendRouter(db)))
	http.Handle("/metrics", promhttp.Handler())

	http.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {

		waitingControllers.Add(1)
		defer waitingControllers.Done()

		if err := db.Revisions.EnsureUpToDate(); err != nil {
			log.Error().Err(err).Msg("revision check failed")
		}

		var host = req.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		var site = cfg.Hosts[host]

		var lang = req.URL.Query().Get("lang")
		if lang == "" {
			lang = cfg.DefaultLanguage
		}

		var path = strings.TrimSuffix(req.URL.Path, "/")
		if path == "" {
			path = "/"
		}

		if hook, mount, ok := db.Router.Resolve(site, path); ok {
			hook.Handler.ServeHTTP(w, req.WithContext(core.WithMount(req.Context(), mount)))
			return
		}

		nodeID, err := db.NodeIDByPath(site, false, lang, path)
		if db.IsNotFound(err) {
			http.NotFound(w, req)
			return
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		n, err := db.GetNode(nodeID)
		if err != nil || n.MarkedForDeletion {
			http.NotFound(w, req)
			return
		}

		t, err := db.GetTranslation(n.ID, lang)
		if err != nil {
			http.NotFound(w, req)
			return
		}

		if t.Redirect != "" {
			http.Redirect(w, req, t.Redirect, http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            n.ID,
			"title":         t.Title,
			"path":          t.Path,
			"language":      t.Language,
			"in_navigation": n.InNavigation,
		})
	}))

	// listener and listen

	sigintChannel := make(chan os.Signal, 1)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Error().Err(err).Msg("could not listen")
		return
	}

	log.Info().Str("addr", cfg.Listen).Msg("listening")

	httpSrv := &http.Server{
		Handler:      db.SessionManager.LoadAndSave(http.DefaultServeMux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil {

			// don't panic, we want a graceful shutdown
			if err != http.ErrServerClosed {
				log.Error().Err(err).Msg("error listening")
			}

			// ensure graceful shutdown
			sigintChannel <- os.Interrupt
		}
	}()

	// graceful shutdown

	signal.Notify(sigintChannel, os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	<-sigintChannel

	log.Info().Msg("shutting down")
	httpSrv.Close()

	waitingControllers.Wait()
}

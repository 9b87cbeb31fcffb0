// Command ignisd boots the server: load config, build the router and
// middleware chain for the bundled example API, and serve.
//
// Grounded on the teacher's examples/*/main.go bootstrap shape (plain
// func main, no CLI framework — none appears anywhere in the retrieval
// pack) extended with a -config flag, since this module's Config is
// file-loadable where the teacher's settings.Settings is not.
package main

import (
	"flag"
	"time"

	"github.com/ignis-web/ignis/config"
	"github.com/ignis-web/ignis/http"
	ilog "github.com/ignis-web/ignis/log"
	"github.com/ignis-web/ignis/middleware"
	"github.com/ignis-web/ignis/router"
	"github.com/ignis-web/ignis/server"
	"github.com/ignis-web/ignis/session"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (defaults built in if empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			ilog.Fatalf("ignisd: load config: %v", err)
		}
		cfg = loaded
	}

	ilog.SetLevel(ilog.ParseLevel(cfg.LogLevel))

	rt := buildRouter()
	chain := buildMiddleware(cfg)

	srv, err := server.New(cfg, rt, chain, nil)
	if err != nil {
		ilog.Fatalf("ignisd: %v", err)
	}

	ilog.Infof("ignisd: starting on port %d", cfg.Port)
	if err := srv.Listen(); err != nil {
		ilog.Fatalf("ignisd: %v", err)
	}
}

func buildRouter() *router.Router {
	rt := router.New()

	rt.RegisterCallback(http.GET, "/health", func(req *http.Request) *http.Response {
		return http.NewResponse().Code(200, "OK").SetContentType(http.TextPlain).String("ok")
	})

	api := rt.Group("/api")
	api.RegisterCallback(http.GET, "/whoami", func(req *http.Request) *http.Response {
		s := session.FromRequest(req)
		if s == nil {
			return http.NewStatusResponse(http.StatusInternalServerError, false)
		}

		return http.NewResponse().Code(200, "OK").SetContentType(http.TextPlain).String(s.ID())
	})

	api.AddRegexCallback(http.GET, "/users/:id", func(req *http.Request) *http.Response {
		id, _ := req.PathParams.Get("id")
		return http.NewResponse().Code(200, "OK").SetContentType(http.TextPlain).String("user " + id)
	})

	return rt
}

func buildMiddleware(cfg config.Config) *middleware.Chain {
	chain := middleware.New()
	chain.Use(middleware.NewCORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	sessionTimeout := time.Duration(cfg.SessionTimeout) * time.Second
	chain.Use(session.NewMiddleware(session.NewManager(session.NewMemoryStore(), sessionTimeout)))

	return chain
}

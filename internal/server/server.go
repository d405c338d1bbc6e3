package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"

	"github.com/itsjmendez/adonde/internal/chat"
	"github.com/itsjmendez/adonde/internal/config"
	"github.com/itsjmendez/adonde/internal/connections"
	"github.com/itsjmendez/adonde/internal/database"
	"github.com/itsjmendez/adonde/internal/geocoding"
	"github.com/itsjmendez/adonde/internal/handlers"
	"github.com/itsjmendez/adonde/internal/logging"
	"github.com/itsjmendez/adonde/internal/middleware"
	"github.com/itsjmendez/adonde/internal/notify"
	"github.com/itsjmendez/adonde/internal/profile"
	"github.com/itsjmendez/adonde/internal/pubsub"
	"github.com/itsjmendez/adonde/internal/storage"
)

// Server holds the assembled application.
type Server struct {
	E   *echo.Echo
	Cfg *config.Config

	db          *database.Connection
	bus         *pubsub.Bus
	chatManager *chat.Manager
	profiles    *profile.Service
	geocoder    *geocoding.Service

	chatHandler        *handlers.ChatHandler
	chatSocketHandler  *handlers.ChatSocketHandler
	profileHandler     *handlers.ProfileHandler
	connectionsHandler *handlers.ConnectionsHandler
	geocodingHandler   *handlers.GeocodingHandler
	avatarHandler      *handlers.AvatarHandler
	notifsHandler      *handlers.NotificationsHandler
}

// New wires the whole application together.
func New() *Server {
	logging.New()
	cfg := config.New()

	db := database.NewConnection(cfg)
	if err := db.Connect(context.Background()); err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	db.StartMonitoring()

	feed := database.NewLiveFeed(db)
	backend := chat.NewAPI(db)
	chatManager := chat.NewManager(backend, feed, slog.Default(),
		chat.WithPollInterval(cfg.ChatPollInterval))

	bus := pubsub.NewBus()
	center := notify.NewCenter()
	if err := center.Start(context.Background(), bus); err != nil {
		slog.Error("Failed to start notification center", "error", err)
		os.Exit(1)
	}

	profiles := profile.NewService(db)
	conns := connections.NewService(db, bus)

	var provider geocoding.Provider = geocoding.DisabledProvider{}
	if cfg.GeocodingURL != "" {
		provider = geocoding.NewHTTPProvider(cfg.GeocodingURL)
	}
	geocoder := geocoding.NewService(db, provider)

	avatarFs := afero.NewBasePathFs(afero.NewOsFs(), cfg.StorageDir)
	avatars := storage.NewAvatarStore(avatarFs, cfg.StorageBaseURL)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}
	e.Use(session.Middleware(store))

	e.Static(cfg.StorageBaseURL, cfg.StorageDir)

	return &Server{
		E:                  e,
		Cfg:                cfg,
		db:                 db,
		bus:                bus,
		chatManager:        chatManager,
		profiles:           profiles,
		geocoder:           geocoder,
		chatHandler:        handlers.NewChatHandler(backend),
		chatSocketHandler:  handlers.NewChatSocketHandler(chatManager),
		profileHandler:     handlers.NewProfileHandler(profiles),
		connectionsHandler: handlers.NewConnectionsHandler(conns),
		geocodingHandler:   handlers.NewGeocodingHandler(geocoder, profiles),
		avatarHandler:      handlers.NewAvatarHandler(avatars, profiles),
		notifsHandler:      handlers.NewNotificationsHandler(center),
	}
}

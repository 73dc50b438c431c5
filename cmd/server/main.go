// Runs the sprite generator API

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/maxhully/sprites"
	"github.com/maxhully/sprites/spritegen"
)

type App struct {
	renderer *sprites.Renderer
	store    sprites.SpriteStore
	defaults spritegen.Params
	logger   *zap.SugaredLogger
}

func NewApp(store sprites.SpriteStore, defaults spritegen.Params, logger *zap.Logger) *App {
	return &App{
		renderer: sprites.NewRenderer(),
		store:    store,
		defaults: defaults,
		logger:   logger.Sugar(),
	}
}

func (app *App) errorResponse(w http.ResponseWriter, err error) {
	app.logger.Errorw("sending 500 error", "error", err)
	http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
}

// Unlike 500s, the error text goes back to the client: it's always about something
// in their request.
func (app *App) badRequest(w http.ResponseWriter, err error) {
	app.logger.Infow("sending 400 error", "error", err)
	http.Error(w, fmt.Sprintf("400 Bad Request: %s", err), http.StatusBadRequest)
}

func isClientError(err error) bool {
	return errors.Is(err, spritegen.ErrParameterRange) ||
		errors.Is(err, spritegen.ErrInvalidInput) ||
		errors.Is(err, sprites.ErrInvalidKey)
}

// Missing query params fall back to defaults
func parseSpriteParams(query url.Values, defaults spritegen.Params) (spritegen.Params, spritegen.Format, error) {
	p := defaults
	var err error
	if v := query.Get("n_iters"); v != "" {
		if p.Iterations, err = strconv.Atoi(v); err != nil {
			return p, "", fmt.Errorf("n_iters must be an integer: %q", v)
		}
	}
	if v := query.Get("extinction"); v != "" {
		if p.Extinction, err = strconv.ParseFloat(v, 64); err != nil {
			return p, "", fmt.Errorf("extinction must be a number: %q", v)
		}
	}
	if v := query.Get("survival"); v != "" {
		if p.Survival, err = strconv.ParseFloat(v, 64); err != nil {
			return p, "", fmt.Errorf("survival must be a number: %q", v)
		}
	}
	if v := query.Get("size"); v != "" {
		if p.Size, err = strconv.Atoi(v); err != nil {
			return p, "", fmt.Errorf("size must be an integer: %q", v)
		}
	}
	format, err := spritegen.ParseFormat(query.Get("format"))
	return p, format, err
}

// MakeSprite generates a sprite, seeded by the "q" param when there is one, stores it
// and responds with the image. Unseeded sprites are stored under a random UUID.
func (app *App) MakeSprite(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	p, format, err := parseSpriteParams(query, app.defaults)
	if err != nil {
		app.badRequest(w, err)
		return
	}
	key := query.Get("q")
	if key != "" {
		if p, err = p.Seeded(key); err != nil {
			app.badRequest(w, err)
			return
		}
	} else {
		key = uuid.NewString()
	}

	app.logger.Infow("generating sprite", "key", key, "n_iters", p.Iterations, "size", p.Size, "format", format)
	sprite, err := spritegen.Generate(p)
	if isClientError(err) {
		app.badRequest(w, err)
		return
	} else if err != nil {
		app.errorResponse(w, err)
		return
	}

	err = app.renderer.Render(sprite, format, func(buf *bytes.Buffer) error {
		rec := sprites.NewSpriteRecord(key, p, sprite, format)
		if err := app.store.Save(r.Context(), rec, buf.Bytes()); err != nil {
			return err
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("X-Sprite-Key", key)
		w.Header().Set("X-Sprite-Seed", strconv.FormatInt(sprite.SpriteSeed, 10))
		if _, err := buf.WriteTo(w); err != nil {
			app.logger.Warnw("couldn't finish writing sprite", "key", key, "error", err)
		}
		return nil
	})
	if err != nil {
		if isClientError(err) {
			app.badRequest(w, err)
		} else {
			app.errorResponse(w, err)
		}
		return
	}
	app.logger.Infow("saved sprite", "key", key)
}

// ServeImage sends back a sprite that was generated earlier.
func (app *App) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("filename")
	if key == "" {
		app.badRequest(w, errors.New("filename is required"))
		return
	}
	rec, contents, err := app.store.Open(r.Context(), key)
	if errors.Is(err, sprites.ErrNotFound) || errors.Is(err, sprites.ErrInvalidKey) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		app.errorResponse(w, err)
		return
	}
	defer contents.Close()
	w.Header().Set("Content-Type", rec.ContentType)
	if _, err := io.Copy(w, contents); err != nil {
		app.logger.Warnw("couldn't finish writing sprite", "key", key, "error", err)
	}
}

type seedsResponse struct {
	Query      string  `json:"q"`
	SpriteSeed int64   `json:"sprite_seed"`
	ColorSeeds []int64 `json:"color_seeds"`
}

func (app *App) ShowSeeds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	spriteSeed, colorSeeds, err := spritegen.DeriveSeed(q)
	if err != nil {
		app.badRequest(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(seedsResponse{Query: q, SpriteSeed: spriteSeed, ColorSeeds: colorSeeds})
	if err != nil {
		app.logger.Warnw("couldn't write seeds", "error", err)
	}
}

func (app *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sprite", app.MakeSprite)
	mux.HandleFunc("GET /api/v1/image", app.ServeImage)
	mux.HandleFunc("GET /api/v1/seeds", app.ShowSeeds)
	return mux
}

// Wraps the routes in CORS, panic recovery, safe headers and an access log.
func newHandler(app *App, cfg sprites.Config, logger *zap.Logger) http.Handler {
	stdLog := zap.NewStdLog(logger)
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
		handlers.AllowCredentials(),
		handlers.ExposedHeaders([]string{"X-Sprite-Key", "X-Sprite-Seed"}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(stdLog))
	h := recovery(cors(sprites.SafeHeaderMiddleware(app.Routes())))
	return handlers.CombinedLoggingHandler(stdLog.Writer(), h)
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addrFlag := flag.String("addr", "", "Address to listen on (overrides the config)")
	flag.Parse()

	cfg, err := sprites.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("couldn't load config: %s", err)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}
	logger, err := sprites.NewLogger(cfg.Development)
	if err != nil {
		log.Fatalf("couldn't set up logging: %s", err)
	}
	defer logger.Sync()

	t := sprites.Timer(logger, "startup")
	store, closeStore, err := cfg.OpenStore()
	if err != nil {
		logger.Fatal("couldn't open sprite store", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer closeStore()
	app := NewApp(store, cfg.Defaults.Params(), logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(app, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	t()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("unclean shutdown", zap.Error(err))
	}
}

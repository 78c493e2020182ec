package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/registry"
	"github.com/indieinfra/pantry/server/handler/media"
	"github.com/indieinfra/pantry/server/middleware"
	"github.com/indieinfra/pantry/server/state"
	"github.com/indieinfra/pantry/storage/index"
	indexfactory "github.com/indieinfra/pantry/storage/index/factory"
	mediastore "github.com/indieinfra/pantry/storage/media"
	"github.com/indieinfra/pantry/storage/media/filesystem"
	mediafactory "github.com/indieinfra/pantry/storage/media/factory"
)

const shutdownTimeout = 10 * time.Second

// StartServer wires every backend, serves until SIGINT or SIGTERM, then
// drains in-flight requests and closes the index.
func StartServer(cfg *config.Config, logger *zap.Logger) error {
	st, err := NewState(cfg, logger)
	if err != nil {
		return err
	}
	defer Cleanup(st)

	bindAddress := fmt.Sprintf("%v:%v", cfg.Server.Address, cfg.Server.Port)
	ln, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", bindAddress, err)
	}

	srv := &http.Server{
		Handler:           NewHandler(st),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		st.Logger.Info("serving http requests", zap.String("address", ln.Addr().String()))
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	st.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// NewHandler builds the route table. Library routes sit behind the admin
// gate; the local file mount, when enabled, is public.
func NewHandler(st *state.PantryState) http.Handler {
	gate := func(h http.Handler) http.Handler {
		return middleware.RequireAdmin(&st.Cfg.Server.Auth, st.Logger, h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /media", gate(media.HandleUpload(st)))
	mux.Handle("GET /media", gate(media.HandleList(st)))
	mux.Handle("GET /media/reconcile", gate(media.HandleReconcile(st)))
	mux.Handle("GET /media/{id}", gate(media.HandleGet(st)))
	mux.Handle("DELETE /media/{id}", gate(media.HandleDelete(st)))
	mux.Handle("PATCH /media/{id}/tags", gate(media.HandleUpdateTags(st)))

	local := st.Cfg.Media.Local
	if local.Serve {
		if prefix, ok := localMountPath(local.PublicUrl); ok {
			fs := http.StripPrefix(prefix, http.FileServer(http.Dir(local.Path)))
			mux.Handle("GET "+prefix, noListing(fs))
			st.Logger.Info("serving local media", zap.String("prefix", prefix), zap.String("path", local.Path))
		} else {
			st.Logger.Warn("media.local.serve is set but public_url has no usable path", zap.String("public_url", local.PublicUrl))
		}
	}

	return mux
}

// localMountPath returns the path component of the local public URL as a
// subtree pattern. The root and the /media API prefix cannot be mounted.
func localMountPath(publicURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil {
		return "", false
	}

	p := "/" + strings.Trim(u.Path, "/")
	if p == "/" || p == "/media" || strings.HasPrefix(p, "/media/") {
		return "", false
	}

	return p + "/", true
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if name == "" || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewState constructs every backend named by the configuration. On failure
// anything already opened is closed again.
func NewState(cfg *config.Config, logger *zap.Logger) (*state.PantryState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx, err := initializeIndex(&cfg.Index)
	if err != nil {
		return nil, err
	}

	st := &state.PantryState{Cfg: cfg, Logger: logger, Index: idx}

	st.Local, err = initializeLocalStore(&cfg.Media)
	if err != nil {
		Cleanup(st)
		return nil, err
	}

	st.Remote, err = initializeRemoteStore(&cfg.Media, logger)
	if err != nil {
		Cleanup(st)
		return nil, err
	}

	st.Registry = registry.New(st.Index, st.Local, st.Remote, registry.WithLogger(logger))
	return st, nil
}

func initializeIndex(cfg *config.Index) (index.Index, error) {
	idx, err := indexfactory.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata index: %w", err)
	}
	return idx, nil
}

func initializeLocalStore(cfg *config.Media) (mediastore.LocalStore, error) {
	store, err := filesystem.NewFilesystemMediaStore(&cfg.Local, cfg.VideoPlaceholder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local media store: %w", err)
	}
	return store, nil
}

func initializeRemoteStore(cfg *config.Media, logger *zap.Logger) (mediastore.Store, error) {
	store, err := mediafactory.Create(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote media store: %w", err)
	}
	return store, nil
}

// Cleanup closes the index and flushes the logger.
func Cleanup(st *state.PantryState) {
	if st == nil {
		return
	}

	if st.Index != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := st.Index.Close(ctx); err != nil && st.Logger != nil {
			st.Logger.Warn("failed to close metadata index", zap.Error(err))
		}
	}

	if st.Logger != nil {
		_ = st.Logger.Sync()
	}
}

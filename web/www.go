// Package web serves the seat monitor over HTTP: a websocket detection stream, seat snapshots,
// health and metrics.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"
	"golang.org/x/sync/errgroup"

	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/rimage"
	"github.com/ysay/zari-vision/services/seatmonitor"
)

const shutdownTimeout = 5 * time.Second

// Options configure the web server.
type Options struct {
	BindAddress        string
	CORSAllowedOrigins []string
	// Debug enables the annotated snapshot endpoint.
	Debug bool
	// Pprof installs the profiling handlers under /debug/pprof.
	Pprof bool
	// Gatherer backs /metrics. Nil uses the default prometheus registry.
	Gatherer prometheus.Gatherer
}

type webApp struct {
	monitor *seatmonitor.Monitor
	options Options
	logger  logging.Logger
}

// NewHandler returns the HTTP handler serving every endpoint of the monitor.
func NewHandler(monitor *seatmonitor.Monitor, options Options, logger logging.Logger) http.Handler {
	app := &webApp{monitor: monitor, options: options, logger: logger}
	mux := goji.NewMux()

	corsOptions := cors.Options{AllowedMethods: []string{http.MethodGet, http.MethodHead}}
	if len(options.CORSAllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
	} else {
		corsOptions.AllowedOrigins = options.CORSAllowedOrigins
	}
	mux.Use(cors.New(corsOptions).Handler)

	mux.HandleFunc(pat.Get("/ws/detect"), app.handleStream)
	mux.HandleFunc(pat.Get("/api/restaurants/:restaurantId/seats"), app.handleSeats)
	if options.Debug {
		mux.HandleFunc(pat.Get("/api/restaurants/:restaurantId/seats/annotated"), app.handleAnnotatedSeats)
	}
	mux.HandleFunc(pat.Get("/healthz"), app.handleHealth)

	gatherer := options.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle(pat.Get("/metrics"), promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if options.Pprof {
		mux.HandleFunc(pat.New("/debug/pprof/"), pprof.Index)
		mux.HandleFunc(pat.New("/debug/pprof/cmdline"), pprof.Cmdline)
		mux.HandleFunc(pat.New("/debug/pprof/profile"), pprof.Profile)
		mux.HandleFunc(pat.New("/debug/pprof/symbol"), pprof.Symbol)
		mux.HandleFunc(pat.New("/debug/pprof/trace"), pprof.Trace)
	}
	return mux
}

func (app *webApp) handleSeats(w http.ResponseWriter, r *http.Request) {
	restaurantID := pat.Param(r, "restaurantId")
	res, err := app.monitor.Snapshot(r.Context())
	if err != nil {
		app.writeSnapshotError(w, restaurantID, err)
		return
	}
	app.writeJSON(w, http.StatusOK, seatmonitor.SeatsMessage{Seats: res.Seats})
}

func (app *webApp) handleAnnotatedSeats(w http.ResponseWriter, r *http.Request) {
	restaurantID := pat.Param(r, "restaurantId")
	img, _, err := app.monitor.AnnotatedSnapshot(r.Context())
	if err != nil {
		app.writeSnapshotError(w, restaurantID, err)
		return
	}
	data, err := rimage.JPEGBytes(img)
	if err != nil {
		app.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to encode image"})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		app.logger.Debugw("error writing annotated snapshot", "error", err)
	}
}

func (app *webApp) handleHealth(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

// snapshotStatus maps a snapshot failure to its HTTP status and client facing message.
func snapshotStatus(err error) (int, string) {
	switch kind := seatmonitor.Kind(err); kind {
	case seatmonitor.ErrSourceUnavailable:
		return http.StatusServiceUnavailable, kind.Error()
	case seatmonitor.ErrSourceRead:
		return http.StatusInternalServerError, kind.Error()
	case seatmonitor.ErrDetector:
		return http.StatusBadGateway, kind.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (app *webApp) writeSnapshotError(w http.ResponseWriter, restaurantID string, err error) {
	status, msg := snapshotStatus(err)
	app.logger.Warnw("snapshot failed", "restaurant_id", restaurantID, "status", status, "error", err)
	app.writeJSON(w, status, errorResponse{Error: msg})
}

func (app *webApp) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		app.logger.Debugw("error writing response", "error", err)
	}
}

// RunWeb serves the monitor on options.BindAddress until ctx is done.
func RunWeb(ctx context.Context, monitor *seatmonitor.Monitor, options Options, logger logging.Logger) error {
	listener, err := net.Listen("tcp", options.BindAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %q", options.BindAddress)
	}
	return Serve(ctx, listener, monitor, options, logger)
}

// Serve serves the monitor on listener until ctx is done, then shuts the server down. Open
// websocket sessions see their connections closed.
func Serve(
	ctx context.Context,
	listener net.Listener,
	monitor *seatmonitor.Monitor,
	options Options,
	logger logging.Logger,
) error {
	httpServer := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           NewHandler(monitor, options, logger),
	}
	// hijacked websocket connections are not tracked by Shutdown
	sessionCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()
	httpServer.BaseContext = func(net.Listener) context.Context {
		return sessionCtx
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cancelSessions()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("error shutting down", "error", err)
			utils.UncheckedError(httpServer.Close())
		}
		return nil
	})
	return g.Wait()
}

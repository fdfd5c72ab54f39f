// Command wikireader serves rendered HTML for a MediaWiki multistream
// dump from a local HTTP endpoint. See spec §6 for its HTTP surface and
// exit codes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kepler-wiki/wikireader/internal/server"
)

func main() {
	app := server.Setup()

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", app.HomeHandler).Methods("GET")
	router.HandleFunc("/wiki/{title}", app.ArticleHandler).Methods("GET")
	router.HandleFunc("/search", app.SearchHandler).Methods("GET")
	router.HandleFunc("/source/{title}", app.SourceHandler).Methods("GET")
	router.HandleFunc("/eval", app.EvalHandler).Methods("GET", "POST")

	// A panicking handler (a malformed dump entry hitting an
	// unanticipated code path, say) shouldn't take the whole process
	// down; RecoveryHandler turns it into a 500 and keeps serving.
	handler := handlers.RecoveryHandler()(server.SlogLoggingMiddleware(router))

	srv := &http.Server{
		Addr:    app.Config.Host,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server starting", "url", "http://"+app.Config.Host)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := app.Queue.Shutdown(ctx); err != nil {
		slog.Error("render queue shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindengage-practice/internal/api/http"
	"github.com/mind-engage/mindengage-practice/internal/attempt"
	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/config"
	"github.com/mind-engage/mindengage-practice/internal/db"
	"github.com/mind-engage/mindengage-practice/internal/logging"
	"github.com/mind-engage/mindengage-practice/internal/storage"
)

func main() {
	seed := flag.String("seed", "", "path to a catalog fixture bundle (JSON) imported at startup")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("logger")
	}
	if err := run(cfg, *seed, log); err != nil {
		log.WithError(err).Fatal("gateway stopped")
	}
}

func run(cfg config.Config, seed string, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	driver := db.Normalize(cfg.DBDriver)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		return errors.Wrap(err, "db open")
	}
	defer dbh.Close()

	if seed != "" {
		if err := importSeed(ctx, dbh, seed); err != nil {
			return err
		}
		log.WithField("path", seed).Info("catalog fixture imported")
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL)
	if err != nil {
		return errors.Wrap(err, "blob store")
	}
	lc := attempt.NewLifecycle(
		attempt.NewSQLStore(dbh, driver),
		catalog.NewSQLCatalog(dbh),
		bs,
		attempt.WithLogger(log),
	)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Lifecycle:      lc,
			Blobs:          bs,
			Auth:           auth.NewAuthService(cfg.AuthSecret),
			Log:            log,
			CORSOrigins:    cfg.CORSOrigins,
			RequestTimeout: cfg.RequestTimeout,
			MaxUploadBytes: cfg.MaxUploadMB << 20,
			Ready:          dbh.PingContext,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "db": driver}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func importSeed(ctx context.Context, dbh *sql.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open seed")
	}
	defer f.Close()
	b, err := catalog.DecodeBundle(f)
	if err != nil {
		return errors.Wrapf(err, "decode seed %s", path)
	}
	return errors.Wrap(catalog.Import(ctx, dbh, b), "import seed")
}

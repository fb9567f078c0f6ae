package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leca/photophriend/internal/config"
	"github.com/leca/photophriend/internal/database"
	"github.com/leca/photophriend/internal/handler"
	"github.com/leca/photophriend/internal/keywords"
	"github.com/leca/photophriend/internal/lifecycle"
	"github.com/leca/photophriend/internal/router"
	"github.com/leca/photophriend/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "photophriend",
		Short:         "Photo library server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          cmdServe,
	}
	root.PersistentFlags().String("listen", "", "listen address (PP_LISTEN_ADDR)")
	root.PersistentFlags().String("db", "", "SQLite database path (PP_DB_PATH)")
	root.PersistentFlags().String("storage", "", "file storage directory (PP_STORAGE_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Purge expired trash entries once and exit",
		RunE:  cmdPurge,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the wired set of long-lived components.
type app struct {
	log       *zap.Logger
	cfg       *config.Config
	db        *database.SQLiteDB
	store     storage.Storage
	lifecycle *lifecycle.Manager
}

func newApp(cmd *cobra.Command) (_ *app, err error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err)
		}
	}
	db, err := database.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, db.Close())
		}
	}()

	var store storage.Storage
	switch cfg.StorageBackend {
	case config.BackendMinio:
		store, err = storage.NewMinio(cmd.Context(), cfg.Minio)
		if err != nil {
			return nil, err
		}
	default:
		store = storage.NewFileSystem(cfg.StoragePath)
	}

	return &app{
		log:       log,
		cfg:       cfg,
		db:        db,
		store:     store,
		lifecycle: lifecycle.NewManager(log.Named("lifecycle"), db, store, cfg.Lifecycle()),
	}, nil
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.db.Close()
}

func cmdServe(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, a.Close()) }()

	h := &handler.Handler{
		Log:            a.log.Named("http"),
		DB:             a.db,
		Store:          a.store,
		Lifecycle:      a.lifecycle,
		MaxUploadBytes: a.cfg.MaxUploadBytes,
	}
	if tcfg, ok := a.cfg.Tagger(); ok {
		tagger := keywords.NewOpenAI(a.log.Named("openai"), tcfg)
		h.Keywords = keywords.NewGenerator(a.log.Named("keywords"), a.db, a.store, tagger)
	} else {
		a.log.Info("PP_OPENAI_API_KEY not set; keyword generation disabled")
	}

	chore, err := lifecycle.NewChore(a.log.Named("purge"), a.lifecycle, a.cfg.Chore())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           router.New(a.log.Named("http"), h, a.cfg.AuthToken).Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.log.Info("starting server", zap.String("addr", srv.Addr), zap.String("storage", a.cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return chore.Run(ctx)
	})
	group.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errs.Combine(srv.Shutdown(shutdownCtx), chore.Close())
	})
	return group.Wait()
}

func cmdPurge(cmd *cobra.Command, args []string) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, a.Close()) }()

	n, err := a.lifecycle.AutoPurge(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d trash entries\n", n)
	return nil
}

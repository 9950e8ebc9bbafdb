package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxilosgr/leagueofleagues-client/internal/app"
	"github.com/maxilosgr/leagueofleagues-client/internal/backend"
	"github.com/maxilosgr/leagueofleagues-client/internal/connector"
	"github.com/maxilosgr/leagueofleagues-client/internal/session"
	"github.com/maxilosgr/leagueofleagues-client/internal/settings"
)

const defaultBackendURL = "https://rust.gameras.gr"

func main() {
	lockfileDir := flag.String("lockfile-dir", defaultLockfileDir(), "League client install directory (where the lockfile lives)")
	backendURL := flag.String("backend-url", defaultBackendURL, "League of Leagues backend base URL")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	logCfg := zap.NewProductionConfig()
	if *debug {
		logCfg = zap.NewDevelopmentConfig()
	}
	log, err := logCfg.Build()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	settingsPath, err := settings.DefaultPath()
	if err != nil {
		log.Fatal("resolving settings path", zap.Error(err))
	}

	store := session.NewStore()
	conn := connector.New(connector.Config{LockfileDir: *lockfileDir}, store, log)
	bc := backend.New(*backendURL, log)
	a := app.New(bc, conn, settingsPath, *backendURL+"/downloadclient",
		app.LogNotifier{Log: log}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.VerifyStoredCredential(ctx)
		return nil
	})
	g.Go(func() error {
		return conn.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func defaultLockfileDir() string {
	if dir := os.Getenv("LEAGUE_INSTALL_DIR"); dir != "" {
		return dir
	}
	return `C:\Riot Games\League of Legends`
}

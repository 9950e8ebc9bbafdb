// Package app implements the user-triggered commands behind the shell's
// menu: register, join game, status, update check. Commands read session
// snapshots directly and schedule local-client work through the connector;
// outcomes are reported through a Notifier so the shell stays a thin layer.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maxilosgr/leagueofleagues-client/internal/backend"
	"github.com/maxilosgr/leagueofleagues-client/internal/connector"
	"github.com/maxilosgr/leagueofleagues-client/internal/join"
	"github.com/maxilosgr/leagueofleagues-client/internal/settings"
)

// Notifier receives command outcomes. The tray shell shows dialogs; the
// headless build logs them.
type Notifier interface {
	Info(title, message string)
	Error(title, message string)
}

// LogNotifier reports outcomes to the log, for running without a shell.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Info(title, message string) {
	n.Log.Info(message, zap.String("title", title))
}

func (n LogNotifier) Error(title, message string) {
	n.Log.Warn(message, zap.String("title", title))
}

type App struct {
	backend      *backend.Client
	conn         *connector.Connector
	settingsPath string
	notify       Notifier
	log          *zap.Logger
	downloadURL  string
}

func New(bc *backend.Client, conn *connector.Connector, settingsPath, downloadURL string, notify Notifier, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		backend:      bc,
		conn:         conn,
		settingsPath: settingsPath,
		notify:       notify,
		log:          log.Named("app"),
		downloadURL:  downloadURL,
	}
}

// Register redeems a one-time registration code for the detected summoner
// and stores the returned credential token.
func (a *App) Register(ctx context.Context, code string) {
	snap := a.conn.Snapshot()
	if !snap.Ready {
		a.notify.Error("Not Ready", "Please open your League client first.")
		return
	}
	if snap.Identity == nil {
		a.notify.Error("Summoner Info", "Could not detect your summoner information yet.")
		return
	}

	display := snap.DisplayName()
	if snap.Region != "" {
		display += "," + snap.Region
	}

	token, err := a.backend.RedeemCode(ctx, code, display)
	if err != nil {
		a.log.Warn("code redemption failed", zap.Error(err))
		a.notify.Error("Registration Failed", "Invalid registration code or server error.")
		return
	}
	if err := settings.Save(a.settingsPath, settings.Settings{CredentialToken: token}); err != nil {
		a.log.Error("saving credential failed", zap.Error(err))
		a.notify.Error("Registration Failed", "Could not store the credential token.")
		return
	}
	a.notify.Info("Registered", "Successfully registered!")
}

// JoinGame redeems a match password with the backend and schedules the
// lobby join on the connection's event context. It returns as soon as the
// join is scheduled; the outcome arrives through the notifier so the
// caller's goroutine never blocks on the connection.
func (a *App) JoinGame(ctx context.Context, password string) {
	snap := a.conn.Snapshot()
	if !snap.Ready || snap.Phase == "" {
		a.notify.Error("Join Game", "Client not ready or no phase info.")
		return
	}

	req, err := a.backend.JoinMatch(ctx, password)
	if err != nil {
		a.log.Warn("joinmatch failed", zap.Error(err))
		a.notify.Error("Join Game", "Failed to join: invalid response from server")
		return
	}

	res := a.conn.Do(func(ctx context.Context, h connector.Handle) (any, error) {
		return join.Join(ctx, h, req)
	})
	go a.reportJoin(req, res)
}

func (a *App) reportJoin(req backend.JoinRequest, res <-chan connector.Result) {
	r := <-res
	target := req.TargetName + "#" + req.TargetTag
	switch {
	case r.Err == nil:
		out := r.Value.(join.Outcome)
		a.notify.Info("Join Game", fmt.Sprintf("Successfully joined %s's lobby!", out.Target))
	default:
		a.log.Warn("lobby join failed", zap.String("target", target), zap.Error(r.Err))
		a.notify.Error("Join Game", fmt.Sprintf("Failed to join %s's lobby: %v", target, r.Err))
	}
}

// StatusReport is what the shell's status entry renders.
type StatusReport struct {
	Connected  bool
	Summoner   string
	Region     string
	Phase      string
	Registered bool
}

func (a *App) Status(ctx context.Context) StatusReport {
	snap := a.conn.Snapshot()
	cfg, err := settings.Load(a.settingsPath)
	if err != nil {
		a.log.Warn("loading settings failed", zap.Error(err))
	}
	report := StatusReport{
		Connected:  snap.Ready,
		Summoner:   snap.DisplayName(),
		Region:     snap.Region,
		Phase:      snap.Phase,
		Registered: cfg.Registered(),
	}
	a.notify.Info("Status", fmt.Sprintf(
		"Client connected: %v\nSummoner: %s\nRegion: %s\nRegistered: %v",
		report.Connected, orUnknown(report.Summoner), orUnknown(report.Region), report.Registered))
	return report
}

// CheckUpdate asks the backend for the latest version and points the user
// at the download page.
func (a *App) CheckUpdate(ctx context.Context) {
	version, err := a.backend.LatestVersion(ctx)
	if err != nil {
		a.log.Warn("version check failed", zap.Error(err))
		a.notify.Error("Update Check", "Failed to check for updates.")
		return
	}
	a.notify.Info("Update Check",
		fmt.Sprintf("Version %s is available. Download: %s", version, a.downloadURL))
}

// VerifyStoredCredential authenticates the stored credential token at
// startup. A definitive not-registered answer wipes the stored settings;
// transient failures leave them in place.
func (a *App) VerifyStoredCredential(ctx context.Context) {
	cfg, err := settings.Load(a.settingsPath)
	if err != nil || !cfg.Registered() {
		return
	}
	status, err := a.backend.Authenticate(ctx, cfg.CredentialToken)
	switch status {
	case backend.AuthOK:
		a.log.Info("authenticated with stored credentials")
	case backend.AuthNotRegistered:
		a.log.Info("stored credential no longer registered, clearing")
		if err := settings.Delete(a.settingsPath); err != nil {
			a.log.Warn("clearing settings failed", zap.Error(err))
		}
	default:
		a.log.Warn("credential check inconclusive", zap.Error(err))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/bridge"
	"github.com/lotas/sidestack/internal/config"
	"github.com/lotas/sidestack/internal/firefox"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/host/cdphost"
	"github.com/lotas/sidestack/internal/host/memhost"
	"github.com/lotas/sidestack/internal/menu"
	"github.com/lotas/sidestack/internal/sidebar"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/storage"
	"github.com/lotas/sidestack/internal/tui"
)

// connectTimeout bounds how long one-shot commands wait for the extension.
const connectTimeout = 10 * time.Second

// firefoxPoll is how often the session file is checked for changes.
const firefoxPoll = 2 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	host       string
	port       int
	cdpURL     string
	profile    string
	window     int
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "sidestack",
		Short:         "A vertical tab sidebar for the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			return runSidebar(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.config/sidestack/config.yaml)")
	pf.StringVar(&g.host, "host", "", "browser host: ws, cdp, firefox or demo")
	pf.IntVar(&g.port, "port", config.DefaultPort, "WebSocket port for the extension")
	pf.StringVar(&g.cdpURL, "cdp-url", "", "DevTools URL for the cdp host")
	pf.StringVar(&g.profile, "profile", "", "Firefox profile name or directory")
	pf.IntVar(&g.window, "window", 0, "window to show (default: the focused window)")

	root.AddCommand(newExportCmd(g))
	root.AddCommand(newSavedCmd(g))
	root.AddCommand(newSettingsCmd(g))
	root.AddCommand(newConfigCmd(g))
	root.AddCommand(newProfilesCmd())

	return root
}

// loadConfig resolves the configuration. Flags the user set override the
// file and the environment.
func loadConfig(cmd *cobra.Command, g *globalFlags) (config.Config, error) {
	overrides := make(map[string]any)
	flags := cmd.Flags()
	if flags.Changed("host") {
		overrides["host"] = g.host
	}
	if flags.Changed("port") {
		overrides["port"] = g.port
	}
	if flags.Changed("cdp-url") {
		overrides["cdp_url"] = g.cdpURL
	}
	if flags.Changed("profile") {
		overrides["firefox_profile"] = g.profile
	}
	if flags.Changed("window") {
		overrides["window"] = g.window
	}
	return config.Load(g.configPath, overrides)
}

func openDB(cfg config.Config) (*sql.DB, error) {
	path := cfg.DBPath
	if path == "" {
		p, err := storage.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	db, err := storage.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// session is an open browser host plus what is needed to release it.
type session struct {
	host  host.Host
	label string
	close func()
}

// openHost connects to the configured browser. When wait is set, the
// WebSocket host blocks until the extension connects.
func openHost(ctx context.Context, cfg config.Config, wait bool) (*session, error) {
	switch cfg.Host {
	case config.HostDemo:
		return &session{host: memhost.Demo(), label: "demo", close: func() {}}, nil

	case config.HostCDP:
		h, err := cdphost.Dial(ctx, cfg.CDPURL)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", cfg.CDPURL, err)
		}
		return &session{host: h, label: "cdp " + cfg.CDPURL, close: h.Close}, nil

	case config.HostFirefox:
		dir, err := firefoxProfileDir(cfg.FirefoxProfile)
		if err != nil {
			return nil, err
		}
		h := firefox.NewHost(dir)
		wctx, cancel := context.WithCancel(ctx)
		go h.Watch(wctx, firefoxPoll)
		return &session{host: h, label: "firefox " + filepath.Base(dir) + " (read-only)", close: cancel}, nil

	default:
		srv := bridge.New(cfg.Port, cfg.RequestTimeout)
		sctx, cancel := context.WithCancel(ctx)
		go func() {
			if err := srv.ListenAndServe(sctx); err != nil {
				applog.Error("server.failed", err)
				fmt.Fprintf(os.Stderr, "WebSocket server error: %v\n", err)
			}
		}()
		s := &session{host: srv, label: fmt.Sprintf("extension :%d", srv.Port()), close: cancel}
		if wait {
			if err := waitConnected(ctx, srv, connectTimeout); err != nil {
				cancel()
				return nil, err
			}
		}
		return s, nil
	}
}

// waitConnected blocks until the extension connects to srv. A zero timeout
// waits until ctx is done.
func waitConnected(ctx context.Context, srv *bridge.Server, timeout time.Duration) error {
	fmt.Fprintf(os.Stderr, "Waiting for the browser extension on port %d...\n", srv.Port())
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !srv.Connected() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timed out waiting for extension (%s)", timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// firefoxProfileDir resolves a profile given by directory or by name. An
// empty value asks the user when there is more than one profile.
func firefoxProfileDir(value string) (string, error) {
	if value != "" {
		if fi, err := os.Stat(value); err == nil && fi.IsDir() {
			return value, nil
		}
	}
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		return "", fmt.Errorf("discover profiles: %w", err)
	}
	if value != "" {
		for _, p := range profiles {
			if p.Name == value {
				return p.Path, nil
			}
		}
		return "", fmt.Errorf("profile %q not found", value)
	}
	p, err := tui.PickProfile(profiles)
	if err != nil {
		return "", err
	}
	return p.Path, nil
}

// newController wires a sidebar for the configured window.
func newController(cfg config.Config, h host.Host, db *sql.DB, notify func(string)) (*sidebar.Controller, error) {
	ignore, err := cfg.Ignore()
	if err != nil {
		return nil, err
	}
	var st *state.Manager
	if db != nil {
		st = state.NewManager(storage.NewKV(db))
	}
	return sidebar.New(sidebar.Options{
		Host:       h,
		WindowID:   cfg.Window,
		State:      st,
		DB:         db,
		Clipboard:  menu.SystemClipboard,
		Ignore:     ignore,
		SystemDark: lipgloss.HasDarkBackground(),
		Notify:     notify,
	}), nil
}

func runSidebar(ctx context.Context, cfg config.Config) error {
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = applog.DefaultDir()
	}
	if err := applog.Init(logDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	}
	defer applog.Close()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// The sidebar keeps waiting for the extension; the user quits with ctrl+c.
	s, err := openHost(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer s.close()
	if srv, ok := s.host.(*bridge.Server); ok {
		if err := waitConnected(ctx, srv, 0); err != nil {
			return err
		}
	}

	notices := make(chan string, 8)
	notify := func(text string) {
		select {
		case notices <- text:
		default:
		}
	}
	ctrl, err := newController(cfg, s.host, db, notify)
	if err != nil {
		return err
	}

	m := tui.NewModel(tui.Options{
		Context:    ctx,
		Controller: ctrl,
		Events:     s.host.Events(),
		Notices:    notices,
		DB:         db,
		HostLabel:  s.label,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ctrl.Hide(hctx); err != nil {
		applog.Warn("sidebar.hide", "error", err)
	}
	return nil
}

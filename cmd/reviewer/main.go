package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gis-qa/reviewer/internal/app"
	"github.com/gis-qa/reviewer/internal/backend"
	"github.com/gis-qa/reviewer/internal/config"
	"github.com/gis-qa/reviewer/internal/devstub"
	"github.com/gis-qa/reviewer/internal/tui"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to reviewer.yaml (default: next to the executable)")
		sessionID  = flag.String("session", "", "session id to review (overrides config)")
		summary    = flag.Bool("summary", false, "print the session summary and exit")
		convertAll = flag.Bool("convert-all", false, "convert every remaining candidate and exit")
		download   = flag.Bool("download", false, "download the results archive and exit")
		wait       = flag.Bool("wait", false, "wait for server-side processing to finish before running")
		stub       = flag.Bool("stub", false, "run against an embedded fixture backend")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("gis-qa reviewer %s (built %s)\n", Version, BuildTime)
		return
	}

	path := *configPath
	if path == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		path = filepath.Join(filepath.Dir(exePath), "reviewer.yaml")
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *sessionID != "" {
		cfg.Backend.SessionID = *sessionID
	}

	if *stub {
		stopStub, err := startStubBackend(cfg)
		if err != nil {
			fmt.Printf("Failed to start fixture backend: %v\n", err)
			os.Exit(1)
		}
		defer stopStub()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	surfaces := tui.NewSurfaces()
	a, err := app.New(cfg, surfaces.AppSurfaces())
	if err != nil {
		fmt.Printf("Failed to assemble the review engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *wait {
		if err := waitForProcessing(ctx, a, cfg); err != nil {
			fmt.Printf("Processing did not finish: %v\n", err)
			os.Exit(1)
		}
	}

	headless := *summary || *convertAll || *download
	if headless {
		surfaces.AutoConfirm()
		if err := runHeadless(ctx, a, *summary, *convertAll, *download); err != nil {
			os.Exit(1)
		}
		return
	}

	model := tui.NewModel(a, surfaces)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Terminal UI failed: %v\n", err)
		os.Exit(1)
	}
}

// startStubBackend serves the embedded fixture backend on a loopback port
// and points the config at it.
func startStubBackend(cfg *config.AppConfig) (func(), error) {
	stub := devstub.NewServer()
	stub.AddSession(devstub.FixtureSession("demo"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: stub.Handler()}
	go srv.Serve(ln)

	cfg.Backend.URL = "http://" + ln.Addr().String()
	cfg.Backend.SessionID = "demo"
	fmt.Printf("[Stub] fixture backend on %s (session %q)\n", cfg.Backend.URL, "demo")
	return func() { srv.Close() }, nil
}

// waitForProcessing polls the backend until the session's upload pipeline
// reports completion, printing progress as it goes.
func waitForProcessing(ctx context.Context, a *app.Context, cfg *config.AppConfig) error {
	interval := time.Duration(cfg.Backend.PollIntervalMS) * time.Millisecond
	poller := backend.NewProgressPoller(a.Client, cfg.Backend.SessionID, interval)
	return poller.Run(ctx, func(progress float64, message, step string) {
		fmt.Printf("[%3.0f%%] %s (%s)\n", progress, step, message)
	})
}

func runHeadless(ctx context.Context, a *app.Context, summary, convertAll, download bool) error {
	if err := a.Reload(ctx); err != nil {
		fmt.Printf("Failed to load session: %v\n", err)
		return err
	}

	if summary {
		printSummary(a)
	}

	if convertAll {
		if err := a.Convert.ConvertAll(ctx); err != nil {
			fmt.Printf("Batch conversion failed: %v\n", err)
			return err
		}
		printSummary(a)
	}

	if download {
		path, err := a.Download(ctx)
		if err != nil {
			fmt.Printf("Download failed: %v\n", err)
			return err
		}
		fmt.Printf("Results archive: %s\n", path)
	}
	return nil
}

func printSummary(a *app.Context) {
	sess := a.Store.Session()
	counts := a.Store.Counts()
	fmt.Printf("Session %s\n", sess.ID)
	fmt.Printf("  features:    %d\n", counts.Total)
	fmt.Printf("  review:      %d\n", counts.Review)
	fmt.Printf("  candidates:  %d\n", counts.Candidate)
	fmt.Printf("  valid:       %d\n", counts.Valid)
	fmt.Printf("  auto-fixed:  %d\n", counts.Fixed)
	fmt.Printf("  clean files: %d\n", sess.CleanFileCount)
	for _, l := range sess.MapLayers {
		fmt.Printf("  layer: %s (%s)\n", l.Label, l.Type)
	}
}

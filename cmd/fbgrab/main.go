// Command fbgrab extracts comments, reactions and shares from a post on the
// mobile Facebook web interface through a live authenticated browser session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/sjank/fbgrab/internal/auth"
	browseropts "github.com/sjank/fbgrab/internal/browser"
	"github.com/sjank/fbgrab/internal/config"
	"github.com/sjank/fbgrab/internal/extract"
	"github.com/sjank/fbgrab/internal/identity"
	"github.com/sjank/fbgrab/internal/scheduler"
	"github.com/sjank/fbgrab/internal/session"
	"github.com/sjank/fbgrab/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "login":
		runLogin()
	case "logout":
		runLogout()
	case "extract":
		if len(os.Args) < 3 {
			fmt.Println("Usage: fbgrab extract <post-url>")
			os.Exit(1)
		}
		runExtract(os.Args[2])
	case "watch":
		runWatch()
	case "bot-test":
		runBotTest()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: fbgrab open <config|output>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: fbgrab <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login          Open a browser to log in to Facebook")
	fmt.Println("  logout         Clear stored session cookies")
	fmt.Println("  extract <url>  Extract comments, reactions and shares from a post")
	fmt.Println("  watch          Periodically re-extract the posts configured under [watch]")
	fmt.Println("  bot-test       Open bot.sannysoft.com to audit browser fingerprint")
	fmt.Println("  open config    Open config file in default editor")
	fmt.Println("  open output    Open output directory in file explorer")
}

// loadConfig reads the config file, writing the defaults to disk on first
// run so the user has a file to edit.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
		if err := cfg.Save(); err != nil {
			logrus.WithError(err).Warn("Failed to write default config")
		}
	}
	return cfg
}

func newAuthManager() *auth.Manager {
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		logrus.Fatalf("Failed to locate cookie store: %v", err)
	}
	return auth.NewManager(auth.NewCookieStore(path))
}

func runLogin() {
	mgr := newAuthManager()
	logrus.Info("Opening browser for Facebook login...")
	if err := mgr.Login(context.Background()); err != nil {
		logrus.Fatalf("Login failed: %v", err)
	}
	logrus.Info("Login successful, cookies saved")
}

func runLogout() {
	mgr := newAuthManager()
	if err := mgr.Logout(); err != nil {
		logrus.Fatalf("Logout failed: %v", err)
	}
	logrus.Info("Stored cookies cleared")
}

func runExtract(postURL string) {
	cfg := loadConfig()
	mgr := newAuthManager()

	if !mgr.IsAuthenticated() {
		logrus.Fatal("Not logged in - run `fbgrab login` first")
	}

	cache := identity.NewCache(newHTTPOracle(), mgr.SelfID())
	result, err := extractOne(context.Background(), cfg, mgr, cache, postURL)
	if err != nil {
		logrus.Fatalf("Extraction failed: %v", err)
	}
	if result == nil {
		logrus.Warn("Extraction cancelled")
		return
	}

	if err := persist(cfg, result); err != nil {
		logrus.Fatalf("Failed to persist result: %v", err)
	}
}

// extractOne runs one full extraction of a post in a fresh browser. The
// identity cache outlives the call: identities resolved here stay available
// to later extractions in the same process. Returns nil without error when
// the extraction was cancelled.
func extractOne(ctx context.Context, cfg *config.Config, mgr *auth.Manager, cache *identity.Cache, postURL string) (*store.Result, error) {
	cookies, err := mgr.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}

	opts := browseropts.Options(cfg.Browser.Headless)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := auth.Inject(browserCtx, cookies); err != nil {
		return nil, fmt.Errorf("failed to inject cookies: %w", err)
	}

	sess := session.New(browserCtx)
	ext := extract.New(sess, cache, mgr,
		time.Duration(cfg.Extraction.SettleDelayMs)*time.Millisecond)

	info, err := ext.Initialize(ctx, postURL)
	if err != nil {
		return nil, err
	}

	progress := func(frac float64) bool {
		logrus.Infof("Progress: %.0f%%", frac*100)
		return true
	}

	comments, err := ext.ExtractComments(ctx, extract.Options{
		ResolveMentionIdentities:   cfg.Extraction.ResolveMentionIdentities,
		IncludeAuthenticatedPass:   cfg.Extraction.AuthenticatedPass,
		IncludeDeauthenticatedPass: cfg.Extraction.DeauthenticatedPass,
	}, progress)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		return nil, nil
	}

	reactions, err := ext.ExtractReactions(ctx, progress)
	if err != nil {
		return nil, err
	}
	if reactions == nil {
		return nil, nil
	}

	shares, err := ext.ExtractShares(ctx, progress)
	if err != nil {
		return nil, err
	}
	if shares == nil {
		return nil, nil
	}

	result := &store.Result{
		Post:        info,
		Ref:         postURL,
		Comments:    comments.InOrder(),
		ExtractedAt: time.Now(),
	}
	for _, r := range reactions {
		result.Reactions = append(result.Reactions, r)
	}
	for _, sh := range shares {
		result.Shares = append(result.Shares, sh)
	}

	logrus.WithFields(logrus.Fields{
		"comments":  len(result.Comments),
		"reactions": len(result.Reactions),
		"shares":    len(result.Shares),
	}).Info("Extraction complete")

	return result, nil
}

func persist(cfg *config.Config, result *store.Result) error {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return err
	}

	db, err := store.New(filepath.Join(cacheDir, "fbgrab.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	seen, err := db.PostExists(result.Post.PostID)
	if err != nil {
		return err
	}
	if err := db.SaveResult(result); err != nil {
		return err
	}
	if seen {
		logrus.WithField("post_id", result.Post.PostID).Info("Updated previously extracted post")
	}

	outDir, err := cfg.OutputDir()
	if err != nil {
		return err
	}
	path, err := store.Export(outDir, result)
	if err != nil {
		return err
	}
	logrus.Infof("Result exported to: %s", path)
	return nil
}

func runWatch() {
	cfg := loadConfig()
	mgr := newAuthManager()

	if !mgr.IsAuthenticated() {
		logrus.Fatal("Not logged in - run `fbgrab login` first")
	}
	if len(cfg.Watch.Posts) == 0 {
		logrus.Fatal("No posts configured under [watch] in config")
	}

	sched, err := scheduler.New(cfg.Watch.Timezone)
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}

	// One cache for the whole watch process: actor identities resolved in one
	// run carry over to every later scheduled run.
	cache := identity.NewCache(newHTTPOracle(), mgr.SelfID())

	for i, postURL := range cfg.Watch.Posts {
		postURL := postURL
		name := fmt.Sprintf("watch-%d", i+1)
		job := func(ctx context.Context) error {
			result, err := extractOne(ctx, cfg, mgr, cache, postURL)
			if err != nil {
				return err
			}
			if result == nil {
				return nil
			}
			return persist(cfg, result)
		}
		if err := sched.AddWatchJob(name, cfg.Watch.IntervalHours, job); err != nil {
			logrus.Fatalf("Failed to schedule %s: %v", name, err)
		}
	}

	sched.Start()
	defer sched.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	logrus.Info("Shutting down")
}

func runBotTest() {
	logrus.Info("Opening bot.sannysoft.com with stealth browser options...")

	opts := browseropts.Options(false) // non-headless so you can see it

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	go func() {
		err := chromedp.Run(ctx,
			chromedp.Navigate("https://bot.sannysoft.com"),
		)
		if err != nil {
			logrus.Errorf("Failed to navigate: %v", err)
		}
	}()

	fmt.Println("Press Enter to end program...")
	fmt.Scanln()
}

func runOpen(target string) {
	cfg := loadConfig()

	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "output":
		path, err = cfg.OutputDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		logrus.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		logrus.Fatalf("Failed to open: %v", err)
	}
}

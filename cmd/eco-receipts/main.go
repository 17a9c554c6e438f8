package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/eco-receipts/internal/receipt"
	"github.com/zombor/eco-receipts/internal/scanning"
	"github.com/zombor/eco-receipts/internal/server"
	"github.com/zombor/eco-receipts/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	flags := ff.NewFlagSet("eco-receipts")
	var (
		port        = flags.IntLong("port", 8080, "HTTP server port")
		dbPath      = flags.StringLong("db", "eco-receipts.db", "Database file path for sessions and accounts")
		storagePath = flags.StringLong("storage", "./receipts", "Directory for uploaded receipt files")
		seedFile    = flags.StringLong("seed-file", "", "JSON export to load receipts from instead of the demo data")
		jwtSecret   = flags.StringLong("jwt-secret", "", "Secret used to sign session tokens (required)")
		tokenTTL    = flags.DurationLong("token-ttl", 24*time.Hour, "Session token lifetime")
		loadDelay   = flags.DurationLong("load-delay", time.Second, "Simulated latency of the initial receipt load")
		scanDelay   = flags.DurationLong("scan-delay", 2*time.Second, "Simulated latency of receipt scanning")
		authDelay   = flags.DurationLong("auth-delay", time.Second, "Simulated latency of login and register")
		logLevel    = flags.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat   = flags.StringLong("log-format", "text", "Log format: text or json")
		_           = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("ECO_RECEIPTS"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := setupLogging(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jwtSecret == "" {
		slog.Error("JWT secret is required. Set --jwt-secret flag or ECO_RECEIPTS_JWT_SECRET environment variable")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "path", *dbPath)
	db, err := session.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...", "path", *storagePath)
	storage, err := receipt.NewDiskStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	scanner := scanning.NewSimulated(*scanDelay, scanning.DefaultText)
	defer scanner.Close()

	var source receipt.Source = receipt.NewSeedSource(*loadDelay)
	if *seedFile != "" {
		source = receipt.FileSource{Path: *seedFile}
	}
	receipts := receipt.NewStore(source, scanner, storage)
	go func() {
		if err := receipts.Load(ctx); err != nil {
			slog.Error("Initial receipt load failed", "error", err)
		}
	}()

	tokens, err := session.NewTokens(*jwtSecret, *tokenTTL)
	if err != nil {
		slog.Error("Failed to initialize tokens", "error", err)
		os.Exit(1)
	}
	sessions := session.NewStore(db, session.NewAccounts(db, *authDelay), tokens)
	if err := sessions.Restore(ctx); err != nil {
		slog.Warn("Could not restore session", "error", err)
	} else if sessions.Current().State == session.Unverified {
		if err := sessions.Verify(ctx); err != nil {
			slog.Warn("Restored session is no longer valid", "error", err)
		}
	}

	srv := server.New(receipts, sessions)
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if err := srv.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shut down")
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// Package main implements the libresync CLI: log in and out of the
// LibreLinkUp account, inspect the stored session and run a one-off
// foreground sync.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/config"
	"github.com/libresync/libresync/internal/credstore"
	"github.com/libresync/libresync/internal/db"
	"github.com/libresync/libresync/internal/linkup"
	"github.com/libresync/libresync/internal/logger"
	"github.com/libresync/libresync/internal/metrics"
	"github.com/libresync/libresync/internal/normalize"
	"github.com/libresync/libresync/internal/repository"
	"github.com/libresync/libresync/internal/service"
	"github.com/libresync/libresync/internal/wearable"
)

var (
	version   string
	buildDate string
)

// promptMissing asks for whichever of the email and password flags were
// left empty.
func promptMissing(email, password string) (string, string) {
	scanner := bufio.NewScanner(os.Stdin)
	if email == "" {
		fmt.Print("Email: ")
		scanner.Scan()
		email = strings.TrimSpace(scanner.Text())
	}
	if password == "" {
		fmt.Print("Password: ")
		scanner.Scan()
		password = scanner.Text()
	}
	return email, password
}

// runSync performs one foreground sync run and prints the outcome. The
// daemon does not need to be stopped for this; the run shares its stores.
func runSync(ctx context.Context, cfg *config.Config, store *credstore.Store) {
	if cfg.Health.DatabaseDSN == "" {
		log.Fatal("health.database_dsn is required for a foreground sync")
	}
	postgresDB, err := db.InitPostgres(cfg.Health.DatabaseDSN)
	if err != nil {
		log.Fatal(err)
	}

	var mirror wearable.Mirror = wearable.NopMirror{}
	if cfg.Wearable.Enabled {
		m, err := wearable.NewNATSMirror(cfg.Wearable, logger.New())
		if err != nil {
			log.Fatal(err)
		}
		mirror = m
	}
	defer mirror.Close()

	svc := service.NewSyncService(
		linkup.NewClient(cfg.LinkUp, zap.NewNop()),
		store,
		repository.NewPostgresReadingRepository(postgresDB),
		normalize.New(zap.NewNop()),
		mirror,
		metrics.Nop{},
		cfg.Health.Origin,
		zap.NewNop(),
	)

	if err := svc.RunOnce(ctx); err != nil {
		var authErr *linkup.AuthError
		switch {
		case errors.Is(err, service.ErrNoConnections):
			log.Fatal("no patient connection is shared with this account")
		case errors.Is(err, service.ErrNoMeasurement):
			log.Fatal("the shared connection has no current measurement")
		case errors.As(err, &authErr):
			log.Fatal("session rejected, log in again with -cmd login")
		}
		log.Fatal(err)
	}

	if last := svc.Status(ctx).LastReading; last != nil {
		fmt.Printf("Synced %d mg/dL recorded at %s\n",
			last.ValueMgPerDl, last.RecordedAt.Format(time.RFC3339))
	}
}

// main parses command-line flags and dispatches to the login, logout,
// status or sync commands.
func main() {
	var (
		cmd        string
		configPath string
		email      string
		password   string
		showVer    bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: login | logout | status | sync")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&email, "email", "", "LibreLinkUp account email")
	flag.StringVar(&password, "password", "", "LibreLinkUp account password")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("libresync CLI\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	store, err := credstore.Open(cfg.Store.Path, cfg.Store.Secret, zap.NewNop())
	if err != nil {
		log.Fatalf("cannot open credential store (is the daemon holding it?): %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	switch cmd {
	case "login":
		email, password = promptMissing(email, password)
		if email == "" || password == "" {
			log.Fatal("please provide -email and -password")
		}

		auth := service.NewAuthService(
			linkup.NewClient(cfg.LinkUp, zap.NewNop()),
			store, metrics.Nop{}, zap.NewNop(),
		)
		user, err := auth.Login(ctx, email, password)
		if err != nil {
			var authErr *linkup.AuthError
			if errors.As(err, &authErr) {
				msg := authErr.Message
				if msg == "" {
					msg = "check your email and password"
				}
				log.Fatalf("login rejected: %s", msg)
			}
			log.Fatal(err)
		}
		fmt.Printf("Logged in as %s\n", user.Email)
	case "logout":
		auth := service.NewAuthService(
			linkup.NewClient(cfg.LinkUp, zap.NewNop()),
			store, metrics.Nop{}, zap.NewNop(),
		)
		if err := auth.Logout(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Logged out, stored session cleared")
	case "status":
		ticket, user := store.Load(ctx)
		if ticket == nil || ticket.Token == "" {
			fmt.Println("Not logged in")
			return
		}
		if user != nil {
			fmt.Printf("Logged in as %s (%s)\n", user.Email, user.ID)
		} else {
			fmt.Println("Logged in")
		}
		fmt.Printf("Ticket expires: %s\n", time.Unix(ticket.Expires, 0).Format(time.RFC1123))

		if cfg.Health.DatabaseDSN != "" {
			postgresDB, err := db.InitPostgres(cfg.Health.DatabaseDSN)
			if err != nil {
				log.Fatal(err)
			}
			count, err := repository.NewPostgresReadingRepository(postgresDB).CountReadings(ctx)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Stored readings: %d\n", count)
		}
	case "sync":
		runSync(ctx, cfg, store)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
}

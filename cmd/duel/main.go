package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/udovin/duel/internal/api"
	"github.com/udovin/duel/internal/config"
	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/db"
	"github.com/udovin/duel/internal/migrations"
	"github.com/udovin/duel/internal/pkg/logs"
)

var testCtx, testCancel = context.WithCancel(context.Background())

func resolveFile(files ...string) (string, error) {
	for _, file := range files {
		if len(file) == 0 {
			continue
		}
		if _, err := os.Stat(file); err == nil {
			return file, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", os.ErrNotExist
}

// getConfig reads config with filename from '--config' flag.
func getConfig(cmd *cobra.Command) (config.Config, error) {
	flagFilename, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	envFilename := os.Getenv("DUEL_CONFIG")
	resolved, err := resolveFile(flagFilename, envFilename)
	if err != nil {
		return config.Config{}, err
	}
	return config.LoadFromFile(resolved)
}

func isServerError(err error) bool {
	return err != nil && err != http.ErrServerClosed
}

func newServer(logger *logs.Logger) *echo.Echo {
	srv := echo.New()
	srv.Logger = logger
	srv.HideBanner, srv.HidePort = true, true
	srv.Pre(middleware.RemoveTrailingSlash())
	srv.Use(middleware.Recover())
	return srv
}

// serverMain starts Duel server.
//
// Server listens on TCP address from "server" section and optionally
// on unix socket. Both listeners serve the same API.
func serverMain(cmd *cobra.Command, _ []string) {
	cfg, err := getConfig(cmd)
	if err != nil {
		panic(err)
	}
	if cfg.Server == nil {
		panic("section 'server' should be configured")
	}
	c, err := core.NewCore(cfg)
	if err != nil {
		panic(err)
	}
	c.SetupAllStores()
	if err := c.Start(); err != nil {
		panic(err)
	}
	defer c.Stop()
	v := api.NewView(c)
	if err := v.StartDaemons(); err != nil {
		panic(err)
	}
	var waiter sync.WaitGroup
	defer waiter.Wait()
	ctx, cancel := signal.NotifyContext(
		testCtx, os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()
	var servers []*echo.Echo
	if file := cfg.SocketFile; file != "" {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			panic(err)
		}
		srv := newServer(c.Logger())
		if srv.Listener, err = net.Listen("unix", file); err != nil {
			panic(err)
		}
		v.Register(srv.Group("/socket"))
		servers = append(servers, srv)
		waiter.Add(1)
		go func() {
			defer waiter.Done()
			defer cancel()
			if err := srv.Start(""); isServerError(err) {
				c.Logger().Error(err)
			}
		}()
	}
	srv := newServer(c.Logger())
	v.Register(srv.Group("/api"))
	servers = append(servers, srv)
	waiter.Add(1)
	go func() {
		defer waiter.Done()
		defer cancel()
		if err := srv.Start(cfg.Server.Address()); isServerError(err) {
			c.Logger().Error(err)
		}
	}()
	defer func() {
		// Event streams never finish on their own.
		v.Close()
		ctx, cancel := context.WithTimeout(
			context.Background(), time.Minute,
		)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(ctx); err != nil {
				c.Logger().Error(err)
			}
		}
	}()
	select {
	case <-ctx.Done():
	case <-c.Context().Done():
	}
}

func migrateMain(cmd *cobra.Command, args []string) {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		panic(err)
	}
	cfg, err := getConfig(cmd)
	if err != nil {
		panic(err)
	}
	c, err := core.NewCore(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = c.Close() }()
	c.SetupAllStores()
	var options []db.MigrateOption
	if len(args) > 0 {
		if !force {
			panic("Trying to apply dangerous migration without '--force'")
		}
		options = append(options, db.WithMigration(args[0]))
	}
	if err := db.ApplyMigrations(
		context.Background(), c.DB, "duel", migrations.Schema,
		options...,
	); err != nil {
		panic(err)
	}
}

func versionMain(cmd *cobra.Command, _ []string) {
	println("duel version:", config.Version)
}

// main is a main entry point.
//
// Duel provides HTTP API of live coding sessions and tournaments
// ("server" command) and CLI for database migrations ("migrate" command).
func main() {
	rootCmd := cobra.Command{Use: os.Args[0]}
	rootCmd.PersistentFlags().String("config", "config.json", "")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "server",
		Run:   serverMain,
		Short: "Starts API server",
	})
	migrateCmd := cobra.Command{
		Use:   "migrate",
		Run:   migrateMain,
		Short: "Applies migrations to database",
	}
	migrateCmd.Flags().Bool("force", false, "Force dangerous migration")
	rootCmd.AddCommand(&migrateCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Run:   versionMain,
		Short: "Prints information about version",
	})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

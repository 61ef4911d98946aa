package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-client/backendfake"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/internal/logging"
	"github.com/rs/zerolog/log"
)

const (
	demoName     = "Demo User"
	demoEmail    = "demo@byzxpo.test"
	demoPassword = "password"
	demoCountry  = "NG"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("fake backend stopped with an error")
	}
	log.Info().Msg("fake backend stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, c.LogLevel, c.IsDev())
	logging.SetGlobal(logger)

	displayAppname(c.AppName + " Fake")

	backend, err := backendfake.New(backendfake.WithEnv(c.Env), backendfake.WithLogger(logger))
	if err != nil {
		return err
	}
	if c.IsDev() {
		if _, err := backend.CreateAccount(demoName, demoEmail, demoPassword, demoCountry); err != nil {
			return fmt.Errorf("seed demo account: %w", err)
		}
		logger.Info().Str("email", demoEmail).Str("password", demoPassword).Msg("demo account created")
		if pem, err := backend.PublicKeyPEM(); err == nil {
			logger.Info().Str("issuer", backend.Issuer()).Msg("access tokens are signed with:\n" + pem)
		}
	}

	server := &http.Server{Addr: c.FakeBackendAddr, Handler: backend, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(server)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Str("api", backendfake.APIPrefix).Msg("fake backend listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

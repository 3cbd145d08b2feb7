package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"medagent/clinicaltrials"
	"medagent/logger"
)

const toolsVersion = "1.0.0"

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Host the clinical-trials registry tools",
}

var toolsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registry tools as an HTTP API",
	RunE:  runToolsServe,
}

var toolsMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the registry tools as an MCP stdio server",
	RunE:  runToolsMCP,
}

var flagToolsAddr string

func init() {
	toolsServeCmd.Flags().StringVar(&flagToolsAddr, "addr", ":8080", "listen address")

	toolsCmd.AddCommand(toolsServeCmd)
	toolsCmd.AddCommand(toolsMCPCmd)
	rootCmd.AddCommand(toolsCmd)
}

func newTrialService(log logger.Logger) *clinicaltrials.Service {
	return clinicaltrials.NewService(
		clinicaltrials.NewClient(log),
		clinicaltrials.NewNominatimGeocoder("medagent/"+toolsVersion),
		log,
	)
}

func runToolsServe(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	srv := &http.Server{
		Addr:    flagToolsAddr,
		Handler: clinicaltrials.NewHTTPServer(newTrialService(log), log).Router(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("trial tools listening", logger.String("addr", flagToolsAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runToolsMCP(_ *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	s := clinicaltrials.NewMCPServer(newTrialService(log), toolsVersion)
	return server.ServeStdio(s)
}

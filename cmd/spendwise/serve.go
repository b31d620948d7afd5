package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HarshGadhecha/SpendWise/internal/auth"
	"github.com/HarshGadhecha/SpendWise/internal/certs"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/config"
	"github.com/HarshGadhecha/SpendWise/internal/docstore"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document store over HTTP",
		Long: `Serve the configured sqlite or postgres document store over HTTP so that
clients using the http remote driver can share it. Requests must carry a
bearer token signed with server.jwt_secret (see 'spendwise token').

With --tls the server uses a self-signed certificate for server.hosts kept in
server.cert_dir. Clients trust it by pointing remote.ca_file at server.crt.`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default: server.addr)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if cmd.Flags().Changed("tls") {
		cfg.Server.TLS, _ = cmd.Flags().GetBool("tls")
	}
	if cfg.Remote.Driver == docstore.DriverHTTP {
		return common.NewUserError("serve needs a sqlite or postgres remote driver, not http", common.ErrInvalidConfig)
	}

	tokens, err := auth.NewTokenManager(cfg.Server.JWTSecret, "", cfg.Server.TokenTTL)
	if err != nil {
		return err
	}
	backend, err := openRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("failed to close document store", "error", err)
		}
	}()

	handler := docstore.NewServer(backend, tokens, docstore.ServerConfig{RatePerMinute: cfg.Server.RatePerMinute})
	defer func() {
		if err := handler.Close(); err != nil {
			slog.Error("failed to close live queries", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listen := server.ListenAndServe
	if cfg.Server.TLS {
		issuer := certs.NewIssuer(cfg.Server.CertDir, cfg.Server.Hosts)
		if server.TLSConfig, err = issuer.TLSConfig(); err != nil {
			return fmt.Errorf("failed to prepare certificate: %w", err)
		}
		listen = func() error { return server.ListenAndServeTLS("", "") }
		slog.Info("Using self-signed certificate", "cert", issuer.CertFile(), "hosts", cfg.Server.Hosts)
	}

	errorChan := make(chan error, 1)
	go func() {
		if err := listen(); !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errorChan)
	}()
	common.LogInfo("Serving document store", common.Fields{
		"addr":   cfg.Server.Addr,
		"driver": cfg.Remote.Driver,
		"tls":    cfg.Server.TLS,
	})

	select {
	case err := <-errorChan:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

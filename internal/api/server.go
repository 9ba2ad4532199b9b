package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"staybook/internal/config"
	"staybook/internal/domain"
	"staybook/internal/filter"
	"staybook/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
)

// CatalogReader lists the catalog and resolves display names.
type CatalogReader interface {
	ListProperties(ctx context.Context) ([]*models.Property, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	filter.NameResolver
}

// Deps are the services both transports call into.
type Deps struct {
	Bookings    domain.BookingService
	Catalog     CatalogReader
	Idempotency domain.IdempotencyStore
}

type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, deps Deps, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	grpcServer, err := newGRPCServer(cfg, deps, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}

	var serverLogger zerolog.Logger
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	return &GRPCServer{
		server:   grpcServer,
		listener: lis,
		log:      serverLogger,
	}, nil
}

func newGRPCServer(cfg *config.APIConfig, deps Deps, logger *zerolog.Logger) (*grpc.Server, error) {
	auth := newAuthenticator(*cfg)
	unary := ChainUnaryInterceptors(
		LoggingUnaryInterceptor(logger),
		MetricsUnaryInterceptor(),
		auth.UnaryInterceptor(),
	)

	serverOpts := []grpc.ServerOption{grpc.UnaryInterceptor(unary)}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := serverTLS(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterBookingServiceServer(grpcServer, NewBookingGRPCService(deps))

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}
	return grpcServer, nil
}

// serverTLS loads the gRPC keypair and, for mutual TLS, the client CA pool.
func serverTLS(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("api.grpc.tls: cert_file and key_file are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("api.grpc.tls: keypair: %w", err)
	}

	out := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if !cfg.RequireClientCert {
		return out, nil
	}

	pool, err := certPool(cfg.ClientCAFile)
	if err != nil {
		return nil, err
	}
	out.ClientAuth = tls.RequireAndVerifyClientCert
	out.ClientCAs = pool
	return out, nil
}

func certPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, errors.New("api.grpc.tls: client_ca_file is required with require_client_cert")
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("api.grpc.tls: client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("api.grpc.tls: no certificates in %s", path)
	}
	return pool, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

const grpcStopGrace = 10 * time.Second

// Shutdown drains in-flight calls and falls back to a hard stop when ctx ends
// or the grace period passes.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.server.GracefulStop()
	}()

	timer := time.NewTimer(grpcStopGrace)
	defer timer.Stop()

	select {
	case <-drained:
		return
	case <-ctx.Done():
	case <-timer.C:
	}
	s.log.Warn().Msg("gRPC drain incomplete, forcing stop")
	s.server.Stop()
}

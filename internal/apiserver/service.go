// Package apiserver hosts the settlement engine over the Postgres-backed
// ledger and exposes it as a JSON HTTP surface: instruction endpoints for
// every mutating operation, read endpoints over the engine state and the
// event-log projections, and a websocket event stream.
package apiserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AymanF10/ecosystem/backend/internal/aggregator"
	"github.com/AymanF10/ecosystem/backend/internal/config"
	"github.com/AymanF10/ecosystem/backend/internal/deployer"
	"github.com/AymanF10/ecosystem/backend/internal/ledger"
	"github.com/AymanF10/ecosystem/backend/internal/store"
	"github.com/AymanF10/ecosystem/backend/internal/token"
	"github.com/AymanF10/ecosystem/backend/internal/transferhook"
)

// EventStore is the slice of the Postgres store the API surface reads and
// writes: the append-only event log and its query projections.
type EventStore interface {
	RecordEvent(ctx context.Context, ev deployer.Event) error
	Events(ctx context.Context, filter store.EventFilter) ([]store.EventRecord, error)
	Ecosystems(ctx context.Context) ([]store.EcosystemRow, error)
	MerchantBalances(ctx context.Context, ecosystemMint string) ([]store.MerchantBalanceRow, error)
	WithdrawalRequests(ctx context.Context, ecosystemMint, status string) ([]store.WithdrawalRequestRow, error)
	Close() error
}

type Service struct {
	cfg              config.APIServerConfig
	logger           *slog.Logger
	events           EventStore
	engine           *deployer.Engine
	led              ledger.Store
	tokens           *token.Runtime
	gate             *transferhook.Gate
	router           *aggregator.MockRouter
	hub              *eventHub
	allowAllOrigins  bool
	allowedOriginSet map[string]struct{}
}

func New(cfg config.APIServerConfig, logger *slog.Logger) (*Service, error) {
	st, err := store.NewStore(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	svc, err := newService(cfg, logger, st, st.Ledger())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return svc, nil
}

func newService(cfg config.APIServerConfig, logger *slog.Logger, events EventStore, led ledger.Store) (*Service, error) {
	tokens := token.NewRuntime()
	gate := transferhook.NewGate(tokens)
	tokens.RegisterGate(transferhook.ProgramID, gate)
	router := aggregator.NewMockRouter(tokens, cfg.Engine.AggregatorProgramID)
	hub := newEventHub()

	sink := deployer.SinkFunc(func(ev deployer.Event) {
		if err := events.RecordEvent(context.Background(), ev); err != nil {
			logger.Error("failed to record event", "event", ev.Name(), "err", err)
		}
		hub.Publish(ev)
	})

	engine, err := deployer.NewEngine(deployer.EngineConfig{
		Store:             led,
		Tokens:            tokens,
		Aggregator:        router,
		AggregatorProgram: cfg.Engine.AggregatorProgramID,
		SettlementMint:    cfg.Engine.SettlementMint,
		SettlementProgram: token.TokenProgramID,
		PointsMint:        cfg.Engine.PointsMint,
		Events:            sink,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	allowAllOrigins := false
	allowedOriginSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAllOrigins = true
			continue
		}
		allowedOriginSet[trimmed] = struct{}{}
	}
	if len(allowedOriginSet) == 0 && !allowAllOrigins {
		allowAllOrigins = true
	}

	svc := &Service{
		cfg:              cfg,
		logger:           logger,
		events:           events,
		engine:           engine,
		led:              led,
		tokens:           tokens,
		gate:             gate,
		router:           router,
		hub:              hub,
		allowAllOrigins:  allowAllOrigins,
		allowedOriginSet: allowedOriginSet,
	}
	if err := svc.bootstrapMints(led); err != nil {
		return nil, fmt.Errorf("bootstrap mints: %w", err)
	}
	return svc, nil
}

// bootstrapMints makes sure the two fixed token identities exist in the
// hosted ledger: the settlement mint (minted by the mock aggregator when a
// route lands) and the shared points mint (minted under the points mint
// authority during fee settlement). Both creates are idempotent.
func (s *Service) bootstrapMints(led ledger.Store) error {
	return led.Update(func(v ledger.View) error {
		if _, err := s.tokens.GetMint(v, s.cfg.Engine.SettlementMint); err != nil {
			if !errors.Is(err, token.ErrMintNotFound) {
				return err
			}
			if err := s.tokens.CreateMint(v, token.TokenProgramID, s.cfg.Engine.SettlementMint, 6, s.router.MintAuthority(), nil); err != nil {
				return err
			}
		}
		if _, err := s.tokens.GetMint(v, s.cfg.Engine.PointsMint); err != nil {
			if !errors.Is(err, token.ErrMintNotFound) {
				return err
			}
			pointsAuthority, _, err := deployer.DerivePointsMintAuthorityPDA()
			if err != nil {
				return err
			}
			if err := s.tokens.CreateMint(v, token.Token2022ProgramID, s.cfg.Engine.PointsMint, 6, pointsAuthority, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.events.Close(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	server := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	s.logger.Info("api-server started",
		"listen_addr", s.cfg.ListenAddr,
		"db_driver", "postgres",
		"allowed_origins", strings.Join(s.cfg.AllowedOrigins, ","),
	)

	select {
	case <-ctx.Done():
		s.logger.Info("api-server stopping")
		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown api-server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	}
}

// Handler builds the full route table.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/config", s.handleConfig)
	mux.HandleFunc("/v1/approvers", s.handleApprovers)
	mux.HandleFunc("/v1/ecosystems", s.handleEcosystems)
	mux.HandleFunc("/v1/ecosystems/", s.handleEcosystem)
	mux.HandleFunc("/v1/merchant-balances", s.handleMerchantBalances)
	mux.HandleFunc("/v1/withdrawal-requests", s.handleWithdrawalRequests)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/instructions/", s.handleInstruction)
	mux.HandleFunc("/v1/admin/mints", s.handleAdminMints)
	mux.HandleFunc("/v1/admin/token-accounts", s.handleAdminTokenAccounts)
	mux.HandleFunc("/v1/admin/mint-to", s.handleAdminMintTo)
	mux.HandleFunc("/ws", s.handleWebsocket)
	return s.withCORS(mux)
}

type healthResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			allowed := s.allowAllOrigins
			if !allowed {
				_, allowed = s.allowedOriginSet[origin]
			}

			if allowed {
				if s.allowAllOrigins {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "300")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	if s.allowAllOrigins {
		return true
	}
	_, ok := s.allowedOriginSet[origin]
	return ok
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/server"
	"go.uber.org/fx"

	internalapi "github.com/MinhTuanPham/Dealer-Payment-Desk/internal/api"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
	appconfig "github.com/MinhTuanPham/Dealer-Payment-Desk/internal/config"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/desk"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/deskobj"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/events"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/journal"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/secrets"
	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	var cleanup func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			cleanup = telemetry.InitTracer(cfg.ServiceName)
			return nil
		},
		OnStop: func(context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})
}

// newSQLDB opens the receipt journal database. The desk keeps running
// without it; the journal is best-effort by design.
func newSQLDB(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) *sql.DB {
	logger.Printf("Connecting to PostgreSQL database %s@%s:%d", cfg.Database.Database, cfg.Database.Host, cfg.Database.Port)
	db, err := journal.Open(cfg.Database)
	if err != nil {
		logger.Printf("WARNING: receipt journal unavailable: %v", err)
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db
}

func newJournalRepository(db *sql.DB) *journal.Repository {
	if db == nil {
		return nil
	}
	return journal.NewRepository(db)
}

func newProducer(lc fx.Lifecycle, cfg appconfig.Config) *events.Producer {
	prod := events.NewProducer(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newDeskService(lc fx.Lifecycle, cfg appconfig.Config, prod *events.Producer, repo *journal.Repository) *desk.Service {
	client := backend.NewClient(nil)
	session := backend.Session{BaseURL: cfg.Backend.BaseURL, Token: cfg.Backend.Token}
	svc := desk.NewService(client, session, prod, repo, cfg.Kafka.PaymentsTopic)
	deskobj.SetService(svc)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			svc.Shutdown()
			return nil
		},
	})
	return svc
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, svc *desk.Service) {
	mux := http.NewServeMux()
	internalapi.RegisterDeskRoutes(mux, svc)
	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Printf("Desk API available on %s", cfg.HTTP.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("Desk API server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func buildRestateServer() *server.Restate {
	srv := server.NewRestate()

	deskVirtualObject := restate.NewObject(deskobj.ServiceName).
		Handler("RecordCashPayment", restate.NewObjectHandler(deskobj.RecordCashPayment)).
		Handler("InitiateGatewayPayment", restate.NewObjectHandler(deskobj.InitiateGatewayPayment))
	srv = srv.Bind(deskVirtualObject)

	return srv
}

func registerRestateServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, srv *server.Restate) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Println("Restate server listening on", cfg.Restate.ListenAddr)
			logger.Println("")
			logger.Println("Service Architecture:")
			logger.Println("  - PaymentDeskService: VIRTUAL OBJECT (keyed by order ID)")
			logger.Println("  - Desk Endpoints: HTTP API (/desk/orders, /desk/vnpay/return, /desk/returns)")
			logger.Println("")
			displayRestateAddr := cfg.Restate.ListenAddr
			if strings.HasPrefix(displayRestateAddr, ":") {
				displayRestateAddr = "localhost" + displayRestateAddr
			}
			logger.Printf("Register with Restate: restate deployments register http://%s", displayRestateAddr)

			go func() {
				defer close(done)
				if err := srv.Start(ctx, cfg.Restate.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
					logger.Printf("Restate server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

func main() {
	_ = godotenv.Load()
	if err := secrets.Bootstrap(context.Background()); err != nil {
		log.Fatalf("secrets bootstrap failed: %v", err)
	}

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newSQLDB,
			newJournalRepository,
			newProducer,
			newDeskService,
			buildRestateServer,
		),
		fx.Invoke(
			setupTelemetry,
			registerWebServer,
			registerRestateServer,
		),
	)
	app.Run()
}

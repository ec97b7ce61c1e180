package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"firmdesk/backend/internal/audit"
	auditrepo "firmdesk/backend/internal/audit/repository"
	casesrepo "firmdesk/backend/internal/cases/repository"
	"firmdesk/backend/internal/config"
	"firmdesk/backend/internal/db"
	dbmigrate "firmdesk/backend/internal/db/migrate"
	invitationrepo "firmdesk/backend/internal/invitation/repository"
	membership "firmdesk/backend/internal/membership/service"
	"firmdesk/backend/internal/notification"
	orgrepo "firmdesk/backend/internal/organization/repository"
	"firmdesk/backend/internal/payment"
	policyengine "firmdesk/backend/internal/policy/engine"
	reassignment "firmdesk/backend/internal/reassignment/service"
	"firmdesk/backend/internal/security"
	"firmdesk/backend/internal/server"
	userrepo "firmdesk/backend/internal/user/repository"
	"firmdesk/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.MigrateOnStart {
		if err := dbmigrate.Run(cfg.DatabaseURL, "up"); err != nil {
			zlog.Fatal("migrations failed", zap.Error(err))
		}
		zlog.Info("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		zlog.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	var notifier notification.Notifier = notification.NopNotifier{}
	if brokers := cfg.NotificationKafkaBrokersList(); len(brokers) > 0 {
		kn, err := notification.NewKafkaNotifier(brokers, cfg.NotificationKafkaTopic)
		if err != nil {
			zlog.Fatal("kafka notifier init failed", zap.Error(err))
		}
		notifier = kn
		defer kn.Close()
	} else {
		zlog.Warn("no kafka brokers configured, notifications disabled")
	}

	var verifier payment.Verifier
	if cfg.PaymentGatewayURL != "" {
		verifier = payment.NewGatewayClient(cfg.PaymentGatewayKey, cfg.PaymentGatewayURL)
	} else {
		zlog.Warn("no payment gateway configured, seat increases require policy exemption")
	}

	policy := policyengine.NewOPAEvaluator("")
	if err := policy.HealthCheck(context.Background()); err != nil {
		zlog.Fatal("billing policy failed to compile", zap.Error(err))
	}

	txRunner := db.NewTxRunner(pool)
	orgs := orgrepo.NewPostgresRepository(pool)
	users := userrepo.NewPostgresRepository(pool)
	invitations := invitationrepo.NewPostgresRepository(pool)
	cases := casesrepo.NewPostgresRepository(pool)
	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(pool), nil)
	hasher := security.NewHasher(cfg.BcryptCost)

	membershipSvc := membership.NewMembershipService(
		txRunner, orgs, users, invitations, cases,
		verifier, policy, notifier, auditLog, hasher,
		cfg.InvitationValidity(),
	)
	reassignmentSvc := reassignment.NewReassignmentService(txRunner, orgs, users, cases)

	authVerifier, err := server.NewAuthVerifier(cfg)
	if err != nil {
		zlog.Fatal("auth verifier init failed", zap.Error(err))
	}

	e := server.New(server.Deps{
		Membership:   server.NewMembershipHandler(membershipSvc, zlog),
		Reassignment: server.NewReassignmentHandler(reassignmentSvc, zlog),
		Auth:         authVerifier,
		Log:          zlog,
	})

	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("serve failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown failed", zap.Error(err))
	}
	zlog.Info("http server stopped")
}

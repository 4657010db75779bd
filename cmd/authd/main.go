package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fixmarket/corelink/internal/pkg/apiclient"
	"github.com/fixmarket/corelink/internal/pkg/auth"
	"github.com/fixmarket/corelink/internal/pkg/broker"
	"github.com/fixmarket/corelink/internal/pkg/env"
)

const reconnectDelay = 5 * time.Second

func main() {
	env.SetupEnvFile()

	secret := env.GetEnv("AUTH_TOKEN_SECRET", "")
	if secret == "" {
		log.Fatal("[Auth] AUTH_TOKEN_SECRET is not configured")
	}
	tokenTTL := time.Duration(env.GetEnvInt("AUTH_TOKEN_TTL_MIN", 60)) * time.Minute

	service := auth.NewService(auth.NewAPIVerifier(apiclient.NewFromEnv()), secret, tokenTTL)
	responder := broker.NewResponder(broker.ConfigFromEnv(), "users.login")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		err := responder.Serve(ctx, service.HandleLogin)
		if ctx.Err() != nil {
			log.Info("[Auth] Stopping")
			return
		}
		log.Errorf("[Auth] Responder stopped: %v, reconnecting in %s", err, reconnectDelay)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			log.Info("[Auth] Stopping")
			return
		}
	}
}

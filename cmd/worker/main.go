package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/fixmarket/corelink/app/repository"
	"github.com/fixmarket/corelink/internal/pkg/apiclient"
	"github.com/fixmarket/corelink/internal/pkg/cache"
	"github.com/fixmarket/corelink/internal/pkg/database"
	"github.com/fixmarket/corelink/internal/pkg/dispatcher"
	"github.com/fixmarket/corelink/internal/pkg/env"
	"github.com/fixmarket/corelink/internal/pkg/handlers"
	"github.com/fixmarket/corelink/internal/pkg/hub"
)

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	workerID := env.GetEnv("WORKER_ID", "")
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	}

	repos := repository.NewFactory(database.GetDB()).GetRepositories()
	hubClient := hub.NewClient(hub.ConfigFromEnv(), repos.OutboundEvent, repos.PublishedEvent)
	api := apiclient.NewFromEnv()

	routes := map[dispatcher.Topic]handlers.Handler{
		dispatcher.TopicUsers:   handlers.NewUsersHandler(api),
		dispatcher.TopicReviews: handlers.NewReviewsHandler(api),
		dispatcher.TopicOrders:  handlers.NewOrdersHandler(api),
	}

	pollInterval := time.Duration(env.GetEnvInt("POLL_INTERVAL_SEC", 2)) * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("[Worker] Starting %s", workerID)
	d := dispatcher.New(workerID, repos.InboundEvent, hubClient, routes, dispatcher.WithPollInterval(pollInterval))
	d.Run(ctx)
	log.Infof("[Worker] %s stopped", workerID)
}

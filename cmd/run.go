package cmd

import (
	"context"
	"fmt"
	"time"

	"retos/api"
	"retos/config"
	"retos/database"
	"retos/events"
	"retos/repository"
	"retos/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eventBus := events.NewBus()
	subscribeNotifications(eventBus)

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	userService := service.NewUserService(uowFactory, cfg.StartingGoldBalance, cfg.StartingSilverBalance)
	wagerService := service.NewWagerService(uowFactory, cfg.VoteQuorum, cfg.VoteRetryLimit)

	server := api.NewServer(cfg, userService, wagerService)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.WithField("environment", cfg.Environment).Info("Engine is running")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}

	return nil
}

// subscribeNotifications attaches the placeholder notification dispatcher.
// Delivery is out of scope here; downstream systems subscribe to the same
// events.
func subscribeNotifications(bus *events.Bus) {
	bus.Subscribe(events.EventTypeWagerProposed, func(ctx context.Context, event events.Event) {
		e := event.(events.WagerProposedEvent)
		log.WithFields(log.Fields{
			"wagerID":  e.WagerID,
			"proposer": e.ProposerAlias,
			"opponent": e.OpponentAlias,
			"amount":   e.Amount,
		}).Info("Wager proposed")
	})

	bus.Subscribe(events.EventTypeWagerResolved, func(ctx context.Context, event events.Event) {
		e := event.(events.WagerResolvedEvent)
		log.WithFields(log.Fields{
			"wagerID": e.WagerID,
			"outcome": e.Outcome,
			"winner":  e.WinnerAlias,
			"pot":     e.Pot,
		}).Info("Wager resolved")
	})
}

package cmd

import (
	"context"
	"time"

	"bloomdispatch/config"
	"bloomdispatch/cron"
	"bloomdispatch/database"
	bookingRepo "bloomdispatch/database/repository/booking"
	providerRepo "bloomdispatch/database/repository/provider"
	settingsRepo "bloomdispatch/database/repository/settings"
	"bloomdispatch/services/booking"
	"bloomdispatch/services/matching"
	"bloomdispatch/services/notification"
	"bloomdispatch/services/payment"
	"bloomdispatch/services/sweep"
	"bloomdispatch/utils"

	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

const settingsCacheTTL = 60 * time.Second

// app holds the wiring shared by every command.
type app struct {
	logger    *zap.Logger
	bookings  *bookingRepo.MongoBookingRepo
	providers *providerRepo.MongoProviderRepo
	settings  settingsRepo.SettingsRepository
	queue     *asynq.Client
	responses *booking.DefaultResponseService
	sweeper   *sweep.Sweeper
}

func bootstrap() *app {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	stripe.Key = config.AppConfig.StripeKey

	bookings := bookingRepo.NewMongoBookingRepo()
	providers := providerRepo.NewMongoProviderRepo()
	settings := &settingsRepo.CachedSettingsRepo{
		Next:   settingsRepo.NewMongoSettingsRepo(),
		Cache:  utils.GetCacheClient(),
		TTL:    settingsCacheTTL,
		Logger: logger,
	}

	loc := config.DefaultLocation()
	queue := asynq.NewClient(cron.RedisOpt())
	dispatcher := notification.NewQueueDispatcher(
		queue,
		notification.LinkBuilder{BaseURL: config.AppConfig.PublicBaseURL},
		config.AppConfig.OpsNotificationTopic,
		loc,
		logger,
	)

	finder := &matching.DefaultCandidateFinder{
		ProviderRepo:    providers,
		BookingRepo:     bookings,
		DefaultLocation: loc,
		Logger:          logger,
	}
	transitions := booking.NewTransitioner(bookings, dispatcher, logger)

	responses := booking.NewResponseService(bookings, providers, finder, transitions, payment.NewStripeCapturer(logger), loc, logger)
	sweeper := sweep.NewSweeper(bookings, finder, transitions, sweep.Options{
		GraceWindow:              time.Duration(config.AppConfig.SweepGraceMinutes) * time.Minute,
		ExcludedReferencePattern: config.AppConfig.SweepExcludedReferencePattern,
		DefaultLocation:          loc,
	}, logger)

	return &app{
		logger:    logger,
		bookings:  bookings,
		providers: providers,
		settings:  settings,
		queue:     queue,
		responses: responses,
		sweeper:   sweeper,
	}
}

func (a *app) ensureIndexes(ctx context.Context) {
	if err := a.bookings.EnsureIndexes(ctx); err != nil {
		a.logger.Warn("failed to ensure booking indexes", zap.Error(err))
	}
	if err := a.providers.EnsureIndexes(ctx); err != nil {
		a.logger.Warn("failed to ensure provider indexes", zap.Error(err))
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.queue.Close(); err != nil {
		a.logger.Warn("failed to close task queue client", zap.Error(err))
	}
	database.Disconnect(ctx)
	_ = a.logger.Sync()
}

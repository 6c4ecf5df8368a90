package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloomdispatch/config"
	"bloomdispatch/database"
	"bloomdispatch/handlers"
	"bloomdispatch/middleware"
	"bloomdispatch/routes"
	"bloomdispatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var ensureIndexes bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (response links, internal sweep trigger, health)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := bootstrap()
			defer a.close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if ensureIndexes {
				a.ensureIndexes(ctx)
			}
			utils.StartHealthMonitor(ctx, utils.GetCacheClient(), database.MongoClient)

			if config.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery())
			router.Use(utils.ErrorHandler())
			router.Use(middleware.RequestLogger(a.logger))
			router.SetHTMLTemplate(handlers.ResponseTemplates())

			responseHandler := handlers.NewResponseHandler(a.responses, a.settings)
			sweepHandler := handlers.NewSweepHandler(a.sweeper, a.settings)
			routes.RegisterRoutes(router, &handlers.HandlerBundle{
				RespondHandler:  responseHandler.RespondHandler,
				RunSweepHandler: sweepHandler.RunSweepHandler,
				HealthHandler:   handlers.HealthHandler,
				AdminToken:      config.AppConfig.AdminToken,
			}, config.AppConfig.MaxRequestsPerMin)

			srv := &http.Server{
				Addr:    "0.0.0.0:" + config.AppConfig.AppPort,
				Handler: router,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting server", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("server is shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			a.logger.Info("server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&ensureIndexes, "ensure-indexes", true, "create MongoDB indexes on startup")
	return cmd
}

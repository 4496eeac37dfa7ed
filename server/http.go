package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	evaluationHandler "worker-evaluation/handler"
	"worker-evaluation/pkg/rabbitmq"
	"worker-evaluation/pkg/watcher"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := BuildDependencies(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("BuildDependencies")
	}
	defer deps.Dispatcher.Stop()

	serviceDeps := evaluationHandler.ServiceDependencies{
		Repo:     deps.Repo,
		Pipeline: deps.Pipeline,
		Uploads:  deps.Uploads,
	}

	if cfg.Queue.Enabled() {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		} else {
			evaluationConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.EvaluationQueue, cfg.Server.Workers, evaluationHandler.EvaluationHandler)
			go func() {
				err := evaluationConsumer.Consume(ctx, serviceDeps)
				if err != nil && !errors.Is(err, context.Canceled) {
					zerolog.Ctx(ctx).Error().Err(err).Msg("Evaluation consumer error")
				}
			}()
		}
	}

	if cfg.Uploads.Watch {
		uploads := watcher.New(deps.Uploads.Dir, evaluationHandler.UploadHandler(serviceDeps),
			watcher.WithStability(cfg.Uploads.StabilityThreshold, cfg.Uploads.PollInterval))
		go func() {
			if err := uploads.Run(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Upload watcher error")
			}
		}()
	}

	r := NewRouter(ctx, deps)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelShutdown()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

// NewRouter builds the gin engine. Request contexts carry the logger from ctx.
func NewRouter(ctx context.Context, deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(zerolog.Ctx(ctx)))
	addHealth(r)
	addMetrics(r)
	addEvaluationRoutes(r, deps)
	return r
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carpenike/repcoach/internal/agent"
	"github.com/carpenike/repcoach/internal/analysis"
	"github.com/carpenike/repcoach/internal/config"
	"github.com/carpenike/repcoach/internal/confirm"
	"github.com/carpenike/repcoach/internal/database"
	"github.com/carpenike/repcoach/internal/events"
	"github.com/carpenike/repcoach/internal/handlers"
	"github.com/carpenike/repcoach/internal/inbound"
	"github.com/carpenike/repcoach/internal/llm"
	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/media"
	"github.com/carpenike/repcoach/internal/notify"
	"github.com/carpenike/repcoach/internal/records"
	"github.com/carpenike/repcoach/internal/scheduler"
	"github.com/carpenike/repcoach/internal/store"
	"github.com/carpenike/repcoach/internal/transport/twilio"
	"github.com/carpenike/repcoach/internal/transport/whatsapp"
	"github.com/carpenike/repcoach/internal/workouts"
)

const (
	webhookLimitPerMinute = 30
	apiLimitPerMinute     = 120
	shutdownTimeout       = 15 * time.Second
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode, cfg.LogHashSalt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("repcoach exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrationsContext(ctx, db); err != nil {
		return err
	}
	log.Info("database ready", "path", filepath.Clean(cfg.DBPath))

	sqlite := store.NewSQLite(db)
	var st store.Store = sqlite
	var locker records.Locker = records.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		st = store.WithRedisPending(sqlite, rdb, log)
		locker = records.NewRedisLocker(rdb, 10*time.Second)
		log.Info("redis enabled", "addr", cfg.RedisAddr)
	}

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer pub.Close()

	notifier := notify.New(cfg.NotifyURLs, log)
	defer notifier.Wait()

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:          cfg.LLMAPIKey,
		BaseURL:         cfg.LLMBaseURL,
		Model:           cfg.LLMModel,
		VisionModel:     cfg.LLMVisionModel,
		TranscribeModel: cfg.LLMTranscribeModel,
		Timeout:         cfg.LLMTimeout,
		MaxRetries:      2,
	})

	var analyzer *analysis.LLMAnalyzer
	if cfg.VideoIntelligenceEnable {
		vi, err := analysis.NewVideoIntelligence(ctx, cfg.GoogleCredentialsFile, log)
		if err != nil {
			return err
		}
		defer vi.Close()
		analyzer = analysis.NewLLMAnalyzer(provider, vi, log)
	} else {
		analyzer = analysis.NewLLMAnalyzer(provider, nil, log)
	}

	ingestor, err := media.NewGCSIngestor(ctx, media.Options{
		Bucket:          cfg.GCSBucket,
		PublicBaseURL:   cfg.GCSPublicBaseURL,
		CredentialsFile: cfg.GoogleCredentialsFile,
		BasicAuthUser:   cfg.TwilioAccountSID,
		BasicAuthPass:   cfg.TwilioAuthToken,
	}, log)
	if err != nil {
		return err
	}

	svc := workouts.NewService(sqlite, records.NewEngine(sqlite, locker), records.NewRecorder(sqlite), pub, notifier, log)

	g, gctx := errgroup.WithContext(ctx)

	var sender inbound.Sender
	var wa *whatsapp.Carrier
	switch {
	case cfg.TwilioEnabled():
		sender = twilio.New(twilio.Options{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFromNumber,
		}, log)
		log.Info("twilio carrier enabled")
	case cfg.WhatsAppEnabled:
		wa, err = whatsapp.New(ctx, cfg.WhatsAppStorePath, log)
		if err != nil {
			return err
		}
		sender = wa
		log.Info("whatsapp web carrier enabled", "store", cfg.WhatsAppStorePath)
	default:
		return errors.New("no carrier configured: set TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN or WHATSAPP_ENABLED")
	}

	router := inbound.NewRouter(inbound.Deps{
		Store:    st,
		Media:    ingestor,
		Analyzer: analyzer,
		Dialogue: confirm.NewDialogue(st, analyzer, cfg.PendingTTL, log),
		Agent:    agent.New(st, analyzer, cfg.HistoryTurns, log),
		Sender:   sender,
		Log:      log,
	})

	if wa != nil {
		wa.SetHandler(func(ctx context.Context, ev inbound.Event) {
			router.Handle(ctx, ev)
		})
		g.Go(func() error { return wa.Run(gctx) })
	}

	api := handlers.New(handlers.Deps{
		Store:        st,
		Workouts:     svc,
		Inbound:      router,
		Log:          log,
		WebhookLimit: webhookLimitPerMinute,
		APILimit:     apiLimitPerMinute,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := scheduler.New(db, cfg.MaintenanceInterval, cfg.Retention, log)
	sched.Start()
	defer sched.Stop()

	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

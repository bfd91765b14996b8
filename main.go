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

	"github.com/BatmanBruc/club-membership-bot/internal/access"
	"github.com/BatmanBruc/club-membership-bot/internal/config"
	"github.com/BatmanBruc/club-membership-bot/internal/content"
	"github.com/BatmanBruc/club-membership-bot/internal/dashboard"
	"github.com/BatmanBruc/club-membership-bot/internal/handlers"
	"github.com/BatmanBruc/club-membership-bot/internal/leaderboard"
	"github.com/BatmanBruc/club-membership-bot/internal/membership"
	"github.com/BatmanBruc/club-membership-bot/internal/messages"
	"github.com/BatmanBruc/club-membership-bot/internal/middleware"
	"github.com/BatmanBruc/club-membership-bot/internal/notify"
	"github.com/BatmanBruc/club-membership-bot/internal/pending"
	"github.com/BatmanBruc/club-membership-bot/internal/pricing"
	"github.com/BatmanBruc/club-membership-bot/internal/scheduler"
	"github.com/BatmanBruc/club-membership-bot/internal/transport"
	"github.com/BatmanBruc/club-membership-bot/store"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type stores struct {
	memberships types.MembershipStore
	pending     types.PendingStore
	traces      types.TraceStore
	settings    types.SettingsStore
	oldMembers  types.OldMemberStore
	leaderboard types.LeaderboardStore
	closers     []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == "memory" {
		log.Println("Warning: using in-memory store, nothing survives a restart.")
		mem := store.NewMemoryStore()
		return &stores{
			memberships: mem,
			pending:     mem,
			traces:      mem,
			settings:    mem,
			oldMembers:  mem,
			leaderboard: mem,
		}, nil
	}

	rdb, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	if err != nil {
		return nil, err
	}
	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	return &stores{
		memberships: pgStore,
		pending:     store.NewRedisPendingStore(rdb, cfg.PendingTTLHours),
		traces:      store.NewRedisTraceStore(rdb),
		settings:    pgStore,
		oldMembers:  pgStore,
		leaderboard: store.NewRedisLeaderboardStore(rdb),
		closers:     []func(){func() { rdb.Close() }, pgStore.Close},
	}, nil
}

func main() {
	_ = config.LoadEnvFile("config.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer st.Close()

	cache := store.NewMembershipCache(st.memberships)
	if err := cache.Reload(ctx); err != nil {
		log.Fatalf("Failed to load memberships: %v", err)
	}

	httpClient := &http.Client{
		Timeout: 2 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	admins := access.NewAdmins(cfg.AdminIDs, cfg.CreatorIDs)
	dispatcher := notify.NewDispatcher(transport.NewBotMessenger(b), st.traces, admins.IDs())
	engine := membership.NewEngine(membership.Deps{
		Memberships: cache,
		Pending:     st.pending,
		OldMembers:  st.oldMembers,
		Dispatcher:  dispatcher,
		Admins:      admins,
	}, membership.Config{
		GroupID:            cfg.GroupID,
		GracePeriod:        cfg.GracePeriod,
		UpcomingWindowDays: cfg.UpcomingWindowDays,
		GraceOfferDays:     cfg.GraceOfferDays,
		Location:           cfg.Location,
	})
	catalog := pricing.NewCatalog(st.settings, st.oldMembers)
	tracker := pending.NewTracker(st.pending, engine, catalog, dispatcher, cfg.Location, cfg.WaitingReminderAfter)
	poster := content.NewPoster(st.settings, dispatcher, cfg.GroupID, cfg.Location)
	board := leaderboard.NewBoard(st.leaderboard, dispatcher, cfg.GroupID, cfg.Location)

	paymentCheck := func(ctx context.Context) (membership.Summary, error) {
		sum, err := engine.RunPaymentCheck(ctx)
		log.Printf("Payment check: %d checked, %d reminded, %d expired, %d grace ended, %d lapsed, %d failed",
			sum.Checked, sum.Reminded, sum.Expired, sum.GraceEnded, sum.Lapsed, sum.Failed)
		return sum, err
	}

	taskScheduler, err := scheduler.NewScheduler([]scheduler.Trigger{
		{Name: "payment-check", At: cfg.PaymentCheckTimes, Job: func(ctx context.Context) error {
			_, err := paymentCheck(ctx)
			return err
		}},
		{Name: "grace-expiry", Every: time.Minute, Job: func(ctx context.Context) error {
			_, err := engine.CheckGraceExpiry(ctx)
			return err
		}},
		{Name: "waiting-reminder", Every: time.Minute, Job: func(ctx context.Context) error {
			_, err := tracker.RemindWaiting(ctx)
			return err
		}},
		{Name: "reminder-cleanup", At: []string{cfg.ReminderCleanupTime}, Job: func(ctx context.Context) error {
			traces, reflagged, err := engine.MidnightCleanup(ctx)
			log.Printf("Reminder cleanup: %d traces removed, %d members re-flagged", traces, reflagged)
			return err
		}},
		{Name: "content-post", At: cfg.ContentPostTimes, WeekdaysOnly: true, Job: poster.Post},
		{Name: "leaderboard", At: []string{cfg.LeaderboardTime}, Job: board.PostDaily},
		{Name: "membership-reload", Every: cfg.ReloadInterval, Job: cache.Reload},
	}, scheduler.Config{
		Location:      cfg.Location,
		FallbackDelay: cfg.LoopFallbackDelay,
	})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	h := handlers.NewHandlers(handlers.Deps{
		Tracker:         tracker,
		Engine:          engine,
		Leaderboard:     board,
		Dispatcher:      dispatcher,
		Admins:          admins,
		RunPaymentCheck: paymentCheck,
	})

	middlewares := middleware.NewMessageAnalyzer(cfg.GroupID)
	handlerChain := middlewares.RecoverMiddleware(
		middlewares.AnalyzeMessageMiddleware(
			h.MainHandler,
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	taskScheduler.Start()
	defer taskScheduler.Stop()

	if cfg.DashboardAddr != "" {
		srv := &http.Server{
			Addr: cfg.DashboardAddr,
			Handler: dashboard.NewServer(dashboard.Sources{
				Memberships: cache,
				Pending:     st.pending,
				Settings:    st.settings,
				OldMembers:  st.oldMembers,
			}, dashboard.Config{
				Token:     cfg.DashboardToken,
				RateLimit: cfg.DashboardRateLimit,
			}).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Dashboard listening on %s", cfg.DashboardAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Dashboard stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dispatcher.Broadcast(ctx, messages.Title("Membership bot started"), nil)
	log.Println("Bot started. Press Ctrl+C to stop.")
	b.Start(ctx)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"streakEngine/config"
	"streakEngine/database"
	"streakEngine/logger"
	"streakEngine/metrics"
	"streakEngine/scheduler"
	"streakEngine/scheduler/scheduler_jobs"
	"streakEngine/services"
	"streakEngine/services/ledgerService"
	"streakEngine/services/notifyService"
	"streakEngine/services/resolutionService"
)

func main() {
	audit := flag.Bool("audit", false, "check every user's streak against the ledger and exit")
	remediate := flag.String("remediate", "", "resolve a RESOLUTION_FAILED parlay by id and exit")
	once := flag.Bool("once", false, "run one lock scan and one resolution scan, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("error migrating database", zap.Error(err))
	}
	if err := services.RunLastLegEndTimeBackfill(db, log); err != nil {
		log.Fatal("backfill failed", zap.Error(err))
	}

	ledger := ledgerService.NewLedger(log.Named("ledger"))

	if *audit {
		os.Exit(runAudit(db, ledger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	fanOut, closeSinks := buildNotifiers(ctx, cfg, log, m)
	defer closeSinks()

	engine := resolutionService.NewEngine(db, ledger, fanOut, log, m, resolutionService.Config{
		RetryBudget:     cfg.RetryBudget,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		PushPolicy:      cfg.PushPolicy,
	})

	if *remediate != "" {
		id, err := strconv.ParseUint(*remediate, 10, 64)
		if err != nil {
			log.Fatal("invalid parlay id", zap.String("remediate", *remediate), zap.Error(err))
		}
		if err := engine.Remediate(ctx, uint(id)); err != nil {
			log.Fatal("remediation failed", zap.Error(err))
		}
		return
	}

	orderer := resolutionService.NewOrderer(engine, log, m, cfg.MaxLanes)

	if *once {
		if _, err := scheduler_jobs.CheckGameStart(db, log, m, time.Now()); err != nil {
			log.Error("lock scan failed", zap.Error(err))
		}
		scan, err := scheduler_jobs.CheckGameEnd(ctx, db, orderer, log, m)
		if err != nil {
			log.Error("resolution scan failed", zap.Error(err))
		}
		orderer.Wait()
		log.Info("single pass done", zap.Int("released", scan.Released), zap.Int("withheld", scan.Withheld))
		return
	}

	srv := metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	cronService, err := scheduler.SetupCron(ctx, db, orderer, log, m, scheduler.Specs{
		LockScan:       cfg.LockScanSpec,
		ResolutionScan: cfg.ResolutionScanSpec,
	})
	if err != nil {
		log.Fatal("could not start scheduler", zap.Error(err))
	}

	log.Info("streak engine running",
		zap.String("lock_scan", cfg.LockScanSpec),
		zap.String("resolution_scan", cfg.ResolutionScanSpec),
		zap.String("push_policy", string(cfg.PushPolicy)),
		zap.Any("insurance_base_cost", cfg.Insurance.BaseCost),
		zap.Any("insurance_brackets", cfg.Insurance.Brackets),
	)
	<-ctx.Done()

	log.Info("shutting down")
	<-cronService.Stop().Done()
	orderer.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildNotifiers wires every configured sink behind one delivery queue. Sinks
// that fail to start are logged and left out; notifications are advisory.
func buildNotifiers(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*notifyService.FanOut, func()) {
	var sinks []notifyService.Notifier
	var closers []func()

	if len(cfg.KafkaBrokers) > 0 {
		k := notifyService.NewKafkaNotifier(notifyService.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		sinks = append(sinks, k)
		closers = append(closers, func() { _ = k.Close() })
	}

	if cfg.RedisAddr != "" {
		rdb, err := notifyService.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis notifier disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notifyService.NewRedisNotifier(rdb, cfg.RedisChannel))
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		dg, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err == nil {
			err = dg.Open()
		}
		if err != nil {
			log.Warn("discord notifier disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notifyService.NewDiscordNotifier(dg, cfg.DiscordChannelID, cfg.DiscordRatePerSecond))
			closers = append(closers, func() { _ = dg.Close() })
		}
	}

	fanOut := notifyService.NewFanOut(log.Named("notify"), m, cfg.NotifyQueueSize, sinks...)
	return fanOut, func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fanOut.Close(drainCtx); err != nil {
			log.Warn("notification queue not drained", zap.Error(err))
		}
		for _, c := range closers {
			c()
		}
	}
}

func runAudit(db *gorm.DB, ledger *ledgerService.Ledger) int {
	violations, err := ledger.AuditAll(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		return 1
	}
	if len(violations) == 0 {
		fmt.Println("ledger consistent")
		return 0
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("User", "Seq", "Problem")
	for _, v := range violations {
		table.Append(strconv.FormatUint(uint64(v.UserID), 10), strconv.FormatUint(uint64(v.Seq), 10), v.Problem)
	}
	table.Render()
	return 2
}

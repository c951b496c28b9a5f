package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/config"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/db"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/discovery"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/logger"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/tracing"
	"github.com/FleetLinkBook/FleetLinkBook/internal/event"
	"github.com/FleetLinkBook/FleetLinkBook/internal/notification"
	"github.com/FleetLinkBook/FleetLinkBook/internal/report"
	"github.com/FleetLinkBook/FleetLinkBook/internal/scheduler"
	"github.com/FleetLinkBook/FleetLinkBook/internal/server"
	"github.com/FleetLinkBook/FleetLinkBook/internal/setting"
	"github.com/FleetLinkBook/FleetLinkBook/internal/user"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

func main() {
	var (
		configPath    = flag.String("config", "configs/config.json", "配置文件路径")
		consulKVKey   = flag.String("consul-config-key", "", "从Consul KV加载配置的键（优先于文件）")
		adminUser     = flag.String("admin-user", "admin", "初始管理员用户名")
		adminPassword = flag.String("admin-password", "", "初始管理员口令（为空则不创建）")
	)
	flag.Parse()

	// 配置：Consul KV优先，其次本地文件
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		bootstrap := config.GetConfig()
		cfg, err = config.LoadConfigFromConsulKV(bootstrap.Consul.Host, bootstrap.Consul.Port, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	// 链路追踪
	_, closer, err := tracing.InitTracer(cfg.Server.Name, cfg.Jaeger.Endpoint, cfg.Jaeger.Sampler)
	if err != nil {
		log.Warnf("init tracer: %v (tracing disabled)", err)
	} else {
		defer closer.Close()
	}

	// 数据库
	gormDB, err := db.NewMySQL(cfg.Database.Host, cfg.Database.Port,
		cfg.Database.User, cfg.Database.Password, cfg.Database.Database,
		cfg.Database.MaxIdle, cfg.Database.MaxOpen)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&vehicle.Vehicle{}, &booking.Booking{}, &user.User{},
		&notification.Notification{}, &setting.Setting{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	// Redis（报表缓存；连不上不影响主流程）
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warnf("redis unreachable: %v (report cache disabled)", err)
		rdb = nil
	}

	// 事件扇出：站内通知必挂，MQTT按配置挂
	notifRepo := notification.NewRepo(gormDB)
	notifs := notification.NewService(notifRepo)
	subs := []event.Publisher{notification.NewBridge(notifRepo)}
	if cfg.MQTT.Enabled {
		mqttPub, err := event.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			log.Warnf("mqtt publisher disabled: %v", err)
		} else {
			defer mqttPub.Close()
			subs = append(subs, mqttPub)
		}
	}
	fanout := event.NewFanout(subs...)

	// 业务引擎
	lockWait := time.Duration(cfg.Booking.LockWaitMS) * time.Millisecond
	locks := vehicle.NewLocks()
	bookings := booking.NewService(gormDB, locks, fanout, lockWait, log)
	vehicles := vehicle.NewService(vehicle.NewRepo(gormDB), locks, bookings.Repo(), lockWait)
	users := user.NewService(user.NewRepo(gormDB), cfg.Auth)
	settings := setting.NewStore(gormDB)
	reports := report.NewService(bookings.Repo(), vehicle.NewRepo(gormDB), rdb, log)

	if *adminPassword != "" {
		if err := users.EnsureAdmin(context.Background(), *adminUser, *adminPassword); err != nil {
			log.Fatalf("ensure admin account: %v", err)
		}
	}

	// 后台巡检
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := scheduler.NewSweeper(bookings.Repo(), vehicle.NewRepo(gormDB), notifs, settings,
		time.Duration(cfg.Booking.SweepIntervalMinutes)*time.Minute, log)
	go sweeper.Run(sweepCtx)

	// 服务注册
	if consulClient, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port); err != nil {
		log.Warnf("consul unreachable: %v (registration skipped)", err)
	} else {
		serviceID := fmt.Sprintf("%s-%s", cfg.Server.Name, uuid.NewString()[:8])
		registry := discovery.NewServiceRegistry(consulClient, serviceID,
			cfg.Server.Name, cfg.Server.Host, cfg.Server.HTTPPort, []string{"booking", "fleet"})
		if err := registry.Register(); err != nil {
			log.Warnf("consul register: %v", err)
		} else {
			defer func() {
				if err := registry.Deregister(); err != nil {
					log.Warnf("consul deregister: %v", err)
				}
			}()
		}
	}

	srv := server.New(cfg, log, server.Deps{
		Bookings:      bookings,
		Vehicles:      vehicles,
		Users:         users,
		Notifications: notifs,
		Reports:       reports,
		Settings:      settings,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("http server: %v", err)
		}
	case sig := <-quit:
		log.Infof("received signal %s, shutting down", sig)
		stopSweep()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("graceful shutdown: %v", err)
		}
	}
}

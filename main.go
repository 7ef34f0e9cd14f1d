package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"matchroom-service/internal/auth"
	"matchroom-service/internal/config"
	"matchroom-service/internal/db"
	"matchroom-service/internal/handlers"
	"matchroom-service/internal/health"
	"matchroom-service/internal/matchmaking"
	"matchroom-service/internal/middleware"
	"matchroom-service/internal/notifications"
	"matchroom-service/internal/observability"
	"matchroom-service/internal/rabbitmq"
	"matchroom-service/internal/repositories"
	"matchroom-service/internal/scheduler"
	"matchroom-service/internal/telemetry"
	"matchroom-service/internal/ws"
)

type store struct {
	matches  repositories.MatchRepository
	chats    repositories.ChatRepository
	members  repositories.MembershipRepository
	bookings repositories.BookingRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("amqp publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, observability.AuditRoutingKey, observability.TracerName, cfg.Env)

	checks := map[string]health.Checker{}
	st, closeStore, err := openStore(ctx, cfg, checks)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer closeStore()

	var revocations auth.Revocations
	if cfg.RedisURL != "" {
		redisRevocations, err := auth.NewRedisRevocations(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisRevocations.Close()
		checks["redis"] = redisRevocations
		revocations = redisRevocations
	}
	validator := auth.NewValidator(cfg.JWTSecret, revocations)

	hub := ws.NewHub()
	svc := matchmaking.NewService(st.matches, st.chats, st.members, st.bookings, matchmaking.Options{
		SystemSenderName: cfg.SystemSenderName,
		HistoryLimit:     cfg.HistoryLimit,
		ChallengeTTL:     cfg.ChallengeTTL,
		Broadcaster:      hub,
		Notifier:         notifications.NewDispatcher(publisher),
		Audit:            audit,
	})
	gateway := ws.NewGateway(hub, svc, validator, cfg.CORSOrigins)

	router := newRouter(cfg, svc, gateway, validator, audit)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("http listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	healthSrv := health.NewServer(30*time.Second, checks)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("failed to listen for grpc: %v", err)
	}
	go func() {
		log.Printf("grpc health listening on :%s", cfg.GRPCPort)
		if err := healthSrv.Serve(lis); err != nil {
			log.Printf("grpc server stopped: %v", err)
		}
	}()
	go healthSrv.Run(ctx)

	sched, err := scheduler.New(svc, cfg.ExpirySweepInterval)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	sched.Start()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	healthSrv.Stop()
	if err := sched.Shutdown(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, checks map[string]health.Checker) (store, func(), error) {
	if cfg.DBDriver == "memory" {
		log.Println("using in-memory store, data is lost on restart")
		mem := repositories.NewMemoryStore()
		checks["store"] = mem
		return store{matches: mem, chats: mem, members: mem, bookings: mem}, func() {}, nil
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return store{}, nil, err
	}
	checks["postgres"] = health.CheckFunc(database.PingContext)
	return store{
		matches:  repositories.NewMatchRepo(database),
		chats:    repositories.NewChatRepo(database),
		members:  repositories.NewMembershipRepo(database),
		bookings: repositories.NewBookingRepo(database),
	}, func() { database.Close() }, nil
}

func newRouter(cfg *config.Config, svc *matchmaking.Service, gateway *ws.Gateway, tokens middleware.TokenResolver, audit *telemetry.AuditEmitter) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "X-Request-Id", "X-Device-Id")
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PUT")
	if len(cfg.CORSOrigins) == 0 || cfg.CORSOrigins[0] == "*" {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(cc))
	router.Use(otelgin.Middleware(observability.TracerName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gateway.Handle)

	matchHandler := handlers.NewMatchHandler(svc)
	roomHandler := handlers.NewRoomHandler(svc)
	authMiddleware := middleware.AuthMiddleware(tokens)

	api := router.Group("/", authMiddleware)
	api.POST("/matches/challenge", matchHandler.CreateChallenge)
	api.GET("/matches/:match_id", matchHandler.GetMatch)
	api.GET("/matches/:match_id/room", matchHandler.GetMatchRoom)
	api.PUT("/matches/:match_id/accept", matchHandler.Accept)
	api.PUT("/matches/:match_id/confirm", matchHandler.Confirm)
	api.PUT("/matches/:match_id/cancel", matchHandler.Cancel)
	api.GET("/rooms/:room_id/messages", roomHandler.GetMessages)

	handlers.RegisterDebugRoutes(api, audit, cfg.DebugRoutes)
	return router
}

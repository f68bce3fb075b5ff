// Package bookings wires the booking confirmation module: repositories,
// the lifecycle service, the sweep, and the HTTP handlers.
package bookings

import (
	apphttp "booking_portal_backend/internal/http"

	"booking_portal_backend/internal/bookings/handler"
	"booking_portal_backend/internal/bookings/reasons"
	"booking_portal_backend/internal/bookings/repository"
	"booking_portal_backend/internal/bookings/service"
	"booking_portal_backend/internal/bookings/sweep"
	"booking_portal_backend/internal/email"
	"booking_portal_backend/internal/events"
	"booking_portal_backend/internal/orders"
	"booking_portal_backend/internal/partners"
	"booking_portal_backend/internal/ticketing"
	"booking_portal_backend/platform/config"
	"booking_portal_backend/platform/db"
	"booking_portal_backend/platform/logger"
	"booking_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// sweepLockKey is the Postgres advisory lock key shared by every
// process that may run the sweep ("BKSW" in ASCII).
const sweepLockKey int64 = 0x424B5357

// Config is the configuration surface of the module.
type Config interface {
	service.Config
	config.SchedulerConfig
}

// Module is the bookings bounded context.
type Module struct {
	Service *service.Service
	Sweeper *sweep.Sweeper

	portal *handler.PortalHandler
	public *handler.PublicHandler
	cron   *handler.CronHandler
}

// New assembles the module. The enqueuer may be nil when no scheduler
// backend is configured; initial request mails are then skipped.
func New(
	pool *pgxpool.Pool,
	cfg Config,
	log *logger.Logger,
	val *validator.Validator,
	bus events.Bus,
	mailer email.Sender,
	tickets ticketing.Client,
	enqueuer service.InitialRequestEnqueuer,
) *Module {
	repo := repository.New(pool)
	registry := reasons.NewRegistry(pool)
	orderRepo := orders.New(pool)
	partnerRepo := partners.New(pool)

	svc := service.New(repo, registry, orderRepo, partnerRepo, tickets, mailer, enqueuer, bus, log, cfg)
	locker := db.NewAdvisoryLock(pool, sweepLockKey)
	sweeper := sweep.New(repo, svc, svc, locker, log, cfg.GetSweepWorkers())

	return &Module{
		Service: svc,
		Sweeper: sweeper,
		portal:  handler.NewPortalHandler(svc, val),
		public:  handler.NewPublicHandler(svc, cfg),
		cron:    handler.NewCronHandler(sweeper),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "bookings" }

// RegisterRoutes mounts the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.portal.RegisterRoutes(ctx.Protected)
	m.public.RegisterRoutes(ctx.Public)
	m.cron.RegisterRoutes(ctx.Cron)
}

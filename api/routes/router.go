package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/miyf-books/api/controllers"
	"github.com/angelmondragon/miyf-books/api/middleware"
	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/cashinhand"
	"github.com/angelmondragon/miyf-books/internal/files"
	"github.com/angelmondragon/miyf-books/internal/receipts"
	"github.com/angelmondragon/miyf-books/internal/transactions"
	"github.com/angelmondragon/miyf-books/internal/users"
	"github.com/angelmondragon/miyf-books/pkg/config"
	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/metrics"
	"github.com/angelmondragon/miyf-books/pkg/redis"
)

// NewRouter wires every HTTP route. idempotencyStore and fileService may be
// nil when Redis or Drive are not configured.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	idempotencyStore redis.IdempotencyStore,
	userService users.Service,
	transactionService transactions.Service,
	cashService cashinhand.Service,
	receiptService receipts.Service,
	fileService files.Service,
	auditService auditlog.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	view := middleware.RequireCapability(enums.CapabilityView, logg)
	create := middleware.RequireCapability(enums.CapabilityCreate, logg)
	approve := middleware.RequireCapability(enums.CapabilityApprove, logg)
	administer := middleware.RequireCapability(enums.CapabilityAdminister, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, userService, logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Redis.IdempotencyTTL, logg))

		r.Route("/sheets", func(r chi.Router) {
			r.With(view).Get("/read", controllers.TransactionsRead(transactionService, logg))
			r.With(view).Get("/read/{key}", controllers.TransactionGet(transactionService, logg))
			r.With(view).Get("/summary", controllers.TransactionsSummary(transactionService, logg))
			r.With(create).Post("/create", controllers.TransactionCreate(transactionService, logg))
			r.With(create).Put("/update/{key}", controllers.TransactionUpdate(transactionService, logg))
			r.With(approve).Put("/update-record-status", controllers.TransactionUpdateStatus(transactionService, logg))
			r.With(approve).Post("/update-record-status", controllers.TransactionUpdateStatus(transactionService, logg))
			r.With(approve).Delete("/delete/{key}", controllers.TransactionDelete(transactionService, logg))

			r.With(view).Get("/cash-in-hand", controllers.CashInHandRead(cashService, logg))
			r.With(approve).Post("/cash-in-hand", controllers.CashInHandAdjust(cashService, logg))

			r.Route("/receipts", func(r chi.Router) {
				r.With(view).Get("/read", controllers.ReceiptsRead(receiptService, logg))
				r.With(create).Post("/create", controllers.ReceiptCreate(receiptService, logg))
				r.With(create).Patch("/update-display-name", controllers.ReceiptUpdateDisplayName(receiptService, logg))
				r.With(create).Delete("/delete/{receiptKey}", controllers.ReceiptDelete(receiptService, logg))
			})

			r.With(view).Get("/audit-log", controllers.AuditLogRead(auditService, logg))
			r.With(view).Delete("/audit-log", controllers.AuditLogClear(auditService, logg))
		})

		r.Route("/drive", func(r chi.Router) {
			r.With(create).Post("/upload", controllers.DriveUpload(receiptService, fileService, logg))
			r.With(approve).Delete("/delete/{fileId}", controllers.DriveDelete(fileService, logg))
			r.With(view).Get("/check/{fileId}", controllers.DriveCheck(fileService, logg))
			r.With(view).Get("/list", controllers.DriveList(fileService, logg))
			r.With(create).Patch("/rename/{fileId}", controllers.DriveRename(fileService, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.With(view).Get("/me", controllers.UsersMe(logg))
			r.With(administer).Get("/", controllers.UsersList(userService, logg))
			r.With(administer).Patch("/{uid}/role", controllers.UsersSetRole(userService, logg))
		})
	})

	return r
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	appcart "github.com/Zhima-Mochi/storefront-orders/internal/application/cart"
	appinv "github.com/Zhima-Mochi/storefront-orders/internal/application/inventory"
	appnotify "github.com/Zhima-Mochi/storefront-orders/internal/application/notification"
	apporder "github.com/Zhima-Mochi/storefront-orders/internal/application/order"
	apppay "github.com/Zhima-Mochi/storefront-orders/internal/application/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/clock"
	"github.com/Zhima-Mochi/storefront-orders/internal/config"
	domcart "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domnotify "github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/notify"
	infraobs "github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/storefront-orders/internal/presentation/http"
	"github.com/Zhima-Mochi/storefront-orders/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// stores groups the storage ports so memory and postgres wiring look the same to the rest.
type stores struct {
	orders    domorder.Repository
	intents   saga.Repository
	ledger    dominv.Ledger
	carts     domcart.Repository
	customers domnotify.CustomerDirectory
}

// app is the fully wired service. closers run in reverse order on Close.
type app struct {
	cfg       *config.Config
	zap       *zap.Logger
	log       observability.Logger
	tel       observability.Observability
	registry  *prometheus.Registry
	bus       *outbox.Bus
	gateway   dompay.Gateway
	reconcile *apporder.ReconcileUseCase
	handler   http.Handler
	closers   []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	base, err := logging.NewLogger(logging.Options{
		Service: cfg.Service,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(base)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters, histograms := prometrics.New(registry, "").Standard()
	logger := zaplogger.New(logging.WithTrace(base, logging.SystemTraceID, logging.SystemSpanID))
	tel := infraobs.New(oteltrace.New(cfg.Service), logger, counters, histograms)

	a := &app{cfg: cfg, zap: base, log: logger, tel: tel, registry: registry}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}
	if a.gateway, err = a.openGateway(); err != nil {
		return nil, err
	}

	a.bus = outbox.NewBus(tel)
	kc := kafka.NewClient(cfg.Kafka.Brokers)
	if kc.Enabled() {
		writer := kc.NewWriter(cfg.Kafka.EventsTopic)
		a.closers = append(a.closers, func(context.Context) error { return writer.Close() })
		kafka.NewRelay(writer, tel).Attach(a.bus,
			domorder.PlacedEvent{}.EventName(),
			domorder.StatusChangedEvent{}.EventName(),
			domorder.FulfillmentRiskEvent{}.EventName(),
		)
	}

	notifier, err := a.openNotifier(kc)
	if err != nil {
		return nil, err
	}
	templates, err := notify.DefaultTemplates()
	if err != nil {
		return nil, err
	}
	dispatcher := appnotify.NewDispatcher(st.customers, notifier, templates, tel)
	appnotify.NewWorker(a.bus, dispatcher, cfg.Notifier.OperatorEmail, tel).Start()

	clk := clock.NewSystem()
	deps := apporder.Dependencies{
		Orders:    st.orders,
		Intents:   st.intents,
		Ledger:    st.ledger,
		Carts:     st.carts,
		Gateway:   a.gateway,
		Publisher: a.bus,
		IDs:       id.NewUUIDGenerator(),
		Tracking:  id.NewTrackingGenerator("SP", clk),
		Clock:     clk,
		LeadTime:  cfg.Orders.LeadTime,
	}
	validator := appinv.NewValidateStockUseCase(st.ledger, cfg.Orders.StockConcurrency, tel)
	a.reconcile = apporder.NewReconcileUseCase(deps, tel)

	h := httppresentation.NewHandler(httppresentation.UseCases{
		ClientToken:    apppay.NewClientTokenUseCase(a.gateway, tel),
		PlaceOrder:     apporder.NewPlaceOrderUseCase(deps, validator, tel),
		UpdateOrder:    apporder.NewUpdateOrderUseCase(deps, dispatcher, tel),
		AddOrderItem:   apporder.NewAddOrderItemUseCase(deps, tel),
		DecrementStock: appinv.NewDecrementStockUseCase(st.ledger, tel),
		ClearCart:      appcart.NewClearCartUseCase(st.carts, tel),
		GetOrder:       apporder.NewGetOrderUseCase(st.orders, tel),
		Lookup:         apporder.NewLookupUseCase(st.orders, st.intents, tel),
	}, tel)
	a.handler = h.Router(map[string]http.Handler{
		"GET /metrics": promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})
	a.bus.Start(ctx)
	return a, nil
}

func (a *app) openStores(ctx context.Context) (stores, error) {
	if a.cfg.Database.URL == "" {
		a.log.Warn("storage_in_memory", observability.F("reason", "database.url not set"))
		clk := clock.NewSystem()
		return stores{
			orders:    memory.NewOrderRepository(),
			intents:   memory.NewIntentRepository(),
			ledger:    memory.NewInventoryRepository(clk),
			carts:     memory.NewCartRepository(),
			customers: memory.NewCustomerDirectory(nil),
		}, nil
	}

	pool, err := a.openPool(ctx)
	if err != nil {
		return stores{}, err
	}
	if a.cfg.Database.Migrate {
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			return stores{}, err
		}
		a.log.Info("migrations_applied", observability.F("names", applied))
	}
	return stores{
		orders:    postgres.NewOrderRepository(pool),
		intents:   postgres.NewIntentRepository(pool),
		ledger:    postgres.NewInventoryRepository(pool),
		carts:     postgres.NewCartRepository(pool),
		customers: postgres.NewCustomerDirectory(pool),
	}, nil
}

func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := postgres.Open(ctx, a.cfg.Database.URL, a.cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, nil
}

func (a *app) openGateway() (dompay.Gateway, error) {
	var gw dompay.Gateway
	switch a.cfg.Gateway.Mode {
	case config.GatewayHTTP:
		httpGW, err := gateway.NewHTTPGateway(gateway.HTTPConfig{
			BaseURL:    a.cfg.Gateway.BaseURL,
			MerchantID: a.cfg.Gateway.MerchantID,
			PublicKey:  a.cfg.Gateway.PublicKey,
			PrivateKey: a.cfg.Gateway.PrivateKey,
			Timeout:    a.cfg.Gateway.Timeout,
		}, nil)
		if err != nil {
			return nil, err
		}
		gw = httpGW
	default:
		a.log.Warn("payment_gateway_sandbox")
		gw = gateway.NewSandbox()
	}
	return apppay.NewInstrumentedGateway(gw, a.tel), nil
}

func (a *app) openNotifier(kc *kafka.Client) (domnotify.Notifier, error) {
	switch a.cfg.Notifier.Channel {
	case config.NotifierSMTP:
		s := a.cfg.Notifier.SMTP
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host: s.Host, Port: s.Port, Username: s.Username, Password: s.Password, From: s.From,
		})
	case config.NotifierKafka:
		writer := kc.NewWriter(a.cfg.Kafka.NotificationTopic)
		a.closers = append(a.closers, func(context.Context) error { return writer.Close() })
		return kafka.NewNotifier(writer), nil
	default:
		return notify.NewLogNotifier(a.log), nil
	}
}

func (a *app) reconcileInput() apporder.ReconcileInput {
	return apporder.ReconcileInput{OlderThan: a.cfg.Reconcile.OlderThan, Limit: a.cfg.Reconcile.Limit}
}

// Close drains the bus and releases connections, newest first.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.bus != nil {
		a.bus.Stop(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

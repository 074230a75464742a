package router

import (
	"log"
	"net/http"
	"time"

	"github.com/cafe-pos/api/internal/config"
	"github.com/cafe-pos/api/internal/currency"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/handler"
	mw "github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/notify"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed. Events are
// sent to notifier; a nil notifier publishes to the hub only.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, notifier notify.Notifier, loc *time.Location) chi.Router {
	if notifier == nil {
		notifier = hub
	}
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services
	fallback, err := currency.ParseConverter(cfg.ExchangeRate, cfg.RoundingFactor)
	if err != nil {
		log.Printf("WARN: fallback converter: %v", err)
	}

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, notifier, service.OrderConfig{Fallback: fallback, Location: loc})
	discountService := service.NewDiscountService(pool, func(db database.DBTX) service.DiscountStore {
		return database.New(db)
	}, notifier, loc)
	stockService := service.NewStockService(pool, func(db database.DBTX) service.StockStore {
		return database.New(db)
	}, notifier)
	settingsService := service.NewSettingsService(pool, func(db database.DBTX) service.SettingsStore {
		return database.New(db)
	}, fallback)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)

		managerOnly := mw.RequireRole(enum.UserRoleManager)

		// Categories
		categoryHandler := handler.NewCategoryHandler(queries)
		r.Route("/categories", func(r chi.Router) {
			categoryHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(managerOnly)
				categoryHandler.RegisterManagerRoutes(r)
			})
		})

		// Menu items, their options and recipes
		menuHandler := handler.NewMenuItemHandler(queries, pool, func(db database.DBTX) handler.MenuStore {
			return database.New(db)
		})
		recipeHandler := handler.NewRecipeHandler(queries, stockService, pool, func(db database.DBTX) handler.RecipeStore {
			return database.New(db)
		})
		r.Route("/menu-items", func(r chi.Router) {
			menuHandler.RegisterRoutes(r)
			recipeHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(managerOnly)
				menuHandler.RegisterManagerRoutes(r)
				recipeHandler.RegisterManagerRoutes(r)
			})
		})

		// Ingredients
		ingredientHandler := handler.NewIngredientHandler(queries)
		r.Route("/ingredients", func(r chi.Router) {
			ingredientHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(managerOnly)
				ingredientHandler.RegisterManagerRoutes(r)
			})
		})

		// Orders
		orderHandler := handler.NewOrderHandler(orderService, queries, loc)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleCourier, enum.UserRoleCashier, enum.UserRoleManager))
				orderHandler.RegisterCreateRoutes(r)
			})
		})

		// Discounts
		discountHandler := handler.NewDiscountHandler(discountService, queries)
		r.Route("/discounts", func(r chi.Router) {
			discountHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleCashier, enum.UserRoleManager))
				discountHandler.RegisterApplyRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(managerOnly)
				discountHandler.RegisterManagerRoutes(r)
			})
		})

		// Settings
		settingsHandler := handler.NewSettingsHandler(queries, settingsService)
		r.Route("/settings", func(r chi.Router) {
			settingsHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(managerOnly)
				settingsHandler.RegisterManagerRoutes(r)
			})
		})

		// Manager-only resources
		r.Group(func(r chi.Router) {
			r.Use(managerOnly)

			stockHandler := handler.NewStockHandler(stockService, queries)
			r.Route("/stock", stockHandler.RegisterRoutes)

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			reportsHandler := handler.NewReportsHandler(queries, loc)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}

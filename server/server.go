package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/triplebarrelracing/storefront/internal/config"
	"github.com/triplebarrelracing/storefront/internal/handlers"
	"github.com/triplebarrelracing/storefront/internal/storage"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Capture waits on the gateway for up to PaymentTimeout.
		WriteTimeout:   cfg.PaymentTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.PathPrefix(storage.PublicPrefix).Handler(
		http.StripPrefix(storage.PublicPrefix, http.FileServer(uploadDir(s.cfg.UploadDir))),
	).Methods("GET", "HEAD").Name("uploads")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/merch", h.ListMerch).Methods("GET").Name("merch.list")
	api.HandleFunc("/merch/{id}", h.GetMerch).Methods("GET").Name("merch.get")
	api.HandleFunc("/sales-settings", h.GetSaleSettings).Methods("GET").Name("sales.get")
	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	api.HandleFunc("/payments/process", h.CapturePayment).Methods("POST").Name("payments.process")
	api.HandleFunc("/contact", h.SubmitContact).Methods("POST").Name("contact")
	api.HandleFunc("/drivers/contact", h.SubmitDriverContact).Methods("POST").Name("drivers.contact")
	api.HandleFunc("/admin/login", h.AdminLogin).Methods("POST").Name("admin.login")

	content := h.ContentRoutes()
	for kind, routes := range content {
		api.HandleFunc("/"+kind, routes.List).Methods("GET").Name(kind + ".list")
		api.HandleFunc("/"+kind+"/{id}", routes.Get).Methods("GET").Name(kind + ".get")
	}

	// Admin routes accept a session cookie or a bearer token.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.RequireAdmin)
	admin.Use(h.RequireSameOrigin)
	admin.HandleFunc("/logout", h.AdminLogout).Methods("POST").Name("admin.logout")
	admin.HandleFunc("/merch", h.CreateMerch).Methods("POST").Name("admin.merch.create")
	admin.HandleFunc("/merch/{id}", h.UpdateMerch).Methods("PATCH", "PUT").Name("admin.merch.update")
	admin.HandleFunc("/merch/{id}", h.DeleteMerch).Methods("DELETE").Name("admin.merch.delete")
	admin.HandleFunc("/sales-settings", h.UpdateSaleSettings).Methods("PUT").Name("admin.sales.update")
	admin.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("admin.orders.list")
	admin.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("admin.orders.get")
	admin.HandleFunc("/orders/{id}/fulfillment", h.UpdateOrderFulfillment).Methods("PATCH").Name("admin.orders.fulfillment")
	admin.HandleFunc("/inquiries", h.ListInquiries).Methods("GET").Name("admin.inquiries.list")
	admin.HandleFunc("/inquiries/{id}/status", h.UpdateInquiryStatus).Methods("PATCH").Name("admin.inquiries.status")
	admin.HandleFunc("/inquiries/{id}", h.DeleteInquiry).Methods("DELETE").Name("admin.inquiries.delete")
	admin.HandleFunc("/upload", h.UploadImage).Methods("POST").Name("admin.upload")
	for kind, routes := range content {
		admin.HandleFunc("/"+kind, routes.Create).Methods("POST").Name("admin." + kind + ".create")
		admin.HandleFunc("/"+kind+"/{id}", routes.Update).Methods("PATCH", "PUT").Name("admin." + kind + ".update")
		admin.HandleFunc("/"+kind+"/{id}", routes.Delete).Methods("DELETE").Name("admin." + kind + ".delete")
	}

	return r
}

// uploadDir serves files but never directory listings.
type uploadDir string

func (d uploadDir) Open(name string) (http.File, error) {
	f, err := http.Dir(d).Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusNotFound, "not found", "not_found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
}

func writeStatus(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

package services

import (
	"coursemarket/backend/config"
	"coursemarket/backend/payment"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container groups the services behind the HTTP layer.
type Container struct {
	Catalog    *CatalogService
	Chapters   *ChapterService
	Enrollment *EnrollmentService
	Orders     *OrderService
	Carts      *CartService
	Admins     *AdminService
	Auth       *AuthService
	Transfer   *TransferService
}

// NewContainer wires the services. gateway may be nil when payments are not
// configured; mailer defaults to logging reset tokens.
func NewContainer(db *gorm.DB, cfg *config.Config, store CartStore, gateway payment.Gateway, mailer Mailer, log *zap.SugaredLogger) *Container {
	if store == nil {
		store = NewMemoryCartStore()
	}
	if mailer == nil {
		mailer = LogMailer{Log: log.With("service", "LogMailer")}
	}
	catalog := NewCatalogService(db, cfg, log)
	enrollment := NewEnrollmentService(db, catalog, log)
	orders := NewOrderService(db, enrollment, gateway, cfg, log)
	admins := NewAdminService(db, cfg, log)
	return &Container{
		Catalog:    catalog,
		Chapters:   NewChapterService(db, catalog, log),
		Enrollment: enrollment,
		Orders:     orders,
		Carts:      NewCartService(store, orders, catalog, log),
		Admins:     admins,
		Auth:       NewAuthService(db, cfg, admins, mailer, log),
		Transfer:   NewTransferService(db, catalog, log),
	}
}

package order

import (
	"context"
	"errors"
	"fmt"

	domcatalog "github.com/minimart/order-settlement/internal/domain/catalog"
	domain "github.com/minimart/order-settlement/internal/domain/order"
	domuser "github.com/minimart/order-settlement/internal/domain/user"
	"github.com/minimart/order-settlement/internal/observability"
	"github.com/minimart/order-settlement/internal/observability/logctx"
)

type IDGenerator interface {
	NewID() string
}

type Service struct {
	repo        domain.Repository
	catalog     domcatalog.Repository
	users       domuser.Repository
	idGenerator IDGenerator
	log         observability.Logger
}

func NewService(repo domain.Repository, catalogRepo domcatalog.Repository, users domuser.Repository, idGen IDGenerator, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		repo:        repo,
		catalog:     catalogRepo,
		users:       users,
		idGenerator: idGen,
		log:         logger.With(observability.F("component", "order_service")),
	}
}

type CreateInput struct {
	UserID          string
	Lines           []domain.Line
	ShippingAddress domain.Address
	PaymentMethod   string
	ItemsPrice      int64
	ShippingPrice   int64
	TotalPrice      int64
}

// View is an order with its owner's display fields resolved.
type View struct {
	Order *domain.Order
	User  *domuser.User
}

// Create validates the order lines against the catalog and persists the order.
// Each line's captured unit price must match the catalog price; a mismatch is
// rejected so a stale client cannot buy at an outdated price.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)

	if input.UserID == "" {
		return nil, errors.New("order: user id is required")
	}
	if len(input.Lines) == 0 {
		return nil, domain.ErrNoLines
	}

	for _, line := range input.Lines {
		product, err := s.catalog.Get(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("order: lookup product %s: %w", line.ProductID, err)
		}
		if product.Price != line.UnitPrice {
			logger.Warn("price_discrepancy",
				observability.F("product_id", line.ProductID),
				observability.F("order_price", line.UnitPrice),
				observability.F("catalog_price", product.Price),
			)
			return nil, domcatalog.ErrPriceMismatch
		}
	}

	entity, err := domain.New(
		s.idGenerator.NewID(),
		input.UserID,
		input.Lines,
		input.ShippingAddress,
		input.PaymentMethod,
		input.ItemsPrice,
		input.ShippingPrice,
		input.TotalPrice,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, entity); err != nil {
		logger.Error("order_insert_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err),
		)
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	logger.Info("order_created",
		observability.F("order_id", entity.ID),
		observability.F("user_id", entity.UserID),
		observability.F("lines", len(entity.Lines)),
	)
	return entity, nil
}

// Get returns the order with user display fields resolved.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	ord, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ord), nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, errors.New("order: user id is required")
	}
	return s.repo.FindByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]*View, error) {
	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(orders))
	for _, ord := range orders {
		views = append(views, s.resolve(ctx, ord))
	}
	return views, nil
}

// MarkDelivered is the simple paid -> delivered mutation; it never touches stock.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*View, error) {
	logger := logctx.FromOr(ctx, s.log)

	ord, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ord.MarkDelivered(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ord); err != nil {
		logger.Error("order_update_failed",
			observability.F("order_id", ord.ID),
			observability.F("error", err),
		)
		return nil, fmt.Errorf("order: update: %w", err)
	}

	logger.Info("order_delivered", observability.F("order_id", ord.ID))
	return s.resolve(ctx, ord), nil
}

func (s *Service) resolve(ctx context.Context, ord *domain.Order) *View {
	view := &View{Order: ord}
	if s.users == nil {
		return view
	}
	if u, err := s.users.Get(ctx, ord.UserID); err == nil {
		view.User = u
	}
	return view
}

package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyfare/backend/internal/domain/billing"
	"github.com/skyfare/backend/internal/domain/ordering"
	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/domain/shared/valueobject"
)

// PaymentService drives the payment transaction ledger: direct admin
// charges, webhook-driven invoice settlement, and stored card management
type PaymentService struct {
	orderRepo   ordering.OrderRepository
	invoiceRepo billing.InvoiceRepository
	txRepo      billing.PaymentTransactionRepository
	cardRepo    billing.StoredCardRepository
	resolver    *CustomerResolver
	gateway     billing.Gateway
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	orderRepo ordering.OrderRepository,
	invoiceRepo billing.InvoiceRepository,
	txRepo billing.PaymentTransactionRepository,
	cardRepo billing.StoredCardRepository,
	resolver *CustomerResolver,
	gateway billing.Gateway,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		invoiceRepo: invoiceRepo,
		txRepo:      txRepo,
		cardRepo:    cardRepo,
		resolver:    resolver,
		gateway:     gateway,
		logger:      logger,
	}
}

// ProcessInvoicePayment reconciles a gateway-reported invoice payment
// into the ledger: one completed transaction, the invoice marked paid,
// the order marked paid. Safe to call repeatedly for the same gateway
// payment id; the ledger's unique column rejects the duplicate and the
// call reports success without double-booking.
func (s *PaymentService) ProcessInvoicePayment(ctx context.Context, invoice *billing.Invoice, squarePaymentID string, amount valueobject.Money) error {
	tx, err := billing.NewPaymentTransaction(
		invoice.OrderID, squarePaymentID, amount,
		billing.PaymentMethodInvoice, billing.TransactionStatusCompleted, "webhook")
	if err != nil {
		return err
	}

	if err := s.txRepo.Save(ctx, tx); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Info("payment already recorded, skipping redelivery",
				zap.String("square_payment_id", squarePaymentID),
				zap.String("order_id", invoice.OrderID.String()))
			return nil
		}
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	if err := invoice.MarkPaid(time.Now()); err != nil {
		return err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	order, err := s.orderRepo.FindByID(ctx, invoice.OrderID)
	if err != nil {
		return err
	}
	order.MarkPaid()
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	s.logger.Info("invoice payment reconciled",
		zap.String("order_id", order.ID.String()),
		zap.String("square_payment_id", squarePaymentID),
		zap.String("amount", amount.String()))

	return nil
}

// ProcessDirectPayment charges an order immediately using a card nonce or
// a stored card. The order must not already have a completed payment.
func (s *PaymentService) ProcessDirectPayment(ctx context.Context, orderID uuid.UUID, req DirectPaymentRequest) (*TransactionResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paid, err := s.txRepo.HasCompletedForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if paid || order.IsPaid() {
		return nil, shared.ErrAlreadyPaid
	}

	sourceID := req.SourceID
	customerID := ""
	if req.StoredCardID != nil {
		card, err := s.cardRepo.FindByID(ctx, *req.StoredCardID)
		if err != nil {
			return nil, err
		}
		if card.ClientID != order.ClientID {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Stored card does not belong to the order's client")
		}
		sourceID = card.SquareCardID
		customerID = card.SquareCustomerID
	}
	if sourceID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "A card nonce or stored card is required")
	}

	amount, err := valueobject.NewMoney(order.Total, valueobject.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	payment, gatewayErr := s.gateway.CreatePayment(ctx, billing.CreatePaymentParams{
		SourceID:       sourceID,
		CustomerID:     customerID,
		AmountCents:    amount.Cents(),
		Currency:       amount.Currency(),
		ReferenceID:    order.ID.String(),
		Note:           req.Note,
		IdempotencyKey: paymentIdempotencyKey(order.ID, order.RevisionCount, sourceID),
	})

	if gatewayErr != nil {
		// The failed attempt still lands in the ledger with a synthetic id
		failed, txErr := billing.NewPaymentTransaction(
			order.ID, fmt.Sprintf("failed-%s", uuid.NewString()), amount,
			billing.PaymentMethodCard, billing.TransactionStatusFailed, req.ProcessedBy)
		if txErr == nil {
			failed.Note = gatewayErr.Error()
			if saveErr := s.txRepo.Save(ctx, failed); saveErr != nil {
				s.logger.Error("failed to record failed payment attempt", zap.Error(saveErr))
			}
		}
		s.logger.Error("direct payment failed at gateway",
			zap.String("order_id", order.ID.String()),
			zap.Error(gatewayErr))
		return nil, fmt.Errorf("%w: %v", shared.ErrGatewayFailure, gatewayErr)
	}

	tx, err := billing.NewPaymentTransaction(
		order.ID, payment.ID, amount,
		billing.PaymentMethodCard, billing.TransactionStatusCompleted, req.ProcessedBy)
	if err != nil {
		return nil, err
	}
	tx.SetCardDetails(payment.CardBrand, payment.CardLast4)
	tx.Note = req.Note

	if err := s.txRepo.Save(ctx, tx); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			existing, findErr := s.txRepo.FindBySquarePaymentID(ctx, payment.ID)
			if findErr == nil {
				resp := ToTransactionResponse(existing)
				return &resp, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	order.MarkPaid()
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	if req.StoreCard && req.SourceID != "" {
		s.storeCardAfterPayment(ctx, order.ClientID, req.SourceID)
	}

	s.logger.Info("direct payment completed",
		zap.String("order_id", order.ID.String()),
		zap.String("square_payment_id", payment.ID))

	resp := ToTransactionResponse(tx)
	return &resp, nil
}

// ListTransactions returns the ledger rows for an order
func (s *PaymentService) ListTransactions(ctx context.Context, orderID uuid.UUID) ([]TransactionResponse, error) {
	txs, err := s.txRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionResponse, len(txs))
	for i := range txs {
		out[i] = ToTransactionResponse(&txs[i])
	}
	return out, nil
}

// ListStoredCards returns the client's saved cards
func (s *PaymentService) ListStoredCards(ctx context.Context, clientID uuid.UUID) ([]StoredCardResponse, error) {
	cards, err := s.cardRepo.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]StoredCardResponse, len(cards))
	for i := range cards {
		out[i] = ToStoredCardResponse(&cards[i])
	}
	return out, nil
}

// SetDefaultCard makes the card the client's single default
func (s *PaymentService) SetDefaultCard(ctx context.Context, clientID, cardID uuid.UUID) error {
	return s.cardRepo.SetDefault(ctx, clientID, cardID)
}

// DeleteStoredCard removes a saved card
func (s *PaymentService) DeleteStoredCard(ctx context.Context, clientID, cardID uuid.UUID) error {
	card, err := s.cardRepo.FindByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.ClientID != clientID {
		return shared.ErrNotFound
	}
	return s.cardRepo.Delete(ctx, cardID)
}

// paymentIdempotencyKey guards the gateway's non-retryable payment
// create. The key is stable when the same request is retried (same order
// revision, same card source) so a duplicate submit is collapsed by the
// gateway, and distinct when the source changes so a new attempt after a
// decline is not replayed under the old key.
func paymentIdempotencyKey(orderID uuid.UUID, revision int, sourceID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", orderID, revision, sourceID)))
	return hex.EncodeToString(sum[:16])
}

// storeCardAfterPayment saves the just-charged card on file. Best effort;
// the payment already settled, so failures only log.
func (s *PaymentService) storeCardAfterPayment(ctx context.Context, clientID uuid.UUID, sourceID string) {
	customerID, err := s.resolver.Resolve(ctx, clientID, "")
	if err != nil {
		s.logger.Warn("cannot store card without a gateway customer",
			zap.String("client_id", clientID.String()),
			zap.Error(err))
		return
	}

	gwCard, err := s.gateway.CreateCard(ctx, billing.CreateCardParams{
		CustomerID: customerID,
		SourceID:   sourceID,
	})
	if err != nil {
		s.logger.Warn("failed to store card at gateway",
			zap.String("client_id", clientID.String()),
			zap.Error(err))
		return
	}

	card, err := billing.NewStoredCard(clientID, customerID, gwCard.ID,
		gwCard.Brand, gwCard.Last4, gwCard.ExpMonth, gwCard.ExpYear)
	if err != nil {
		s.logger.Warn("invalid stored card data from gateway", zap.Error(err))
		return
	}

	existing, err := s.cardRepo.FindByClientID(ctx, clientID)
	if err == nil && len(existing) == 0 {
		card.MakeDefault()
	}

	if err := s.cardRepo.Save(ctx, card); err != nil {
		s.logger.Warn("failed to persist stored card", zap.Error(err))
	}
}

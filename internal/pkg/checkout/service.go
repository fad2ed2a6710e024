package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/AlertaPix/alertapix/internal/pkg/mercadopago"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Outcome classifies what a webhook delivery did, mostly for logging and the
// HTTP response body.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeApproved  Outcome = "approved"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

// ErrGatewayFetch marks a retryable upstream failure: the provider must
// redeliver the notification.
var ErrGatewayFetch = errors.New("gateway payment fetch failed")

// ErrTransactionNotFound marks a data-integrity failure: the payment carries
// an external reference no ledger row matches.
var ErrTransactionNotFound = errors.New("transaction not found for external reference")

// PaymentGetter fetches the authoritative payment object from the provider.
type PaymentGetter interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// AlertEnqueuer inserts the playable alert for a captured payment.
type AlertEnqueuer interface {
	EnqueueFromTransaction(ctx context.Context, tx *models.Transaction) error
}

// Service is the webhook reconciler: it converts untrusted, possibly
// duplicated provider notifications into at most one ledger transition plus
// its side effects.
type Service struct {
	repo    Repository
	gateway PaymentGetter
	queue   AlertEnqueuer
}

// NewService creates a reconciler from its collaborators.
func NewService(repo Repository, gateway PaymentGetter, queue AlertEnqueuer) *Service {
	return &Service{repo: repo, gateway: gateway, queue: queue}
}

// NewServiceFromDB creates a reconciler bound to the shared DB handle and the
// env-configured gateway client.
func NewServiceFromDB(db *gorm.DB, gateway PaymentGetter, queue AlertEnqueuer) *Service {
	return NewService(NewRepository(db), gateway, queue)
}

// ProcessNotification runs the full reconciliation pipeline for one inbound
// notification. A nil error means the provider must not retry; ErrGatewayFetch
// and ErrTransactionNotFound are the only retry/alert paths.
func (s *Service) ProcessNotification(ctx context.Context, n mercadopago.WebhookNotification) (Outcome, error) {
	// Step 1: only payment events proceed.
	if !n.IsPaymentEvent() || n.PaymentID == "" {
		return OutcomeIgnored, nil
	}

	// Step 2: re-fetch authoritative state; the notification body is not
	// trusted for amount or status.
	payment, err := s.gateway.GetPayment(ctx, n.PaymentID)
	if err != nil {
		log.Errorf("[Checkout] payment fetch failed for %s: %v", n.PaymentID, err)
		return "", fmt.Errorf("%w: %v", ErrGatewayFetch, err)
	}

	// Step 3: correlate via external reference. A foreign or malformed
	// payment is not actionable and must not cause provider retries.
	txID := payment.ExternalReference
	if txID == "" {
		log.Warnf("[Checkout] payment %d carries no external reference, ignoring", payment.ID)
		return OutcomeIgnored, nil
	}

	// Step 4: missing ledger row is a correlation bug, surface it loudly.
	tx, err := s.repo.GetTransaction(txID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
		}
		return "", err
	}

	// Step 5: idempotency guard against duplicate deliveries.
	if tx.Status == models.TransactionPaid {
		return OutcomeDuplicate, nil
	}

	paymentID := strconv.FormatInt(payment.ID, 10)

	switch payment.Status {
	case mercadopago.PaymentStatusApproved:
		return s.approve(ctx, tx, payment, paymentID)
	case mercadopago.PaymentStatusRejected, mercadopago.PaymentStatusCancelled:
		updated, err := s.repo.MarkFailed(tx.ID, paymentID)
		if err != nil {
			return "", err
		}
		if !updated {
			return OutcomeDuplicate, nil
		}
		log.Infof("[Checkout] transaction %s failed (payment %s status=%s)", tx.ID, paymentID, payment.Status)
		return OutcomeFailed, nil
	default:
		// pending / in_process: a future notification will settle it.
		return OutcomePending, nil
	}
}

func (s *Service) approve(ctx context.Context, tx *models.Transaction, payment *mercadopago.Payment, paymentID string) (Outcome, error) {
	platformRate := PlatformFeeRateBps
	if settings, err := s.repo.GetStreamerSettings(tx.StreamerID); err != nil {
		// Fall back to the flat rate rather than blocking capture.
		log.Warnf("[Checkout] settings lookup failed for streamer %d: %v", tx.StreamerID, err)
	} else {
		platformRate = PlatformRateFor(settings.CommissionBps)
	}

	fees := ComputeFees(payment.TransactionAmount, platformRate)
	if tx.RequestedAppFeeCents > 0 && tx.RequestedAppFeeCents != fees.PlatformFeeCents {
		// The marketplace application fee requested at creation time and the
		// recomputed ledger fee disagree; the ledger value wins, flag for
		// manual review.
		log.Warnf("[Checkout] fee divergence on %s: requested=%d recomputed=%d",
			tx.ID, tx.RequestedAppFeeCents, fees.PlatformFeeCents)
	}

	// The ledger write commits before any side effect so a crash leaves a
	// paid transaction with no queued alert, never the reverse.
	updated, err := s.repo.MarkPaid(tx.ID, paymentID, fees)
	if err != nil {
		return "", err
	}
	if !updated {
		// A concurrent delivery won the conditional write.
		return OutcomeDuplicate, nil
	}

	tx.Status = models.TransactionPaid
	tx.MPPaymentID = &paymentID
	tx.GrossCents = fees.GrossCents
	tx.ProviderFeeCents = fees.ProviderFeeCents
	tx.PlatformFeeCents = fees.PlatformFeeCents
	tx.NetCents = fees.NetCents

	// Side effects are best-effort: the payment is captured and must not be
	// lost because a secondary write failed.
	if err := s.queue.EnqueueFromTransaction(ctx, tx); err != nil {
		log.Errorf("[Checkout] queue insert failed for %s: %v", tx.ID, err)
	}
	content := fmt.Sprintf("Nova venda: %s enviou R$ %d,%02d", saleSender(tx), fees.GrossCents/100, fees.GrossCents%100)
	if err := s.repo.CreateNotification(tx.StreamerID, content, tx.ID); err != nil {
		log.Errorf("[Checkout] notification insert failed for %s: %v", tx.ID, err)
	}

	log.Infof("[Checkout] transaction %s paid (payment %s gross=%d net=%d)", tx.ID, paymentID, fees.GrossCents, fees.NetCents)
	return OutcomeApproved, nil
}

func saleSender(tx *models.Transaction) string {
	if tx.SenderName != "" {
		return tx.SenderName
	}
	return "anonimo"
}

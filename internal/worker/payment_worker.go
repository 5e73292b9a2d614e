package worker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/service"
)

// paymentConfirmChannel is where the external payment provider publishes
// confirmation events for suspended digital payments.
const paymentConfirmChannel = "payments:confirmations"

type paymentConfirmation struct {
	TicketID string `json:"ticket_id"`
	Paid     bool   `json:"paid"`
}

// StartPaymentWorker subscribes to the payment confirmation channel and
// resumes suspended digital payments. This is the only path that moves a
// ticket out of PENDING_PAYMENT without operator input.
func StartPaymentWorker(ctx context.Context, client *redis.Client, payments *service.PaymentService, logger *zap.Logger) {
	if client == nil || payments == nil {
		return
	}
	sub := client.Subscribe(ctx, paymentConfirmChannel)
	go func() {
		defer sub.Close()
		logger.Info("payment confirmation worker started", zap.String("channel", paymentConfirmChannel))
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				logger.Info("payment confirmation worker stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var confirmation paymentConfirmation
				if err := json.Unmarshal([]byte(msg.Payload), &confirmation); err != nil {
					logger.Warn("malformed payment confirmation", zap.Error(err))
					continue
				}
				if !confirmation.Paid || confirmation.TicketID == "" {
					continue
				}
				if _, err := payments.ConfirmDigitalPayment(ctx, confirmation.TicketID); err != nil {
					logger.Warn("payment confirmation not applied",
						zap.String("ticket_id", confirmation.TicketID),
						zap.Error(err))
				}
			}
		}
	}()
}

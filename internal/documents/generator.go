package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/domain"
)

// DocumentGenerator renders ticket-shaped records into retrievable
// documents. Rendering internals are an external concern; the orchestration
// core only depends on the returned reference and the error.
type DocumentGenerator interface {
	QuoteDocument(ctx context.Context, ticket *domain.Ticket) (string, error)
	MaterialReceipt(ctx context.Context, ticket *domain.Ticket) (string, error)
	ServiceReport(ctx context.Context, ticket *domain.Ticket) (string, error)
}

// logGenerator is the development implementation; it assigns references
// without rendering anything.
type logGenerator struct {
	logger *zap.Logger
}

// NewLogGenerator builds the stub generator.
func NewLogGenerator(logger *zap.Logger) DocumentGenerator {
	return &logGenerator{logger: logger}
}

func (g *logGenerator) QuoteDocument(ctx context.Context, ticket *domain.Ticket) (string, error) {
	return g.reference("quote", ticket), nil
}

func (g *logGenerator) MaterialReceipt(ctx context.Context, ticket *domain.Ticket) (string, error) {
	return g.reference("receipt", ticket), nil
}

func (g *logGenerator) ServiceReport(ctx context.Context, ticket *domain.Ticket) (string, error) {
	return g.reference("report", ticket), nil
}

func (g *logGenerator) reference(kind string, ticket *domain.Ticket) string {
	ref := fmt.Sprintf("doc://%s/%s/%s", kind, ticket.ExternalKey, uuid.NewString())
	g.logger.Debug("document generated",
		zap.String("kind", kind),
		zap.String("ticket_id", ticket.ID),
		zap.String("ref", ref))
	return ref
}

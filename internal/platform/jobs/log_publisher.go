package jobs

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/finitefield/quote-configurator/internal/services"
)

// LogSubmissionPublisher writes submissions to the structured log. Used for local runs.
type LogSubmissionPublisher struct {
	logger *zap.Logger
	newID  func() string
}

var _ services.SubmissionPublisher = (*LogSubmissionPublisher)(nil)

// NewLogSubmissionPublisher builds a publisher; a nil logger discards output.
func NewLogSubmissionPublisher(logger *zap.Logger) *LogSubmissionPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSubmissionPublisher{
		logger: logger.Named("submissions"),
		newID:  func() string { return ulid.Make().String() },
	}
}

// PublishSubmission logs the payload and returns a locally generated delivery id.
func (p *LogSubmissionPublisher) PublishSubmission(_ context.Context, message services.SubmissionMessage) (string, error) {
	id := p.newID()
	p.logger.Info("quote submission",
		zap.String("deliveryId", id),
		zap.String("submissionId", message.SubmissionID),
		zap.String("sessionId", message.SessionID),
		zap.Int("serviceCount", message.Combined.ServiceCount),
		zap.Int64("totalInvestment", message.Combined.TotalInvestment),
		zap.Bool("customQuote", message.Combined.HasCustomQuote),
		zap.Any("payload", message),
	)
	return id, nil
}

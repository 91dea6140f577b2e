package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier is a development stand-in for the messaging-platform code
// delivery collaborator. It logs the delivery target but never the code.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendCode(ctx context.Context, target, code string) error {
	n.log.Info().Str("target", target).Msg("one-time code issued")
	return nil
}

package ports

import "context"

// Notifier delivers one-time codes to the target identity. The real
// messaging-platform SDK lives behind this seam.
type Notifier interface {
	SendCode(ctx context.Context, target, code string) error
}

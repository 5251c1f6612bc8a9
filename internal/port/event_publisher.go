package port

import "context"

const (
	EventSaleCompleted = "sale.completed"
	EventSaleFailed    = "sale.failed"
	EventStockLow      = "stock.low"
)

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

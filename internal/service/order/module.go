package order

import "go.uber.org/fx"

// Module wires the purchase-order workflow service.
var Module = fx.Module("order_service",
	fx.Provide(NewService),
)

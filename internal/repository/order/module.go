package order

import "go.uber.org/fx"

// Module wires the bun-backed order, item and history queries.
var Module = fx.Module("order_repository",
	fx.Provide(NewRepository),
)

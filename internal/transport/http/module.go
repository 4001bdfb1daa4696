package http

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/transport/http/auth"
	catalogtransport "github.com/Additional-Code/procura/internal/transport/http/catalog"
	directorytransport "github.com/Additional-Code/procura/internal/transport/http/directory"
	inboxtransport "github.com/Additional-Code/procura/internal/transport/http/inbox"
	ordertransport "github.com/Additional-Code/procura/internal/transport/http/order"
	reporttransport "github.com/Additional-Code/procura/internal/transport/http/report"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	auth.Module,
	ordertransport.Module,
	reporttransport.Module,
	inboxtransport.Module,
	catalogtransport.Module,
	directorytransport.Module,
)

package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/audit"
	"github.com/Additional-Code/procura/internal/cache"
	"github.com/Additional-Code/procura/internal/codegen"
	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/logger"
	"github.com/Additional-Code/procura/internal/messaging"
	"github.com/Additional-Code/procura/internal/notification"
	"github.com/Additional-Code/procura/internal/observability"
	repositorycatalog "github.com/Additional-Code/procura/internal/repository/catalog"
	repositorynotification "github.com/Additional-Code/procura/internal/repository/notification"
	repositoryorder "github.com/Additional-Code/procura/internal/repository/order"
	repositoryuser "github.com/Additional-Code/procura/internal/repository/user"
	grpcserver "github.com/Additional-Code/procura/internal/server/grpc"
	httpserver "github.com/Additional-Code/procura/internal/server/http"
	servicecatalog "github.com/Additional-Code/procura/internal/service/catalog"
	servicedirectory "github.com/Additional-Code/procura/internal/service/directory"
	serviceinbox "github.com/Additional-Code/procura/internal/service/inbox"
	serviceorder "github.com/Additional-Code/procura/internal/service/order"
	servicereport "github.com/Additional-Code/procura/internal/service/report"
	transporthttp "github.com/Additional-Code/procura/internal/transport/http"
	"github.com/Additional-Code/procura/internal/worker"
	workerorder "github.com/Additional-Code/procura/internal/worker/order"
)

// Infra provides configuration, logging, telemetry and storage connections.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	repositoryorder.Module,
	repositoryuser.Module,
	repositorynotification.Module,
	repositorycatalog.Module,
	codegen.Module,
	audit.Module,
	notification.Module,
	serviceorder.Module,
	servicereport.Module,
	serviceinbox.Module,
	servicecatalog.Module,
	servicedirectory.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring.
var Module = HTTP

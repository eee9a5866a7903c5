package httpapi

import (
	"time"

	"github.com/tradecore/backend/internal/ai"
	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/internal/notify"
	"github.com/tradecore/backend/internal/platform"
	"github.com/tradecore/backend/internal/portfolio"
	"github.com/tradecore/backend/internal/redisx"
	"github.com/tradecore/backend/internal/risk"
	"github.com/tradecore/backend/internal/router"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/internal/stream"
	"github.com/tradecore/backend/internal/users"
)

// Server bundles every domain service the HTTP boundary calls into.
// Constructed once by internal/appctx and handed its own *http.ServeMux
// via Routes().
type Server struct {
	startedAt time.Time

	users      *users.Service
	usersRepo  *storage.UsersRepository
	ledger     *portfolio.Ledger
	trades     *storage.TradeRepository
	platforms  *platform.Service
	aggregator *market.Aggregator
	notify     *notify.Engine
	notifyRepo *storage.NotifyRepository
	router     *router.Router
	riskEngine *risk.Engine
	ai         *ai.Service
	hub        *stream.Hub

	db       *storage.DB
	redis    *redisx.Client
	breakers *breaker.Registry
}

// Deps carries every constructed dependency Server needs; appctx builds
// one of these after wiring the rest of the process.
type Deps struct {
	Users      *users.Service
	UsersRepo  *storage.UsersRepository
	Ledger     *portfolio.Ledger
	Trades     *storage.TradeRepository
	Platforms  *platform.Service
	Aggregator *market.Aggregator
	Notify     *notify.Engine
	NotifyRepo *storage.NotifyRepository
	Router     *router.Router
	RiskEngine *risk.Engine
	AI         *ai.Service
	Hub        *stream.Hub
	DB         *storage.DB
	Redis      *redisx.Client
	Breakers   *breaker.Registry
}

func NewServer(d Deps) *Server {
	return &Server{
		startedAt:  time.Now(),
		users:      d.Users,
		usersRepo:  d.UsersRepo,
		ledger:     d.Ledger,
		trades:     d.Trades,
		platforms:  d.Platforms,
		aggregator: d.Aggregator,
		notify:     d.Notify,
		notifyRepo: d.NotifyRepo,
		router:     d.Router,
		riskEngine: d.RiskEngine,
		ai:         d.AI,
		hub:        d.Hub,
		db:         d.DB,
		redis:      d.Redis,
		breakers:   d.Breakers,
	}
}

// Package service is the command and query facade of the ledger: it owns
// the event bus, the aggregate repositories, the read models, and the
// process managers, and turns submitted commands into committed events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
	"github.com/MyndPhreak/gamerp/core/ledger/proj"
	"github.com/MyndPhreak/gamerp/core/ledger/saga"
)

type Service struct {
	log      *slog.Logger
	store    es.EventStore
	registry *es.EventRegistry
	bus      *es.Bus
	limiter  ledger.Limiter

	wallets    es.TypedRepository[*ledger.Wallet]
	banks      es.TypedRepository[*ledger.Bank]
	reserve    es.TypedRepository[*ledger.FederalReserve]
	government es.TypedRepository[*ledger.Government]

	projections map[string]proj.Projection
}

type options struct {
	limiter     ledger.Limiter
	metrics     es.Metrics
	projections []proj.Projection
}

type Option func(*options)

// WithLimiter installs a per-actor command rate limiter.
func WithLimiter(l ledger.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithMetrics instruments the store, repositories and bus.
func WithMetrics(m es.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithProjection registers an additional read model beyond the standard set.
func WithProjection(p proj.Projection) Option {
	return func(o *options) { o.projections = append(o.projections, p) }
}

// New wires a ledger service on top of store. The standard projections
// (wallet-balances, bank-sheet, money-supply) and process managers
// (transfer, mint, treasury) are always attached.
func New(log *slog.Logger, store es.EventStore, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}

	o := options{
		limiter: ledger.NopLimiter{},
		projections: []proj.Projection{
			proj.NewWalletBalances(),
			proj.NewBankSheets(),
			proj.NewMoneySupply(),
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := es.NewRegistry()
	(&ledger.Wallet{}).Register(registry)
	(&ledger.Bank{}).Register(registry)
	(&ledger.FederalReserve{}).Register(registry)
	(&ledger.Government{}).Register(registry)

	busOpts := []es.BusOption{}
	repoOpts := []es.RepositoryOption{}
	if o.metrics != nil {
		busOpts = append(busOpts, es.WithMetrics(o.metrics))
		repoOpts = append(repoOpts, es.WithMetrics(o.metrics))
	}

	bus := es.NewBus(log, busOpts...)
	repo := es.NewRepository(log, store, registry, append(repoOpts, es.WithBus(bus))...)

	s := &Service{
		log:         log.With(slog.String("component", "ledger")),
		store:       store,
		registry:    registry,
		bus:         bus,
		limiter:     o.limiter,
		wallets:     es.NewTypedRepository[*ledger.Wallet](log, repo),
		banks:       es.NewTypedRepository[*ledger.Bank](log, repo),
		reserve:     es.NewTypedRepository[*ledger.FederalReserve](log, repo),
		government:  es.NewTypedRepository[*ledger.Government](log, repo),
		projections: map[string]proj.Projection{},
	}

	for _, p := range o.projections {
		s.projections[p.Name()] = p
		bus.Subscribe(p.Name(), p, p.EventTypes()...)
	}

	for _, pm := range []interface {
		es.Handler
		Name() string
		EventTypes() []string
	}{
		saga.NewTransferProcessor(s),
		saga.NewMintProcessor(s),
		saga.NewTreasuryProcessor(s),
	} {
		bus.Subscribe(pm.Name(), pm, pm.EventTypes()...)
	}

	return s
}

// Bus exposes the event bus so external consumers (catch-up subscribers,
// relays) can attach.
func (s *Service) Bus() *es.Bus { return s.bus }

// Store exposes the backing event store for consumers and rebuilds.
func (s *Service) Store() es.EventStore { return s.store }

// Registry exposes the event registry for catch-up consumers.
func (s *Service) Registry() *es.EventRegistry { return s.registry }

// Start folds the existing event log into the read models. It must complete
// before commands are accepted, otherwise live events race the rebuild.
func (s *Service) Start(ctx context.Context) error {
	for name, p := range s.projections {
		if err := p.Rebuild(ctx, s.store); err != nil {
			return fmt.Errorf("rebuild projection %s: %w", name, err)
		}
	}
	return nil
}

// Submit executes one command with a single attempt: a lost optimistic
// concurrency race surfaces as a conflict Result.
func (s *Service) Submit(ctx context.Context, cmd ledger.Command) ledger.Result {
	return s.submit(ctx, cmd, 1)
}

// SubmitWithRetry executes the command, transparently reloading and retrying
// up to attempts times when the save loses a concurrency race. Validation
// and business-rule failures are never retried.
func (s *Service) SubmitWithRetry(ctx context.Context, cmd ledger.Command, attempts int) ledger.Result {
	return s.submit(ctx, cmd, attempts)
}

func (s *Service) submit(ctx context.Context, cmd ledger.Command, attempts int) ledger.Result {
	cmdID := gonanoid.Must()
	log := s.log.With(
		slog.Group(
			"command",
			slog.String("id", cmdID),
			slog.String("kind", cmd.Kind()),
			slog.String("target", cmd.AggregateID()),
		),
	)

	if !s.limiter.Allow(cmd.AggregateID(), cmd.Kind()) {
		log.Warn("rate limited")
		return ledger.Result{
			CommandID: cmdID,
			Err:       ledger.NewError(ledger.KindRateLimited, ledger.CodeRateLimited, "command %s rate limited", cmd.Kind()),
		}
	}

	if err := cmd.Validate(); err != nil {
		log.Warn("invalid command", slog.Any("error", err))
		return result(cmdID, nil, err)
	}

	res := s.dispatch(ctx, cmdID, cmd, attempts)
	if res.Err != nil {
		log.Warn("command rejected", slog.Any("error", res.Err))
	} else {
		log.Info("command applied", slog.Int("num_events", len(res.Events)))
	}
	return res
}

func (s *Service) dispatch(ctx context.Context, cmdID string, cmd ledger.Command, attempts int) ledger.Result {
	switch c := cmd.(type) {
	case ledger.OpenWallet:
		return exec(ctx, s, s.wallets, cmdID, c.WalletID, attempts, func(w *ledger.Wallet) error {
			return w.Open(c.Owner)
		})
	case ledger.DepositMoney:
		return exec(ctx, s, s.wallets, cmdID, c.WalletID, attempts, func(w *ledger.Wallet) error {
			return w.Deposit(c.Amount, c.Source)
		})
	case ledger.WithdrawMoney:
		return exec(ctx, s, s.wallets, cmdID, c.WalletID, attempts, func(w *ledger.Wallet) error {
			return w.Withdraw(c.Amount, c.Reason)
		})
	case ledger.TransferMoney:
		return exec(ctx, s, s.wallets, cmdID, c.WalletID, attempts, func(w *ledger.Wallet) error {
			return w.Transfer(c.Amount, c.ToWalletID)
		})

	case ledger.OpenBank:
		return exec(ctx, s, s.banks, cmdID, c.BankID, attempts, func(b *ledger.Bank) error {
			return b.Open(c.Name, c.ReserveRequirementBps)
		})
	case ledger.AcceptDeposit:
		return exec(ctx, s, s.banks, cmdID, c.BankID, attempts, func(b *ledger.Bank) error {
			return b.AcceptDeposit(c.DepositorID, c.Amount)
		})
	case ledger.ProcessWithdrawal:
		return exec(ctx, s, s.banks, cmdID, c.BankID, attempts, func(b *ledger.Bank) error {
			return b.ProcessWithdrawal(c.DepositorID, c.Amount)
		})
	case ledger.IssueLoan:
		return exec(ctx, s, s.banks, cmdID, c.BankID, attempts, func(b *ledger.Bank) error {
			return b.IssueLoan(c.BorrowerID, c.Amount)
		})
	case ledger.RepayLoan:
		return exec(ctx, s, s.banks, cmdID, c.BankID, attempts, func(b *ledger.Bank) error {
			return b.RepayLoan(c.BorrowerID, c.Amount)
		})

	case ledger.EstablishReserve:
		return exec(ctx, s, s.reserve, cmdID, ledger.FederalReserveID, attempts, func(f *ledger.FederalReserve) error {
			return f.Establish(c.ExchangeRate)
		})
	case ledger.DepositGold:
		return exec(ctx, s, s.reserve, cmdID, ledger.FederalReserveID, attempts, func(f *ledger.FederalReserve) error {
			return f.DepositGold(c.DepositorWalletID, c.Bars)
		})
	case ledger.WithdrawGold:
		return exec(ctx, s, s.reserve, cmdID, ledger.FederalReserveID, attempts, func(f *ledger.FederalReserve) error {
			return f.WithdrawGold(c.RedeemerWalletID, c.Bars)
		})
	case ledger.SetExchangeRate:
		return exec(ctx, s, s.reserve, cmdID, ledger.FederalReserveID, attempts, func(f *ledger.FederalReserve) error {
			return f.SetExchangeRate(c.Rate)
		})

	case ledger.FormGovernment:
		return exec(ctx, s, s.government, cmdID, ledger.GovernmentID, attempts, func(g *ledger.Government) error {
			return g.Form()
		})
	case ledger.CollectTax:
		return exec(ctx, s, s.government, cmdID, ledger.GovernmentID, attempts, func(g *ledger.Government) error {
			return g.CollectTax(c.TaxpayerID, c.Amount, c.Category)
		})
	case ledger.PaySalary:
		return exec(ctx, s, s.government, cmdID, ledger.GovernmentID, attempts, func(g *ledger.Government) error {
			return g.PaySalary(c.EmployeeWalletID, c.Amount)
		})
	case ledger.AwardContract:
		return exec(ctx, s, s.government, cmdID, ledger.GovernmentID, attempts, func(g *ledger.Government) error {
			return g.AwardContract(c.ContractorWalletID, c.Amount)
		})
	}

	return ledger.Result{
		CommandID: cmdID,
		Err:       ledger.Validation(ledger.CodeUnknownCommand, "unknown command %T", cmd),
	}
}

// exec runs one command against one aggregate: load, apply, save, publish.
// Events an aggregate raised before rejecting the command (a bank recording
// its own failure) are still persisted; the Result then carries both the
// committed events and the rejection.
func exec[T es.Aggregate](
	ctx context.Context,
	s *Service,
	repo es.TypedRepository[T],
	cmdID string,
	aggID string,
	attempts int,
	fn func(T) error,
) ledger.Result {
	var (
		base     es.Version
		rejected error
	)

	agg, err := repo.WithRetry(ctx, aggID, attempts, func(a T) error {
		base = a.GetVersion()
		rejected = nil

		err := fn(a)
		if err != nil && len(a.Uncommitted()) > 0 {
			rejected = err
			return nil
		}
		return err
	})
	if err != nil {
		return result(cmdID, nil, err)
	}

	// Read back only the versions this command appended. Subscribers on the
	// synchronous bus may have already committed follow-up events to the same
	// stream, and those belong to their own commands.
	var events []es.Envelope
	if last := agg.GetVersion(); last > base {
		events, err = s.store.ReadStream(ctx, repo.GetAggType(), aggID, es.WithStartVersion(base+1))
		if err != nil {
			return result(cmdID, nil, fmt.Errorf("read back committed events: %w", err))
		}
		for i, env := range events {
			if env.Version > last {
				events = events[:i]
				break
			}
		}
	}

	return result(cmdID, events, rejected)
}

func result(cmdID string, events []es.Envelope, err error) ledger.Result {
	res := ledger.Result{CommandID: cmdID, Events: events}
	if err == nil {
		return res
	}

	if le, ok := ledger.AsError(err); ok {
		res.Err = le
		return res
	}

	switch {
	case errors.Is(err, es.ErrConcurrencyConflict):
		res.Err = ledger.Conflict("lost optimistic concurrency race: %v", err)
	case errors.Is(err, es.ErrAggregateNotFound):
		res.Err = ledger.NotFound(ledger.CodeAggregateNotFound, "aggregate not found: %v", err)
	default:
		res.Err = ledger.Infrastructure(ledger.CodeStorageFault, "command failed: %v", err)
	}
	return res
}

// Query serves a read-model lookup by projection name and record key.
func (s *Service) Query(name, key string) (any, error) {
	p, ok := s.projections[name]
	if !ok {
		return nil, ledger.NotFound(ledger.CodeUnknownProjection, "unknown projection %q", name)
	}
	rec, ok := p.Lookup(key)
	if !ok {
		return nil, ledger.NotFound(ledger.CodeRecordNotFound, "projection %s has no record %q", name, key)
	}
	return rec, nil
}

var _ saga.Submitter = (*Service)(nil)

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"
	"adwallet/internal/metrics"
	"adwallet/pkg/apperror"
	"adwallet/pkg/ids"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultGuardInterval    = 15 * time.Minute
	defaultGuardConcurrency = 4
	defaultGuardCallTimeout = 10 * time.Second
)

// depositExpirer is the part of the wallet service the guard loop drives
// between ticks.
type depositExpirer interface {
	ExpireDeposits(ctx context.Context, actor domain.Actor, now time.Time) (int, error)
}

// BudgetGuardImpl implements ports.BudgetGuard.
type BudgetGuardImpl struct {
	accounts   ports.ManagedAccountRepository
	campaigns  ports.CampaignRepository
	spend      ports.SpendSource
	controller ports.CampaignController
	notifier   ports.Notifier
	expirer    depositExpirer

	thresholds  domain.GuardThresholds
	interval    time.Duration
	concurrency int
	callTimeout time.Duration
	templates   map[domain.GuardCondition]int64

	runMu sync.Mutex
	now   func() time.Time
	log   zerolog.Logger
}

// NewBudgetGuard creates a new BudgetGuardImpl. expirer may be nil.
func NewBudgetGuard(
	accounts ports.ManagedAccountRepository,
	campaigns ports.CampaignRepository,
	spend ports.SpendSource,
	controller ports.CampaignController,
	notifier ports.Notifier,
	expirer depositExpirer,
	cfg config.GuardConfig,
	log zerolog.Logger,
) (*BudgetGuardImpl, error) {
	low, err := decimal.NewFromString(cfg.LowBalanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("parsing low balance threshold: %w", err)
	}
	margin, err := decimal.NewFromString(cfg.SafetyMargin)
	if err != nil {
		return nil, fmt.Errorf("parsing safety margin: %w", err)
	}

	g := &BudgetGuardImpl{
		accounts:    accounts,
		campaigns:   campaigns,
		spend:       spend,
		controller:  controller,
		notifier:    notifier,
		expirer:     expirer,
		thresholds:  domain.GuardThresholds{LowBalance: low, SafetyMargin: margin},
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		callTimeout: cfg.CallTimeout,
		templates: map[domain.GuardCondition]int64{
			domain.ConditionLowBalance:    cfg.LowBalanceTemplateID,
			domain.ConditionSpendExceeded: cfg.SpendExceededTemplateID,
		},
		now: time.Now,
		log: log,
	}
	if g.interval <= 0 {
		g.interval = defaultGuardInterval
	}
	if g.concurrency <= 0 {
		g.concurrency = defaultGuardConcurrency
	}
	if g.callTimeout <= 0 {
		g.callTimeout = defaultGuardCallTimeout
	}
	return g, nil
}

// accountOutcome is what checking one account contributed to a run.
type accountOutcome struct {
	condition domain.GuardCondition
	paused    int
	notified  bool
	errors    int
}

// RunOnce checks every funded managed account once. Per-account failures are
// counted in the summary; only failing to list accounts is returned as an error.
func (g *BudgetGuardImpl) RunOnce(ctx context.Context) (*domain.GuardSummary, error) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	summary := &domain.GuardSummary{RunID: ids.NewULIDAt(g.now())}
	log := g.log.With().Str("run_id", summary.RunID).Logger()

	accounts, err := g.accounts.ListFunded(ctx)
	if err != nil {
		metrics.GuardRuns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("budget guard could not list managed accounts")
		return nil, apperror.InternalError(fmt.Errorf("list managed accounts: %w", err))
	}

	var (
		mu   sync.Mutex
		eg   errgroup.Group
		seen = make(map[uuid.UUID]struct{}, len(accounts))
	)
	eg.SetLimit(g.concurrency)

	// A started account runs to completion even if the tick is cancelled;
	// each external call is bounded by its own timeout instead.
	accountCtx := context.WithoutCancel(ctx)

	for i := range accounts {
		account := accounts[i]
		if account.FundedBalance == nil {
			continue
		}
		if _, dup := seen[account.ID]; dup {
			continue
		}
		seen[account.ID] = struct{}{}
		if ctx.Err() != nil {
			log.Warn().Msg("budget guard tick cancelled, remaining accounts skipped")
			break
		}

		eg.Go(func() error {
			out := g.checkAccount(accountCtx, log, account)

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			summary.Paused += out.paused
			summary.Errors += out.errors
			if out.notified {
				summary.Notified++
			}
			return nil
		})
	}
	_ = eg.Wait()

	metrics.GuardRuns.WithLabelValues("ok").Inc()
	log.Info().
		Int("checked", summary.Checked).
		Int("paused", summary.Paused).
		Int("notified", summary.Notified).
		Int("errors", summary.Errors).
		Msg("budget guard run finished")

	return summary, nil
}

func (g *BudgetGuardImpl) checkAccount(ctx context.Context, log zerolog.Logger, account domain.ManagedAccount) (out accountOutcome) {
	log = log.With().Str("account_id", account.ID.String()).Logger()
	defer func() {
		label := string(out.condition)
		if label == "" {
			label = "none"
		}
		if out.condition == domain.ConditionNone && out.errors > 0 {
			label = "error"
		}
		metrics.GuardAccounts.WithLabelValues(label).Inc()
	}()

	funded := *account.FundedBalance
	spend := decimal.Zero

	if g.thresholds.IsLowBalance(funded) {
		out.condition = domain.ConditionLowBalance
	} else {
		var err error
		spend, err = g.lifetimeSpend(ctx, account)
		if err != nil {
			log.Warn().Err(err).Msg("spend lookup failed")
			out.errors++
			return out
		}
		if g.thresholds.IsOverspent(funded, spend) {
			out.condition = domain.ConditionSpendExceeded
		}
	}
	if out.condition == domain.ConditionNone {
		return out
	}

	log.Warn().
		Str("condition", string(out.condition)).
		Str("funded", funded.String()).
		Str("spend", spend.String()).
		Msg("budget breach detected")

	paused, failed := g.pauseCampaigns(ctx, log, account)
	out.paused = paused
	out.errors += failed

	dedupeKey := fmt.Sprintf("budget_guard:%s:%s", out.condition, account.ID)
	res := g.notifier.Notify(ctx, account.Recipient, dedupeKey, g.message(out.condition, account, funded, spend))
	switch res.Status {
	case domain.NotifySent:
		out.notified = true
	case domain.NotifyFailed:
		log.Warn().Str("channel", string(res.Channel)).Msg("breach notification failed")
		out.errors++
	}
	return out
}

func (g *BudgetGuardImpl) lifetimeSpend(ctx context.Context, account domain.ManagedAccount) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	return g.spend.LifetimeSpend(ctx, account)
}

// pauseCampaigns pauses every campaign still delivering. A failed pause is
// counted and the remaining campaigns are still attempted.
func (g *BudgetGuardImpl) pauseCampaigns(ctx context.Context, log zerolog.Logger, account domain.ManagedAccount) (paused, failed int) {
	listCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	campaigns, err := g.campaigns.ListByAccount(listCtx, account.ID)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("listing campaigns failed")
		return 0, 1
	}

	for _, c := range campaigns {
		if !c.NeedsPause() {
			continue
		}
		if err := g.pauseCampaign(ctx, account, c.ID); err != nil {
			log.Warn().Err(err).Str("campaign_id", c.ID).Msg("pause command failed")
			failed++
			continue
		}
		paused++
		metrics.GuardCampaignsPaused.Inc()

		if err := g.mirrorPaused(ctx, account, c.ID); err != nil {
			log.Warn().Err(err).Str("campaign_id", c.ID).Msg("failed to mirror paused status")
		}
	}
	return paused, failed
}

func (g *BudgetGuardImpl) pauseCampaign(ctx context.Context, account domain.ManagedAccount, campaignID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	if err := g.controller.SetCampaignStatus(ctx, account.Platform, campaignID, domain.CampaignStatusPaused); err != nil {
		return apperror.ErrExternalUnavailable(string(account.Platform), err)
	}
	return nil
}

func (g *BudgetGuardImpl) mirrorPaused(ctx context.Context, account domain.ManagedAccount, campaignID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	return g.campaigns.UpdateStatus(ctx, account.ID, campaignID, domain.CampaignStatusPaused)
}

func (g *BudgetGuardImpl) message(condition domain.GuardCondition, account domain.ManagedAccount, funded, spend decimal.Decimal) domain.Message {
	name := account.Name
	if name == "" {
		name = account.ExternalID
	}
	params := map[string]any{
		"account_name":   name,
		"account_id":     account.ExternalID,
		"platform":       string(account.Platform),
		"funded_balance": funded.StringFixed(2),
		"currency":       account.Currency,
	}

	var text string
	switch condition {
	case domain.ConditionLowBalance:
		text = fmt.Sprintf(
			"Ad account %s (%s) is running low: %s %s left. Campaigns have been paused, top up your wallet to resume.",
			name, account.Platform, funded.StringFixed(2), account.Currency,
		)
	default:
		params["lifetime_spend"] = spend.StringFixed(2)
		text = fmt.Sprintf(
			"Ad account %s (%s) has spent %s %s against a funded balance of %s %s. Campaigns have been paused.",
			name, account.Platform, spend.StringFixed(2), account.Currency, funded.StringFixed(2), account.Currency,
		)
	}

	return domain.Message{
		Text:       text,
		TemplateID: g.templates[condition],
		Params:     params,
	}
}

// Run ticks every interval until ctx is cancelled, expiring stale deposit
// orders before each guard run.
func (g *BudgetGuardImpl) Run(ctx context.Context) error {
	g.log.Info().Dur("interval", g.interval).Int("concurrency", g.concurrency).Msg("budget guard started")

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		g.tick(ctx)

		select {
		case <-ctx.Done():
			g.log.Info().Msg("budget guard stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (g *BudgetGuardImpl) tick(ctx context.Context) {
	if g.expirer != nil {
		if n, err := g.expirer.ExpireDeposits(ctx, domain.SystemActor, g.now().UTC()); err != nil {
			g.log.Error().Err(err).Msg("expiring deposits failed")
		} else if n > 0 {
			g.log.Info().Int("expired", n).Msg("stale deposit orders cancelled")
		}
	}
	if _, err := g.RunOnce(ctx); err != nil {
		g.log.Error().Err(err).Msg("budget guard run failed")
	}
}

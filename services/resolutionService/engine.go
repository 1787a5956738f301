package resolutionService

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"streakEngine/metrics"
	"streakEngine/models"
	"streakEngine/pkg/contracts/events"
	"streakEngine/services/betService"
	"streakEngine/services/common"
	"streakEngine/services/ledgerService"
	"streakEngine/services/notifyService"
)

type Config struct {
	// RetryBudget is the number of attempts before a parlay is marked RESOLUTION_FAILED.
	RetryBudget     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	PushPolicy      betService.PushPolicy
}

func DefaultConfig() Config {
	return Config{
		RetryBudget:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		PushPolicy:      betService.PushAsLoss,
	}
}

// Engine resolves one LOCKED parlay per call as a single transaction. It keeps no
// state between calls.
type Engine struct {
	db      *gorm.DB
	ledger  *ledgerService.Ledger
	notify  *notifyService.FanOut
	log     *zap.Logger
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

func NewEngine(db *gorm.DB, ledger *ledgerService.Ledger, notify *notifyService.FanOut, log *zap.Logger, m *metrics.Metrics, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RetryBudget < 1 {
		cfg.RetryBudget = 1
	}
	if cfg.PushPolicy == "" {
		cfg.PushPolicy = betService.PushAsLoss
	}
	return &Engine{
		db:      db,
		ledger:  ledger,
		notify:  notify,
		log:     log.Named("resolution"),
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

// resolution is the committed result of one parlay.
type resolution struct {
	parlay     models.Parlay
	user       models.User
	entries    []models.StreakHistoryEntry
	transition betService.InsuranceTransition
}

// Resolve settles a LOCKED parlay. Transient failures are retried with exponential
// backoff; once the budget is spent the parlay is marked RESOLUTION_FAILED and an
// ErrorLog alert is written. Already resolved parlays return ErrInvalidState and
// change nothing.
func (e *Engine) Resolve(ctx context.Context, parlayID uint) error {
	attempts := 0
	var res *resolution

	op := func() error {
		attempts++
		r, err := e.resolveOnce(ctx, parlayID, attempts, false)
		if err != nil {
			if permanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialInterval
	b.MaxInterval = e.cfg.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.RetryBudget-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		e.metrics.Retry()
		e.log.Warn("parlay resolution retry",
			zap.Uint("parlay_id", parlayID),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})

	switch {
	case err == nil:
		e.committed(res)
		return nil
	case errors.Is(err, ErrInvalidState):
		e.metrics.Skipped()
		e.log.Info("parlay skipped", zap.Uint("parlay_id", parlayID), zap.Error(err))
		return err
	case errors.Is(err, ErrOrderingBlock):
		e.metrics.Blocked(1)
		e.log.Debug("parlay withheld", zap.Uint("parlay_id", parlayID), zap.Error(err))
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	if markErr := e.markFailed(ctx, parlayID, attempts, err); markErr != nil {
		e.log.Error("could not mark parlay failed",
			zap.Uint("parlay_id", parlayID),
			zap.NamedError("cause", err),
			zap.Error(markErr),
		)
		return fmt.Errorf("resolve parlay %d: %w", parlayID, err)
	}
	return fmt.Errorf("%w: parlay %d after %d attempts: %v", ErrResolutionFailed, parlayID, attempts, err)
}

// Remediate is the operator path for a RESOLUTION_FAILED parlay: one attempt, no
// failure marking, same ordering and idempotence rules as Resolve.
func (e *Engine) Remediate(ctx context.Context, parlayID uint) error {
	res, err := e.resolveOnce(ctx, parlayID, 0, true)
	if err != nil {
		return fmt.Errorf("remediate parlay %d: %w", parlayID, err)
	}
	e.log.Info("parlay remediated", zap.Uint("parlay_id", parlayID))
	e.committed(res)
	return nil
}

func (e *Engine) resolveOnce(ctx context.Context, parlayID uint, attempt int, manual bool) (*resolution, error) {
	var out *resolution

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head models.Parlay
		if err := tx.Select("id", "user_id").First(&head, parlayID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: parlay %d not found", ErrInvalidState, parlayID)
			}
			return err
		}

		user, err := e.ledger.LockUser(tx, head.UserID)
		if err != nil {
			return err
		}

		var parlay models.Parlay
		if err := tx.Preload("Legs").Preload("Legs.Game").First(&parlay, parlayID).Error; err != nil {
			return err
		}
		if err := resolvable(parlay, manual); err != nil {
			return err
		}

		key := parlay.LastLegEndTime
		if key == nil {
			key = betService.LastLegEndTime(parlay)
			parlay.LastLegEndTime = key
		}
		if err := e.checkOrder(tx, parlay); err != nil {
			return err
		}

		eval := betService.EvaluateOutcome(betService.LegOutcomes(parlay), e.cfg.PushPolicy)
		if eval.Outcome == betService.OutcomeIndeterminate || len(parlay.Legs) != parlay.LegCount {
			return fmt.Errorf("%w: parlay %d has %d/%d legs graded as %v",
				ErrIndeterminate, parlay.ID, len(parlay.Legs), parlay.LegCount, betService.LegOutcomes(parlay))
		}

		machine, err := e.insuranceMachine(tx, *user)
		if err != nil {
			return err
		}

		resolvedAt, err := e.ledger.NextTimestamp(tx, user.ID, e.now())
		if err != nil {
			return err
		}

		won := eval.Outcome == betService.OutcomeWin
		_, transition := machine.Step(betService.ResolutionRecord{
			ParlayID:   parlay.ID,
			Insured:    parlay.Insured,
			Won:        won,
			ResolvedAt: resolvedAt,
		})

		entries, err := e.applyStreak(tx, user, parlay, eval, transition, resolvedAt)
		if err != nil {
			return err
		}

		status := models.ParlayLost
		if won {
			status = models.ParlayWon
		}
		upd := tx.Model(&models.Parlay{}).
			Where("id = ? AND resolved_at IS NULL", parlay.ID).
			Updates(map[string]interface{}{
				"status":                status,
				"resolved_at":           resolvedAt,
				"last_leg_end_time":     key,
				"resolution_attempts":   attempt,
				"last_resolution_error": "",
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected != 1 {
			return fmt.Errorf("%w: parlay %d resolved concurrently", ErrInvalidState, parlay.ID)
		}

		parlay.Status = status
		parlay.ResolvedAt = &resolvedAt
		out = &resolution{parlay: parlay, user: *user, entries: entries, transition: transition}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func resolvable(p models.Parlay, manual bool) error {
	if p.ResolvedAt != nil || p.Terminal() {
		return fmt.Errorf("%w: parlay %d already resolved as %s", ErrInvalidState, p.ID, p.Status)
	}
	switch p.Status {
	case models.ParlayLocked:
		return nil
	case models.ParlayResolutionFailed:
		if manual {
			return nil
		}
	}
	return fmt.Errorf("%w: parlay %d is %s", ErrInvalidState, p.ID, p.Status)
}

// checkOrder refuses to resolve p while the same user has an unresolved parlay
// that sorts before it. The caller holds the user row lock.
func (e *Engine) checkOrder(tx *gorm.DB, p models.Parlay) error {
	var others []models.Parlay
	err := tx.Where("user_id = ? AND id <> ? AND resolved_at IS NULL AND status IN ?",
		p.UserID, p.ID, []models.ParlayStatus{models.ParlayLocked, models.ParlayResolutionFailed}).
		Find(&others).Error
	if err != nil {
		return err
	}
	for _, q := range others {
		if q.LastLegEndTime != nil && q.OrderedBefore(p) {
			return fmt.Errorf("%w: parlay %d waits for parlay %d (%s)", ErrOrderingBlock, p.ID, q.ID, q.Status)
		}
	}
	return nil
}

// insuranceMachine rebuilds the user's insurance state from resolved parlays. The
// user row wins if the two disagree; the history only supplies the last insured loss.
func (e *Engine) insuranceMachine(tx *gorm.DB, user models.User) (betService.InsuranceMachine, error) {
	var resolved []models.Parlay
	err := tx.Select("id", "insured", "status", "resolved_at").
		Where("user_id = ? AND resolved_at IS NOT NULL AND status IN ?",
			user.ID, []models.ParlayStatus{models.ParlayWon, models.ParlayLost}).
		Order("resolved_at ASC, id ASC").
		Find(&resolved).Error
	if err != nil {
		return betService.InsuranceMachine{}, err
	}

	history := make([]betService.ResolutionRecord, 0, len(resolved))
	for _, p := range resolved {
		if r, ok := betService.ResolutionRecordFor(p); ok {
			history = append(history, r)
		}
	}
	machine := betService.ReplayInsurance(history)

	want := betService.InsuranceUnlocked
	if user.InsuranceLocked {
		want = betService.InsuranceLocked
	}
	if machine.State != want {
		e.log.Warn("insurance state differs from resolution history",
			zap.Uint("user_id", user.ID),
			zap.String("user_row", string(want)),
			zap.String("history", string(machine.State)),
		)
		machine.State = want
	}
	return machine, nil
}

func (e *Engine) applyStreak(tx *gorm.DB, user *models.User, p models.Parlay, eval betService.Evaluation, transition betService.InsuranceTransition, at time.Time) ([]models.StreakHistoryEntry, error) {
	var muts []ledgerService.Mutation

	switch {
	case eval.Outcome == betService.OutcomeWin:
		value, err := common.ParlayValue(eval.EffectiveLegs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndeterminate, err)
		}
		next := user.CurrentStreak + value - p.InsuranceCost
		if next < 0 {
			next = 0
		}
		muts = append(muts, ledgerService.Mutation{ParlayID: p.ID, ChangeType: models.StreakChangeWin, NewStreak: next, At: at})
	case p.Insured:
		muts = append(muts, ledgerService.Mutation{ParlayID: p.ID, ChangeType: models.StreakChangeLoss, NewStreak: user.CurrentStreak, At: at})
	default:
		muts = append(muts, ledgerService.Mutation{ParlayID: p.ID, ChangeType: models.StreakChangeLoss, NewStreak: 0, At: at})
	}

	// The ledger reads streak values when appending, so these carry the post-resolution streak.
	switch transition {
	case betService.InsuranceLock:
		muts = append(muts, ledgerService.Mutation{ParlayID: p.ID, ChangeType: models.StreakChangeInsuranceLock, At: at})
	case betService.InsuranceUnlock:
		muts = append(muts, ledgerService.Mutation{ParlayID: p.ID, ChangeType: models.StreakChangeInsuranceUnlock, At: at})
	}

	entries := make([]models.StreakHistoryEntry, 0, len(muts))
	for i, m := range muts {
		if i > 0 {
			m.NewStreak = user.CurrentStreak
		}
		entry, err := e.ledger.Append(tx, user, m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// maxErrorLen bounds last_resolution_error in bytes.
const maxErrorLen = 500

// truncateError cuts msg to at most n bytes without splitting a rune.
func truncateError(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

func (e *Engine) markFailed(ctx context.Context, parlayID uint, attempts int, cause error) error {
	msg := truncateError(cause.Error(), maxErrorLen)
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&models.Parlay{}).
			Where("id = ? AND resolved_at IS NULL AND status = ?", parlayID, models.ParlayLocked).
			Updates(map[string]interface{}{
				"status":                models.ParlayResolutionFailed,
				"resolution_attempts":   attempts,
				"last_resolution_error": msg,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return nil
		}

		id := parlayID
		alert := models.ErrorLog{
			Source:   "resolution",
			ParlayID: &id,
			Message:  fmt.Sprintf("parlay %d marked %s after %d attempts: %s", parlayID, models.ParlayResolutionFailed, attempts, msg),
		}
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}

		e.metrics.Failed()
		e.log.Error("parlay needs manual resolution",
			zap.Uint("parlay_id", parlayID),
			zap.Int("attempts", attempts),
			zap.String("cause", msg),
		)
		return nil
	})
}

// committed runs after the transaction: metrics, logs and queued events. It
// never waits on a sink.
func (e *Engine) committed(r *resolution) {
	p := r.parlay
	e.metrics.Resolved(string(p.Status))
	e.log.Info("parlay resolved",
		zap.Uint("parlay_id", p.ID),
		zap.Uint("user_id", p.UserID),
		zap.String("status", string(p.Status)),
		zap.Bool("insured", p.Insured),
		zap.Int("streak", r.user.CurrentStreak),
	)

	evs := []events.Envelope{
		notifyService.NewEnvelope(events.ParlayResolved, p.UserID, events.ParlayResolvedPayload{
			ParlayID:      p.ID,
			Status:        string(p.Status),
			Insured:       p.Insured,
			Value:         p.Value,
			InsuranceCost: p.InsuranceCost,
			ResolvedAt:    *p.ResolvedAt,
		}),
	}
	for _, entry := range r.entries {
		switch entry.ChangeType {
		case models.StreakChangeWin, models.StreakChangeLoss:
			evs = append(evs, notifyService.NewEnvelope(events.StreakUpdated, p.UserID, events.StreakUpdatedPayload{
				ParlayID:      p.ID,
				OldStreak:     entry.OldStreak,
				NewStreak:     entry.NewStreak,
				ChangeAmount:  entry.ChangeAmount,
				ChangeType:    string(entry.ChangeType),
				LongestStreak: r.user.LongestStreak,
			}))
		case models.StreakChangeInsuranceLock:
			e.metrics.Insurance("lock")
			evs = append(evs, notifyService.NewEnvelope(events.InsuranceLocked, p.UserID, events.InsurancePayload{ParlayID: p.ID, Locked: true}))
		case models.StreakChangeInsuranceUnlock:
			e.metrics.Insurance("unlock")
			evs = append(evs, notifyService.NewEnvelope(events.InsuranceUnlocked, p.UserID, events.InsurancePayload{ParlayID: p.ID, Locked: false}))
		}
	}
	e.notify.Publish(evs...)
}

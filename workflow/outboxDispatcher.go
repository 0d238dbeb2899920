package workflow

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const relayLockName = "cash-flow-relay"

// Publisher sends one cash-flow message and returns the broker's message id.
type Publisher func(ctx context.Context, orderingKey string, msg config.CashFlowMessage) (string, error)

// OutboxDispatcher relays committed cash-flow events to Pub/Sub, in order per
// asset, invoice or expense. One relay runs per database at a time; events are
// published while their rows are locked, so a relay that dies mid-batch leaves
// them PENDING for the next one.
type OutboxDispatcher struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	Publish Publisher

	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:           db,
		Logger:       logger,
		Publish:      config.PublishCashFlowEvent,
		BatchSize:    50,
		PollInterval: 500 * time.Millisecond,
		MaxAttempts:  20,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce publishes one batch and returns how many events were sent.
// It returns 0 without waiting when another relay holds the lock.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil || d.Publish == nil {
		return 0
	}
	// the relay spans every business
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	sent := 0
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var got int
		if err := tx.Raw("SELECT GET_LOCK(?, 0)", relayLockName).Scan(&got).Error; err != nil {
			return err
		}
		if got != 1 {
			return nil
		}
		defer tx.Exec("SELECT RELEASE_LOCK(?)", relayLockName)

		events, err := models.ClaimPendingCashFlowEvents(tx, d.BatchSize)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, r := range publishInOrder(ctx, events, d.Publish) {
			switch {
			case r.Held:
			case r.Err != nil:
				d.logPublishFailure(r)
				if err := models.MarkCashFlowEventFailed(tx, r.Event, r.Err, d.MaxAttempts); err != nil {
					return err
				}
			default:
				if err := models.MarkCashFlowEventSent(tx, r.Event, r.MessageId, now); err != nil {
					return err
				}
				sent++
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(d.Logger, "workflow", "OutboxDispatcher", "relay batch", nil, err)
		return 0
	}
	return sent
}

type publishResult struct {
	Event     *models.CashFlowEvent
	MessageId string
	Err       error
	// Held is set for events not attempted because an earlier event with the
	// same ordering key failed in this batch.
	Held bool
}

// publishInOrder publishes events in slice order. After a failure the rest of
// that ordering key is held back so a consumer never sees a later change first.
func publishInOrder(ctx context.Context, events []*models.CashFlowEvent, publish Publisher) []publishResult {
	blocked := map[string]bool{}
	results := make([]publishResult, 0, len(events))
	for _, ev := range events {
		key := ev.OrderingKey()
		if blocked[key] {
			results = append(results, publishResult{Event: ev, Held: true})
			continue
		}
		id, err := publish(ctx, key, ev.Message())
		if err != nil {
			blocked[key] = true
		}
		results = append(results, publishResult{Event: ev, MessageId: id, Err: err})
	}
	return results
}

func (d *OutboxDispatcher) logPublishFailure(r publishResult) {
	if d.Logger == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"field":        "OutboxDispatcher",
		"business_id":  r.Event.BusinessId,
		"event_id":     r.Event.ID,
		"ordering_key": r.Event.OrderingKey(),
		"attempt":      r.Event.PublishAttempts + 1,
	}).Error("cash flow event publish failed: " + r.Err.Error())
}

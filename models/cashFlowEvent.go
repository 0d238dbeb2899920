package models

import (
	"context"
	"fmt"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Publish statuses of a CashFlowEvent.
const (
	OutboxPublishStatusPending = "PENDING"
	OutboxPublishStatusSent    = "SENT"
	OutboxPublishStatusDead    = "DEAD"
)

// CashFlowEvent is the outbox row of one cash-flow change. It is written on the
// transaction that changes the cash flow and relayed to Pub/Sub after commit.
type CashFlowEvent struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	BusinessId       string              `gorm:"size:64;not null;index" json:"business_id"`
	CashFlowId       int                 `gorm:"not null;index" json:"cash_flow_id"`
	Action           CashFlowEventAction `gorm:"size:10;not null" json:"action"`
	CashFlowType     CashFlowType        `gorm:"size:10;not null" json:"cash_flow_type"`
	Category         string              `gorm:"size:50;not null" json:"category"`
	ReferenceType    string              `gorm:"size:30;not null" json:"reference_type"`
	ReferenceKey     string              `gorm:"size:64" json:"reference_key"`
	Currency         CurrencyCode        `gorm:"size:3;not null" json:"currency"`
	Amount           decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"amount"`
	AmountIdr        decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"amount_idr"`
	BalanceDeltaIdr  decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"balance_delta_idr"`
	TransactionDate  time.Time           `gorm:"not null" json:"transaction_date"`
	CorrelationId    string              `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus    string              `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	PublishedAt      *time.Time          `json:"published_at"`
	MessageId        *string             `gorm:"size:255" json:"message_id"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderingKey groups the events whose order matters to a consumer: every change
// produced by one asset, invoice or expense.
func (ev *CashFlowEvent) OrderingKey() string {
	if ev.ReferenceKey == "" {
		return fmt.Sprintf("%s/cash-flow#%d", ev.BusinessId, ev.CashFlowId)
	}
	return ev.BusinessId + "/" + ev.ReferenceKey
}

func (ev *CashFlowEvent) Message() config.CashFlowMessage {
	return config.CashFlowMessage{
		EventId:         ev.ID,
		BusinessId:      ev.BusinessId,
		CashFlowId:      ev.CashFlowId,
		Action:          string(ev.Action),
		Type:            string(ev.CashFlowType),
		Category:        ev.Category,
		ReferenceType:   ev.ReferenceType,
		ReferenceKey:    ev.ReferenceKey,
		Currency:        string(ev.Currency),
		Amount:          ev.Amount,
		AmountIdr:       ev.AmountIdr,
		BalanceDeltaIdr: ev.BalanceDeltaIdr,
		TransactionDate: ev.TransactionDate,
		CorrelationId:   ev.CorrelationId,
	}
}

// signedIdr is the cash position effect of cf: income adds, outcome subtracts.
func signedIdr(cf *CashFlow) decimal.Decimal {
	if cf == nil {
		return decimal.Zero
	}
	if cf.Type == CashFlowTypeOutcome {
		return cf.AmountIdr.Neg()
	}
	return cf.AmountIdr
}

// NewCashFlowEvent describes the change from before to after. before is nil for a
// new cash flow and after is nil for a removed one.
func NewCashFlowEvent(ctx context.Context, before *CashFlow, after *CashFlow) CashFlowEvent {
	current, action := after, CashFlowCorrected
	switch {
	case before == nil:
		action = CashFlowRecorded
	case after == nil:
		current, action = before, CashFlowRemoved
	}
	return CashFlowEvent{
		BusinessId:      current.BusinessId,
		CashFlowId:      current.ID,
		Action:          action,
		CashFlowType:    current.Type,
		Category:        current.Category,
		ReferenceType:   current.ReferenceType,
		ReferenceKey:    current.ReferenceKey,
		Currency:        current.Currency,
		Amount:          current.Amount,
		AmountIdr:       current.AmountIdr,
		BalanceDeltaIdr: signedIdr(after).Sub(signedIdr(before)),
		TransactionDate: current.TransactionDate,
		CorrelationId:   correlationIdFromContextOrNew(ctx),
		PublishStatus:   OutboxPublishStatusPending,
	}
}

// recordCashFlowEvent writes the outbox row for a cash-flow change on tx.
func recordCashFlowEvent(ctx context.Context, tx *gorm.DB, before *CashFlow, after *CashFlow) error {
	ev := NewCashFlowEvent(ctx, before, after)
	return tx.Create(&ev).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ClaimPendingCashFlowEvents locks up to limit pending events, oldest first, on tx.
func ClaimPendingCashFlowEvents(tx *gorm.DB, limit int) ([]*CashFlowEvent, error) {
	var events []*CashFlowEvent
	err := tx.Clauses(lockingForUpdate()).
		Where("publish_status = ?", OutboxPublishStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func MarkCashFlowEventSent(tx *gorm.DB, ev *CashFlowEvent, messageId string, at time.Time) error {
	ev.PublishStatus = OutboxPublishStatusSent
	ev.PublishedAt = &at
	ev.MessageId = &messageId
	return tx.Model(ev).Updates(map[string]interface{}{
		"publish_status": ev.PublishStatus,
		"published_at":   ev.PublishedAt,
		"message_id":     ev.MessageId,
	}).Error
}

// MarkCashFlowEventFailed counts a failed publish. The event stays PENDING until
// maxAttempts publishes have failed, then it is parked as DEAD.
func MarkCashFlowEventFailed(tx *gorm.DB, ev *CashFlowEvent, publishErr error, maxAttempts int) error {
	msg := publishErr.Error()
	ev.PublishAttempts++
	ev.LastPublishError = &msg
	if maxAttempts > 0 && ev.PublishAttempts >= maxAttempts {
		ev.PublishStatus = OutboxPublishStatusDead
	}
	return tx.Model(ev).Updates(map[string]interface{}{
		"publish_status":     ev.PublishStatus,
		"publish_attempts":   ev.PublishAttempts,
		"last_publish_error": ev.LastPublishError,
	}).Error
}

type OutboxStats struct {
	PublishStatus string `json:"publish_status"`
	Count         int64  `json:"count"`
}

// GetOutboxStats counts a business's cash-flow events per publish status.
func GetOutboxStats(ctx context.Context, businessId string) ([]OutboxStats, error) {
	db := config.GetDB()
	var stats []OutboxStats
	err := db.WithContext(ctx).Model(&CashFlowEvent{}).
		Select("publish_status, COUNT(*) AS count").
		Where("business_id = ?", businessId).
		Group("publish_status").
		Order("publish_status").
		Scan(&stats).Error
	return stats, err
}

// RequeueDeadOutbox puts DEAD events of a business back to PENDING.
func RequeueDeadOutbox(ctx context.Context, businessId string) (int64, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&CashFlowEvent{}).
		Where("business_id = ? AND publish_status = ?", businessId, OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
		})
	return res.RowsAffected, res.Error
}

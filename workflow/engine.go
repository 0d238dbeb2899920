package workflow

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/dealerbooks/dealer_backend/workflow")

// Engine runs the financial operations. Each public call is one database
// transaction; the business id parameter scopes every read and write.
type Engine struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	// RatesFor returns the rate source used inside a transaction.
	RatesFor func(tx *gorm.DB) models.RateProvider
	Now      func() time.Time

	Retry RetryPolicy
}

func NewEngine(db *gorm.DB, logger *logrus.Logger) *Engine {
	return &Engine{
		DB:     db,
		Logger: logger,
		RatesFor: func(tx *gorm.DB) models.RateProvider {
			return models.NewDBRateProvider(tx)
		},
		Now:   time.Now,
		Retry: DefaultRetryPolicy(),
	}
}

func (e *Engine) converter(tx *gorm.DB) *models.CurrencyConverter {
	c := models.NewCurrencyConverter(e.RatesFor(tx))
	if e.Logger != nil {
		c.Logger = e.Logger
	}
	return c
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logError(funcName string, context string, data any, err error) {
	config.LogError(e.Logger, "workflow", funcName, context, data, err)
}

// inTx runs fn in one transaction under a span named op. The business id is put
// on the context so the tenant guard scopes every statement.
func (e *Engine) inTx(ctx context.Context, op string, businessId string, attrs []attribute.KeyValue, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if businessId == "" {
		return utils.ValidationError("business id is required")
	}
	attrs = append(attrs, attribute.String("business_id", businessId))
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("user_name", userName))
	}
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	ctx = utils.SetBusinessIdInContext(ctx, businessId)
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
	err = utils.ClassifyDBError(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch utils.KindOf(err) {
		case utils.KindValidation, utils.KindInvalidState, utils.KindNotFound:
		default:
			e.logError(op, "transaction failed", businessId, err)
		}
	}
	return err
}

func refAttrs(ref models.AssetRef) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("asset_type", string(ref.Type)),
		attribute.Int("asset_id", ref.Id),
	}
}

package workflow

import (
	"context"
	"sync/atomic"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const purchaseCostComponent = "PURCHASE"

func (e *Engine) CreateMotorcycle(ctx context.Context, businessId string, input *models.NewMotorcycle) (*models.Motorcycle, error) {
	var m *models.Motorcycle
	err := e.inTx(ctx, "Asset.CreateMotorcycle", businessId, nil, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		m, err = models.CreateMotorcycle(ctx, tx, businessId, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateProduct inserts a product and books its purchase price, when given, as
// the first cost entry.
func (e *Engine) CreateProduct(ctx context.Context, businessId string, input *models.NewProduct) (*models.Product, error) {
	var p *models.Product
	err := e.inTx(ctx, "Asset.CreateProduct", businessId, nil, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		p, err = models.CreateProduct(ctx, tx, businessId, input)
		if err != nil {
			return err
		}
		if input.PurchasePrice == nil {
			return nil
		}
		purchaseDate := p.PurchaseDate
		if _, err := e.addCostTx(ctx, tx, businessId, p, &models.NewAssetCost{
			Component:       purchaseCostComponent,
			Description:     "Purchase " + p.Name,
			Amount:          *input.PurchasePrice,
			Currency:        p.Currency,
			TransactionDate: &purchaseDate,
		}); err != nil {
			return err
		}
		_, err = e.refreshTotals(ctx, tx, businessId, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateSparepart inserts a sparepart and books its opening stock as an OPENING movement.
func (e *Engine) CreateSparepart(ctx context.Context, businessId string, input *models.NewSparepart) (*models.Sparepart, error) {
	var s *models.Sparepart
	err := e.inTx(ctx, "Asset.CreateSparepart", businessId, nil, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		s, err = models.CreateSparepart(ctx, tx, businessId, input)
		if err != nil {
			return err
		}
		if input.Stock == 0 {
			return nil
		}
		return moveStock(tx, s, input.Stock, models.StockAdjustmentTypeOpening, "Opening stock", nil)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

type DeleteAssetOptions struct {
	// IncludeSale allows deleting a sold asset together with its sale.
	IncludeSale bool
}

// DeleteAsset removes an asset with its cost entries, their cash flows and, when
// allowed, its sale, in one transaction.
func (e *Engine) DeleteAsset(ctx context.Context, businessId string, ref models.AssetRef, opts DeleteAssetOptions) error {
	attrs := append(refAttrs(ref), attribute.Bool("include_sale", opts.IncludeSale))
	return e.inTx(ctx, "Asset.Delete", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		asset, err := models.LockAsset(tx, businessId, ref)
		if err != nil {
			return err
		}
		sale, err := models.FindSaleForUpdate(tx, businessId, ref)
		if err != nil {
			return err
		}
		if asset.Financials().IsSold() || sale != nil {
			if !opts.IncludeSale {
				return utils.InvalidStateError("asset already sold; deleting it requires removing the sale")
			}
			if sale != nil {
				if err := models.DeleteSaleTransaction(ctx, tx, sale); err != nil {
					return err
				}
			}
		}
		if err := models.DeleteAssetCosts(ctx, tx, businessId, ref); err != nil {
			return err
		}
		if s, ok := asset.(*models.Sparepart); ok {
			if err := models.DeleteSparepartHistory(ctx, tx, s); err != nil {
				return err
			}
		}
		return models.DeleteAssetRecord(tx, asset)
	})
}

// ToggleAssetStatus flips AVAILABLE and INACTIVE; other unsold statuses become AVAILABLE.
func (e *Engine) ToggleAssetStatus(ctx context.Context, businessId string, ref models.AssetRef) (models.Asset, error) {
	var asset models.Asset
	err := e.inTx(ctx, "Asset.ToggleStatus", businessId, refAttrs(ref), func(ctx context.Context, tx *gorm.DB) error {
		var err error
		asset, err = models.LockAsset(tx, businessId, ref)
		if err != nil {
			return err
		}
		next, err := models.ToggledStatus(asset.Financials().Status)
		if err != nil {
			return err
		}
		return models.SaveAssetStatus(tx, asset, next)
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// UpdateAssetStatus moves an asset through its preparation statuses. SOLD is
// neither set nor left here.
func (e *Engine) UpdateAssetStatus(ctx context.Context, businessId string, ref models.AssetRef, status models.AssetStatus) (models.Asset, error) {
	attrs := append(refAttrs(ref), attribute.String("status", string(status)))
	var asset models.Asset
	err := e.inTx(ctx, "Asset.UpdateStatus", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		asset, err = models.LockAsset(tx, businessId, ref)
		if err != nil {
			return err
		}
		if err := models.CheckManualStatusChange(asset.Financials().Status, status); err != nil {
			return err
		}
		return models.SaveAssetStatus(tx, asset, status)
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

type RecomputeSummary struct {
	Assets int
	Failed int
}

// RecomputeBusiness re-projects every asset of a business at today's rate and
// re-runs the profit cascade. Each asset is its own transaction; one failure does
// not stop the others. A business advisory lock keeps two passes from overlapping.
func (e *Engine) RecomputeBusiness(ctx context.Context, businessId string, concurrency int) (RecomputeSummary, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	var summary RecomputeSummary
	err := e.DB.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := AcquireBusinessLock(conn, "recompute", businessId); err != nil {
			return err
		}
		defer ReleaseBusinessLock(conn, "recompute", businessId)

		refs, err := models.ListAssetRefs(ctx, e.DB, businessId)
		if err != nil {
			return err
		}
		summary.Assets = len(refs)

		var failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, ref := range refs {
			ref := ref
			g.Go(func() error {
				if _, err := e.RecomputeTotal(gctx, businessId, ref); err != nil {
					failed.Add(1)
					if e.Logger != nil {
						e.Logger.WithFields(logrus.Fields{
							"field":       "RecomputeBusiness",
							"business_id": businessId,
							"asset":       ref.String(),
						}).Error("recompute failed: " + err.Error())
					}
				}
				return gctx.Err()
			})
		}
		err = g.Wait()
		summary.Failed = int(failed.Load())
		return err
	})
	return summary, err
}

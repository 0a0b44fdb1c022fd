// Package fees turns raw marketplace fee estimates into structured
// breakdowns.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sellerscope/arbscan/internal/domain"
	"github.com/sellerscope/arbscan/internal/platform/spapi"
	"github.com/sellerscope/arbscan/internal/retry"
)

// Source retrieves raw fee estimates from the external API.
type Source interface {
	GetFeesEstimate(ctx context.Context, asin string, price float64, currency, marketplaceID string) (spapi.FeesEstimate, error)
}

// Throttle gates external calls on a per-key minimum interval.
type Throttle interface {
	Wait(ctx context.Context, key string, minInterval time.Duration) error
}

// Calculator produces FeeBreakdowns. Rate-limit failures are retried via the
// configured policy; any other failure is returned immediately so the caller
// can skip the identifier.
type Calculator struct {
	source   Source
	throttle Throttle
	interval time.Duration
	policy   retry.Policy
	dsfPct   float64
	logger   *slog.Logger
}

// NewCalculator creates a Calculator. dsfPct is the percentage of total
// reported fees used to derive the digital services fee when the response
// does not carry an explicit line.
func NewCalculator(source Source, throttle Throttle, interval time.Duration, policy retry.Policy, dsfPct float64, logger *slog.Logger) *Calculator {
	return &Calculator{
		source:   source,
		throttle: throttle,
		interval: interval,
		policy:   policy,
		dsfPct:   dsfPct,
		logger:   logger.With(slog.String("component", "fees")),
	}
}

// Estimate fetches and classifies the fee estimate for selling one unit of
// asin at price in the given marketplace.
func (c *Calculator) Estimate(ctx context.Context, asin string, price float64, currency string, mkt domain.Marketplace) (domain.FeeBreakdown, error) {
	var est spapi.FeesEstimate
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		if err := c.throttle.Wait(ctx, "fees", c.interval); err != nil {
			return err
		}
		var fetchErr error
		est, fetchErr = c.source.GetFeesEstimate(ctx, asin, price, currency, mkt.MarketplaceID)
		return fetchErr
	})
	if err != nil {
		return domain.FeeBreakdown{}, fmt.Errorf("fees: estimate %s in %s: %w", asin, mkt.Code, err)
	}

	return c.classify(asin, mkt.Code, est), nil
}

// classify buckets fee lines by the fixed taxonomy: referral fee;
// fulfillment fee (sum of all fulfillment-related lines); other/closing fees
// (everything unclassified). An explicit digital services line is used when
// reported, otherwise derived as a percentage of total reported fees.
func (c *Calculator) classify(asin, marketplace string, est spapi.FeesEstimate) domain.FeeBreakdown {
	fb := domain.FeeBreakdown{
		ASIN:        asin,
		Marketplace: marketplace,
	}

	var explicitDSF bool
	for _, line := range est.Lines {
		switch {
		case isReferral(line.Type):
			fb.ReferralFee += line.Amount
		case isFulfillment(line.Type):
			fb.FulfillmentFee += line.Amount
		case isDigitalServices(line.Type):
			fb.DigitalServicesFee += line.Amount
			explicitDSF = true
		default:
			fb.OtherFees += line.Amount
		}
	}

	if !explicitDSF {
		reported := fb.ReferralFee + fb.FulfillmentFee + fb.OtherFees
		fb.DigitalServicesFee = reported * c.dsfPct
	}

	fb.Total = fb.ReferralFee + fb.FulfillmentFee + fb.OtherFees + fb.DigitalServicesFee
	return fb
}

func isReferral(feeType string) bool {
	return strings.EqualFold(feeType, "ReferralFee")
}

func isFulfillment(feeType string) bool {
	t := strings.ToLower(feeType)
	return strings.Contains(t, "fba") || strings.Contains(t, "fulfillment")
}

func isDigitalServices(feeType string) bool {
	return strings.EqualFold(feeType, "DigitalServicesFee")
}

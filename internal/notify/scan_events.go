package notify

import (
	"fmt"
	"strings"

	"github.com/sellerscope/arbscan/internal/domain"
)

// Event types used to filter scan notifications.
const (
	EventOpportunityFound = "opportunity_found"
	EventScanCompleted    = "scan_completed"
	EventScanFailed       = "scan_failed"
)

// FormatOpportunity renders a profitable opportunity as a notification.
func FormatOpportunity(opp domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Arbitrage: %s", opp.ASIN)

	var b strings.Builder
	if opp.Item.Title != "" && opp.Item.Title != opp.ASIN {
		fmt.Fprintf(&b, "%s\n", opp.Item.Title)
	}
	fmt.Fprintf(&b, "Buy %s @ %.2f %s, sell @ %.2f\n",
		opp.Best.Marketplace, opp.Best.SourcePrice, opp.Best.SourceCurrency, opp.HomePrice)
	fmt.Fprintf(&b, "Profit %.2f (ROI %.1f%%, margin %.1f%%)",
		opp.Best.Profit, opp.Best.ROI, opp.Best.ProfitMargin)
	if opp.Item.SalesRank > 0 {
		fmt.Fprintf(&b, "\nSales rank %d", opp.Item.SalesRank)
	}
	return title, b.String()
}

// FormatScanResult renders a finished run as a notification.
func FormatScanResult(run domain.ScanRun) (title, message string) {
	title = fmt.Sprintf("Scan %s: %s", shortID(run.ID), run.Status)
	message = fmt.Sprintf("%d processed, %d opportunities, %d excluded, %d errors",
		run.ProcessedCount, run.OpportunitiesFound, run.ExcludedCount, run.ErrorCount)
	if run.ErrorMessage != "" {
		message += "\n" + run.ErrorMessage
	}
	return title, message
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

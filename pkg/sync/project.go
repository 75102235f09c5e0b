package sync

import (
	"strconv"
	"strings"

	"github.com/trolleyhq/trolley/pkg/models"
)

// Filter selects which items a projection makes visible.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterBought   Filter = "bought"
	FilterUnbought Filter = "unbought"
)

// Counts are item tallies over the unfiltered canonical set; they do not
// change with the active filter.
type Counts struct {
	All      int `json:"all"`
	Bought   int `json:"bought"`
	Unbought int `json:"unbought"`
}

// Projection is a derived read view over the canonical item set.
type Projection struct {
	VisibleItems []models.Item
	Counts       Counts
}

// Project derives the filtered, canonically ordered view of items. It is
// pure: the input is not modified and no state is kept.
func Project(items []models.Item, filter Filter) Projection {
	sorted := models.SortItems(items)

	var proj Projection
	proj.VisibleItems = make([]models.Item, 0, len(sorted))
	for _, item := range sorted {
		proj.Counts.All++
		if item.Bought {
			proj.Counts.Bought++
		} else {
			proj.Counts.Unbought++
		}

		switch filter {
		case FilterBought:
			if !item.Bought {
				continue
			}
		case FilterUnbought:
			if item.Bought {
				continue
			}
		}
		proj.VisibleItems = append(proj.VisibleItems, item)
	}
	return proj
}

// BillingLine is one priced item's contribution to the bill estimate.
type BillingLine struct {
	ItemID   models.ItemID
	Name     string
	Qty      string
	Unit     string
	Price    float64
	Subtotal float64
	Bought   bool
}

// Billing is the derived bill estimate over a list's priced items. Items
// without a unit price contribute zero and are not counted as priced.
type Billing struct {
	Total         float64
	BoughtTotal   float64
	UnboughtTotal float64
	PricedCount   int
	Lines         []BillingLine
}

// ItemSubtotal computes one item's contribution: unit price times parsed
// quantity. The quantity defaults to 1 when absent or unparsable as a
// number. Unpriced items contribute zero.
func ItemSubtotal(item models.Item) float64 {
	if item.Price == nil {
		return 0
	}
	return *item.Price * parseQty(item.Qty)
}

func parseQty(qty *string) float64 {
	if qty == nil {
		return 1
	}
	s := strings.TrimSpace(*qty)
	if s == "" {
		return 1
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1
	}
	return n
}

// ComputeBilling derives the bill estimate: subtotals per priced item and
// totals partitioned by the bought flag. Lines follow canonical item order.
func ComputeBilling(items []models.Item) Billing {
	var billing Billing
	for _, item := range models.SortItems(items) {
		if item.Price == nil {
			continue
		}
		sub := ItemSubtotal(item)
		line := BillingLine{
			ItemID:   item.ID,
			Name:     item.Name,
			Price:    *item.Price,
			Subtotal: sub,
			Bought:   item.Bought,
		}
		if item.Qty != nil {
			line.Qty = *item.Qty
		}
		if item.Unit != nil {
			line.Unit = *item.Unit
		}

		billing.PricedCount++
		billing.Total += sub
		if item.Bought {
			billing.BoughtTotal += sub
		} else {
			billing.UnboughtTotal += sub
		}
		billing.Lines = append(billing.Lines, line)
	}
	return billing
}

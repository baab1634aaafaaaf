package ledger

import (
	"context"
	"errors"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/repository"
)

// MergeLines folds lines of the same product into one, keeping the order in
// which products first appear. Products whose summed quantity is not
// positive are dropped. Prices are not carried over.
func MergeLines(lines []models.Line) []models.Line {
	index := make(map[string]int, len(lines))
	merged := make([]models.Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, models.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	out := merged[:0]
	for _, l := range merged {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// Price merges lines and prices them against the restaurant's available
// products. Every priced product is claimed in tx.
func Price(ctx context.Context, tx repository.Repository, restaurantID string, lines []models.Line) (models.Lines, error) {
	merged := MergeLines(lines)
	out := models.Lines{Products: merged}
	for i := range merged {
		p, err := tx.ClaimProduct(ctx, restaurantID, merged[i].ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return models.Lines{}, apperr.Validationf("product %s is unavailable", merged[i].ProductID)
		}
		if err != nil {
			return models.Lines{}, err
		}
		merged[i].Price = p.Price * float64(merged[i].Quantity)
		out.TotalPrice += merged[i].Price
		out.TotalItems += merged[i].Quantity
	}
	return out, nil
}

// setLine returns lines with productID set to quantity. A quantity of zero
// or less removes the line.
func setLine(lines []models.Line, productID string, quantity int) []models.Line {
	out := make([]models.Line, 0, len(lines)+1)
	found := false
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
			continue
		}
		if !found && quantity > 0 {
			out = append(out, models.Line{ProductID: productID, Quantity: quantity})
		}
		found = true
	}
	if !found && quantity > 0 {
		out = append(out, models.Line{ProductID: productID, Quantity: quantity})
	}
	return out
}

func addLine(lines []models.Line, productID string, quantity int) []models.Line {
	out := append([]models.Line(nil), lines...)
	return append(out, models.Line{ProductID: productID, Quantity: quantity})
}

func validateLine(productID string, quantity int) error {
	if productID == "" {
		return apperr.Validationf("product is required")
	}
	if quantity < 1 {
		return apperr.Validationf("quantity must be at least 1")
	}
	return nil
}

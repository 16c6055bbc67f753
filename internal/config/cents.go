package config

import (
	"github.com/shopspring/decimal"

	"ReloadPilot/internal/model"
)

func hasWholeCent(r model.AmountRange) bool {
	lo := decimal.NewFromFloat(r.Min).Shift(2).Ceil()
	hi := decimal.NewFromFloat(r.Max).Shift(2).Floor()
	return lo.LessThanOrEqual(hi)
}

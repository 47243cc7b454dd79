package engine

import "github.com/boulevardgame/backend/internal/game/board"

// rentRatePercent is the base rent as a share of the purchase price.
// A house raises rent to the full price.
const rentRatePercent = 70

// saleRatePercent is the liquidation share of the purchase price.
const saleRatePercent = 75

// RentFor returns the rent owed on a landing at pos.
func RentFor(pos int, hasHouse bool) int {
	price := board.CellAt(pos).Price
	if hasHouse {
		return price
	}
	return price * rentRatePercent / 100
}

// SalePrice returns the proceeds of selling the property at pos.
func SalePrice(pos int) int {
	return board.CellAt(pos).Price * saleRatePercent / 100
}

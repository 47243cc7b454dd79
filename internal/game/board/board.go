// Package board holds the static 40-cell ring. Cell data never changes
// during play; ownership and houses live with the game state.
package board

// CellKind classifies a board position.
type CellKind string

const (
	KindStart          CellKind = "START"
	KindStreet         CellKind = "STREET"
	KindStation        CellKind = "STATION"
	KindUtility        CellKind = "UTILITY"
	KindTax            CellKind = "TAX"
	KindCommunityChest CellKind = "COMMUNITY_CHEST"
	KindChance         CellKind = "CHANCE"
	KindJailVisit      CellKind = "JAIL_VISIT"
	KindFreeParking    CellKind = "FREE_PARKING"
	KindGoToJail       CellKind = "GO_TO_JAIL"
)

// Size is the number of cells on the ring.
const Size = 40

// Well-known positions.
const (
	PositionStart       = 0
	PositionJail        = 10
	PositionFreeParking = 20
	PositionGoToJail    = 30
	PositionLastCell    = 39
)

// Cell is one position on the ring. Price is zero on non-purchasable
// cells; Tax is zero everywhere except tax cells.
type Cell struct {
	Position int      `json:"position"`
	Name     string   `json:"name"`
	Kind     CellKind `json:"kind"`
	Price    int      `json:"price,omitempty"`
	Tax      int      `json:"tax,omitempty"`
	Group    string   `json:"group,omitempty"`
}

// Stations in ring order.
var Stations = []int{5, 15, 25, 35}

var cells = [Size]Cell{
	{0, "Départ", KindStart, 0, 0, ""},
	{1, "Boulevard de Belleville", KindStreet, 60, 0, "brown"},
	{2, "Caisse de Communauté", KindCommunityChest, 0, 0, ""},
	{3, "Rue Lecourbe", KindStreet, 60, 0, "brown"},
	{4, "Impôts sur le Revenu", KindTax, 0, 200, ""},
	{5, "Gare Montparnasse", KindStation, 200, 0, "station"},
	{6, "Rue de Vaugirard", KindStreet, 100, 0, "lightblue"},
	{7, "Chance", KindChance, 0, 0, ""},
	{8, "Rue de Courcelles", KindStreet, 100, 0, "lightblue"},
	{9, "Avenue de la République", KindStreet, 120, 0, "lightblue"},
	{10, "Prison — Simple Visite", KindJailVisit, 0, 0, ""},
	{11, "Boulevard de la Villette", KindStreet, 140, 0, "pink"},
	{12, "Compagnie d'Électricité", KindUtility, 150, 0, "utility"},
	{13, "Avenue de Neuilly", KindStreet, 140, 0, "pink"},
	{14, "Rue de Paradis", KindStreet, 160, 0, "pink"},
	{15, "Gare de Lyon", KindStation, 200, 0, "station"},
	{16, "Avenue Mozart", KindStreet, 180, 0, "orange"},
	{17, "Caisse de Communauté", KindCommunityChest, 0, 0, ""},
	{18, "Boulevard Saint-Michel", KindStreet, 180, 0, "orange"},
	{19, "Place Pigalle", KindStreet, 200, 0, "orange"},
	{20, "Parc Gratuit", KindFreeParking, 0, 0, ""},
	{21, "Avenue Matignon", KindStreet, 220, 0, "red"},
	{22, "Chance", KindChance, 0, 0, ""},
	{23, "Boulevard Malesherbes", KindStreet, 220, 0, "red"},
	{24, "Avenue Henri-Martin", KindStreet, 240, 0, "red"},
	{25, "Gare du Nord", KindStation, 200, 0, "station"},
	{26, "Faubourg Saint-Honoré", KindStreet, 260, 0, "yellow"},
	{27, "Place de la Bourse", KindStreet, 260, 0, "yellow"},
	{28, "Compagnie des Eaux", KindUtility, 150, 0, "utility"},
	{29, "Rue La Fayette", KindStreet, 280, 0, "yellow"},
	{30, "Allez en Prison", KindGoToJail, 0, 0, ""},
	{31, "Avenue de Breteuil", KindStreet, 300, 0, "green"},
	{32, "Avenue Foch", KindStreet, 300, 0, "green"},
	{33, "Caisse de Communauté", KindCommunityChest, 0, 0, ""},
	{34, "Boulevard des Capucines", KindStreet, 320, 0, "green"},
	{35, "Gare Saint-Lazare", KindStation, 200, 0, "station"},
	{36, "Chance", KindChance, 0, 0, ""},
	{37, "Avenue des Champs-Élysées", KindStreet, 350, 0, "blue"},
	{38, "Taxe de Luxe", KindTax, 0, 100, ""},
	{39, "Rue de la Paix", KindStreet, 400, 0, "blue"},
}

// CellAt returns the cell at pos. Positions wrap, so callers may pass
// an unreduced index.
func CellAt(pos int) Cell {
	return cells[((pos%Size)+Size)%Size]
}

// All returns the full ring in position order.
func All() []Cell {
	out := make([]Cell, Size)
	copy(out[:], cells[:])
	return out
}

// Purchasable reports whether the cell at pos can be owned.
func Purchasable(pos int) bool {
	switch CellAt(pos).Kind {
	case KindStreet, KindStation, KindUtility:
		return true
	}
	return false
}

// IsStation reports whether pos is one of the four stations.
func IsStation(pos int) bool {
	return CellAt(pos).Kind == KindStation
}

// TaxAmount returns the tax charged at pos, 0 for non-tax cells.
func TaxAmount(pos int) int {
	return CellAt(pos).Tax
}

// NextStation returns the first station strictly ahead of from, and
// whether reaching it wraps past Start.
func NextStation(from int) (pos int, wraps bool) {
	for _, s := range Stations {
		if s > from {
			return s, false
		}
	}
	return Stations[0], true
}

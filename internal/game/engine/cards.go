package engine

import "math/rand"

// CardEffect is the non-monetary effect of a card, if any.
type CardEffect string

const (
	EffectNone         CardEffect = ""
	EffectJailFreeCard CardEffect = "JAIL_FREE_CARD"
	EffectGoToJail     CardEffect = "GO_TO_JAIL"
	EffectGoToStart    CardEffect = "GO_TO_START"
	EffectStepBack3    CardEffect = "STEP_BACK_3"
	EffectAdvanceTo39  CardEffect = "ADVANCE_TO_39"
	EffectNextStation  CardEffect = "NEXT_STATION"
)

// Card is one deck entry. Amount applies first and unconditionally
// (positive credits, negative debits), then Effect runs.
type Card struct {
	Text   string     `json:"text"`
	Amount int        `json:"amount,omitempty"`
	Effect CardEffect `json:"effect,omitempty"`
}

// Deck is a stateless card pool: draws are uniform with replacement,
// nothing is ever exhausted or reshuffled.
type Deck []Card

// Draw picks a card uniformly at random.
func (d Deck) Draw(rng *rand.Rand) Card {
	return d[rng.Intn(len(d))]
}

// CommunityDeck is drawn on Caisse de Communauté cells (2, 17, 33).
var CommunityDeck = Deck{
	{Text: "Erreur de la banque en votre faveur. Recevez 200.", Amount: 200},
	{Text: "Payez la note du médecin : 50.", Amount: -50},
	{Text: "Vente de vos actions : recevez 50.", Amount: 50},
	{Text: "Les contributions vous remboursent 20.", Amount: 20},
	{Text: "Recevez votre intérêt annuel : 100.", Amount: 100},
	{Text: "Payez votre police d'assurance : 100.", Amount: -100},
	{Text: "Vous héritez de 100.", Amount: 100},
	{Text: "Payez l'hôpital : 100.", Amount: -100},
	{Text: "Quête de bienfaisance : versez 30.", Amount: -30},
	{Text: "Vous êtes libéré de prison. Conservez cette carte.", Effect: EffectJailFreeCard},
	{Text: "Allez en prison. Ne passez pas par la case Départ.", Effect: EffectGoToJail},
	{Text: "Retournez à la case Départ. Recevez 200.", Effect: EffectGoToStart},
	{Text: "Reculez de trois cases.", Effect: EffectStepBack3},
	{Text: "Rendez-vous à la prochaine gare.", Effect: EffectNextStation},
}

// ChanceDeck is drawn on Chance cells (7, 22, 36).
var ChanceDeck = Deck{
	{Text: "La banque vous verse un dividende de 50.", Amount: 50},
	{Text: "Amende pour excès de vitesse : payez 15.", Amount: -15},
	{Text: "Payez vos frais de scolarité : 150.", Amount: -150},
	{Text: "Votre immeuble rapporte : recevez 150.", Amount: 150},
	{Text: "Amende pour ivresse : payez 20.", Amount: -20},
	{Text: "Faites des réparations : payez 40.", Amount: -40},
	{Text: "Vous gagnez le prix de mots croisés : recevez 100.", Amount: 100},
	{Text: "Vous êtes libéré de prison. Conservez cette carte.", Effect: EffectJailFreeCard},
	{Text: "Allez en prison. Ne passez pas par la case Départ.", Effect: EffectGoToJail},
	{Text: "Avancez jusqu'à la case Départ. Recevez 200.", Effect: EffectGoToStart},
	{Text: "Avancez jusqu'à la Rue de la Paix.", Effect: EffectAdvanceTo39},
	{Text: "Reculez de trois cases.", Effect: EffectStepBack3},
	{Text: "Avancez jusqu'à la prochaine gare. Si vous passez par la case Départ, recevez 200.", Effect: EffectNextStation},
}

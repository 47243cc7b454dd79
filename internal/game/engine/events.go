package engine

// EventType names a gameplay event emitted by the engine.
type EventType string

const (
	EventDiceRolled       EventType = "dice_rolled"
	EventPlayerMoved      EventType = "player_moved"
	EventPassedStart      EventType = "passed_start"
	EventLandedStart      EventType = "landed_start"
	EventFreeParkingBonus EventType = "free_parking_bonus"
	EventTaxPaid          EventType = "tax_paid"
	EventRentPaid         EventType = "rent_paid"
	EventCardDrawn        EventType = "card_drawn"
	EventWentToJail       EventType = "went_to_jail"
	EventJailFreed        EventType = "jail_freed"
	EventJailWaited       EventType = "jail_waited"
	EventBuyOffer         EventType = "buy_offer"
	EventPropertyBought   EventType = "property_bought"
	EventPropertyPassed   EventType = "property_passed"
	EventHouseBuilt       EventType = "house_built"
	EventPropertySold     EventType = "property_sold"
	EventMoneyAlert       EventType = "money_alert"
	EventTurnChanged      EventType = "turn_changed"
)

// Event is a presentation-facing notification. The engine never talks
// to a UI directly; it publishes events and whoever embeds it decides
// what to render, broadcast or ignore.
type Event struct {
	Type     EventType              `json:"type"`
	PlayerID string                 `json:"playerId,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// EventSink receives engine events. Publish is called synchronously
// from within engine operations, so implementations must not call back
// into the engine.
type EventSink interface {
	Publish(ev Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

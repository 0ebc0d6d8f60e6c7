package events

// Topics emitted by the checkout and settlement flows.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderSettled       = "order.settled"
	TopicSettlementConflict = "voucher.settlement.conflict"
)

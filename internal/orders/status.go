package orders

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusDelivering Status = "DELIVERING"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentFailed PaymentStatus = "FAILED"
)

// validNext is the whole transition table. Self-transitions are absent
// on purpose: moving to the current status is invalid, not a no-op.
// DELIVERED and CANCELLED are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusDelivering: true, StatusCancelled: true},
	StatusDelivering: {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func Terminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

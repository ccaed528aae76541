package orders

type Status string

const (
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusInDelivery Status = "IN_DELIVERY"
	StatusDelivered  Status = "DELIVERED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDisputed   Status = "DISPUTED"
)

var validNext = map[Status]map[Status]bool{
	StatusPaid:       {StatusProcessing: true, StatusShipped: true, StatusCancelled: true, StatusDisputed: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true, StatusDisputed: true},
	StatusShipped:    {StatusInDelivery: true, StatusDisputed: true},
	StatusInDelivery: {StatusDelivered: true, StatusDisputed: true},
	StatusDelivered:  {StatusCompleted: true, StatusDisputed: true},
	StatusDisputed:   {StatusCancelled: true, StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal statuses admit no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Disputable statuses are every pre-terminal status not already disputed.
func (s Status) Disputable() bool {
	return validNext[s][StatusDisputed]
}

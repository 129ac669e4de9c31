package engine

import "container/list"

// priceLevel holds FIFO orders for one tick on one side.
type priceLevel struct {
	tick   Tick
	orders *list.List // of *Order, oldest first
}

func newPriceLevel(t Tick) *priceLevel {
	return &priceLevel{tick: t, orders: list.New()}
}

func (l *priceLevel) enqueue(o *Order) { l.orders.PushBack(o) }

// pushHead puts a partially filled resting order back in front,
// keeping its place ahead of later arrivals.
func (l *priceLevel) pushHead(o *Order) { l.orders.PushFront(o) }

func (l *priceLevel) peekHead() *Order {
	front := l.orders.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Order)
}

func (l *priceLevel) popHead() *Order {
	front := l.orders.Front()
	if front == nil {
		return nil
	}
	return l.orders.Remove(front).(*Order)
}

func (l *priceLevel) removeByID(id uint64) (*Order, bool) {
	for e := l.orders.Front(); e != nil; e = e.Next() {
		if o := e.Value.(*Order); o.ID == id {
			l.orders.Remove(e)
			return o, true
		}
	}
	return nil, false
}

func (l *priceLevel) aggregateQuantity() uint64 {
	var total uint64
	for e := l.orders.Front(); e != nil; e = e.Next() {
		total += e.Value.(*Order).Remaining
	}
	return total
}

func (l *priceLevel) len() int    { return l.orders.Len() }
func (l *priceLevel) empty() bool { return l.orders.Len() == 0 }

package service

import "github.com/fjod/storefront-checkout/domain"

// SelectDeliveryType records the delivery channel and moves on to the offer step.
func (o *Orchestrator) SelectDeliveryType(orderType domain.OrderType) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked("select_delivery_type", domain.StateSelectingDeliveryType); err != nil {
		return o.resultLocked(), err
	}
	if !orderType.Valid() {
		return o.resultLocked(), domain.NewValidationError("invalid_order_type", "order type must be online or store")
	}

	o.session.OrderType = orderType
	o.transitionLocked(domain.StateSelectingOffer)
	o.log("select_delivery_type", "ok", nil)
	return o.resultLocked(), nil
}

package orders

import (
	"fmt"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// Rule names
const (
	RuleNewOrderConsumer = "new-order-consumer"
	RuleWaitNotifier     = "new-order-wait-notifier"
)

// DefaultWaitMilliseconds is the constant wait passed to the notifier
const DefaultWaitMilliseconds = 2000

// NewOrderConsumerRule sends the customer id of producer NewOrder events to
// the new-order consumer
func NewOrderConsumerRule() messaging.Rule {
	return messaging.Rule{
		Name:        RuleNewOrderConsumer,
		Sources:     []string{contracts.SourceProducer},
		DetailTypes: []string{contracts.DetailTypeNewOrder},
		InputPath:   "$.detail.customerId",
	}
}

// WaitNotifierRule starts a fixed wait for every producer NewOrder event
func WaitNotifierRule() messaging.Rule {
	return messaging.Rule{
		Name:        RuleWaitNotifier,
		Sources:     []string{contracts.SourceProducer},
		DetailTypes: []string{contracts.DetailTypeNewOrder},
		Input:       map[string]interface{}{"waitMilliseconds": DefaultWaitMilliseconds},
	}
}

// DefaultRules returns the rules RegisterDefaultRules installs
func DefaultRules() []messaging.Rule {
	return []messaging.Rule{NewOrderConsumerRule(), WaitNotifierRule()}
}

// RegisterDefaultRules binds the consumers to their rules. A nil consumer or
// notifier leaves its rule out.
func RegisterDefaultRules(d *messaging.Dispatcher, consumer *NewOrderConsumer, notifier *WaitNotifier) error {
	if consumer != nil {
		if err := d.Register(NewOrderConsumerRule(), consumer.Handler()); err != nil {
			return fmt.Errorf("failed to register new order consumer: %w", err)
		}
	}
	if notifier != nil {
		if err := d.Register(WaitNotifierRule(), notifier.Handler()); err != nil {
			return fmt.Errorf("failed to register wait notifier: %w", err)
		}
	}
	return nil
}

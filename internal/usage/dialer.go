package usage

import (
	"fmt"

	kafka "github.com/segmentio/kafka-go"
)

// kafkaDialer is the production dialer, backed by segmentio/kafka-go.
type kafkaDialer struct{}

func (kafkaDialer) dial(brokers []string, topic string) (writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no brokers configured")
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return w, nil
}

// checkLive performs a metadata round-trip against the broker,
// standing in for the original AMQP passive-exchange-declare liveness
// probe: it's a real network call the broker must answer, not a local
// state check.
func (kafkaDialer) checkLive(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker for liveness check: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(topic); err != nil {
		return fmt.Errorf("read partitions for liveness check: %w", err)
	}
	return nil
}

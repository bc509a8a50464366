package health

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaChecker 依次尝试连接 brokers，任一可达且 topic 存在分区即视为健康。
// topic 为空时只检查连通性，dialer 为 nil 时使用默认值。
func KafkaChecker(brokers []string, topic string, dialer *kafkago.Dialer) Checker {
	if dialer == nil {
		dialer = &kafkago.Dialer{}
	}
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("no kafka brokers configured")
		}

		var errs []error
		for _, addr := range brokers {
			err := probeBroker(ctx, dialer, addr, topic)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		return errors.Join(errs...)
	}
}

func probeBroker(ctx context.Context, dialer *kafkago.Dialer, addr, topic string) error {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if topic == "" {
		_, err = conn.Brokers()
		return err
	}
	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("read partitions of %s from %s: %w", topic, addr, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}
	return nil
}

package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// SNSPublishAPI is the part of the SNS client the notifier uses
type SNSPublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// WaitNotifier announces a wait on an SNS topic and then waits
type WaitNotifier struct {
	client   SNSPublishAPI
	topicArn string
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NotifierOption configures the WaitNotifier
type NotifierOption func(*WaitNotifier)

// WithNotifierLogger sets the logger
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *WaitNotifier) {
		n.logger = logger
	}
}

// NewWaitNotifier creates a notifier publishing to topicArn
func NewWaitNotifier(client SNSPublishAPI, topicArn string, options ...NotifierOption) *WaitNotifier {
	n := &WaitNotifier{
		client:   client,
		topicArn: topicArn,
		logger:   slog.Default(),
		sleep:    sleepContext,
	}

	for _, opt := range options {
		opt(n)
	}

	return n
}

// WaitMessage renders the notification for a wait of the given seconds
func WaitMessage(waitSeconds float64) string {
	return fmt.Sprintf("Now waiting %s seconds...", strconv.FormatFloat(waitSeconds, 'f', -1, 64))
}

// Notify converts the wait to seconds, publishes the message and waits.
// The wait ends early when ctx is done.
func (n *WaitNotifier) Notify(ctx context.Context, req WaitRequest) (WaitResult, error) {
	if req.WaitMilliseconds < 0 {
		return WaitResult{}, &contracts.ValidationError{Field: "waitMilliseconds", Reason: "must not be negative"}
	}

	result := WaitResult{
		WaitMilliseconds: req.WaitMilliseconds,
		WaitSeconds:      float64(req.WaitMilliseconds) / 1000,
	}
	result.Message = WaitMessage(result.WaitSeconds)

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Message:  aws.String(result.Message),
	})
	if err != nil {
		return result, fmt.Errorf("failed to publish wait notification to %s: %w", n.topicArn, err)
	}
	if out != nil {
		result.MessageID = aws.ToString(out.MessageId)
	}

	n.logger.Info("wait notification published",
		"topicArn", n.topicArn,
		"messageId", result.MessageID,
		"waitSeconds", result.WaitSeconds,
	)

	if err := n.sleep(ctx, time.Duration(req.WaitMilliseconds)*time.Millisecond); err != nil {
		return result, err
	}
	return result, nil
}

// Handler adapts the notifier to a dispatch rule with constant input
func (n *WaitNotifier) Handler() messaging.Handler {
	return messaging.TypedHandler(func(ctx context.Context, req WaitRequest) error {
		_, err := n.Notify(ctx, req)
		return err
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

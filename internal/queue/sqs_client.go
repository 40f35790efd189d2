package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue implements Publisher and Consumer over one SQS queue.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string

	waitSeconds       int32
	visibilitySeconds int32
}

// NewSQS builds the queue client. Visibility defaults to 15 minutes:
// a full analysis run must finish inside the visibility window or the
// message is redelivered to another worker.
func NewSQS(ctx context.Context, region, queueURL string) (*SQSQueue, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSQueue{
		client:            sqs.NewFromConfig(cfg),
		queueURL:          queueURL,
		waitSeconds:       20,
		visibilitySeconds: 900,
	}, nil
}

func (q *SQSQueue) Publish(ctx context.Context, msg Message) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, max int) ([]Received, error) {
	if max <= 0 || max > 10 {
		max = 10
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     q.waitSeconds,
		VisibilityTimeout:   q.visibilitySeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	received := make([]Received, 0, len(out.Messages))
	for _, raw := range out.Messages {
		body := aws.ToString(raw.Body)
		msg, decodeErr := Decode(body)
		received = append(received, Received{
			Message:   msg,
			Handle:    aws.ToString(raw.ReceiptHandle),
			Raw:       body,
			DecodeErr: decodeErr,
		})
	}
	return received, nil
}

func (q *SQSQueue) Delete(ctx context.Context, handle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

var (
	_ Publisher = (*SQSQueue)(nil)
	_ Consumer  = (*SQSQueue)(nil)
)

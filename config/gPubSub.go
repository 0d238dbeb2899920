package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

// CashFlowMessage is the published body of one cash-flow change. BalanceDeltaIdr
// is the signed effect on the business's cash position (income positive), so a
// consumer can keep a running balance without reading the ledger.
type CashFlowMessage struct {
	EventId         int             `json:"event_id"`
	BusinessId      string          `json:"business_id"`
	CashFlowId      int             `json:"cash_flow_id"`
	Action          string          `json:"action"`
	Type            string          `json:"type"`
	Category        string          `json:"category"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceKey    string          `json:"reference_key"`
	Currency        string          `json:"currency"`
	Amount          decimal.Decimal `json:"amount"`
	AmountIdr       decimal.Decimal `json:"amount_idr"`
	BalanceDeltaIdr decimal.Decimal `json:"balance_delta_idr"`
	TransactionDate time.Time       `json:"transaction_date"`
	CorrelationId   string          `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubTopic    *pubsub.Topic
	pubsubClientMu sync.Mutex
)

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var attempt int
	for {
		attempt++

		var (
			c   *pubsub.Client
			err error
		)
		if credJSON != "" {
			c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			c, err = pubsub.NewClient(ctx, projectID)
		}
		if err == nil {
			pubsubClientMu.Lock()
			if pubsubClient == nil {
				pubsubClient = c
			} else {
				_ = c.Close()
			}
			c2 := pubsubClient
			pubsubClientMu.Unlock()

			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c2, nil
		}

		if attempt >= 5 || ctx.Err() != nil {
			return nil, err
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func getCashFlowTopic(ctx context.Context) (*pubsub.Topic, error) {
	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		return nil, errors.New("PUBSUB_TOPIC is required")
	}
	client, err := getPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubTopic == nil {
		pubsubTopic = client.Topic(topicName)
		pubsubTopic.EnableMessageOrdering = true
	}
	return pubsubTopic, nil
}

// PublishCashFlowEvent publishes one cash-flow change and returns the server-assigned
// message id. Messages sharing orderingKey are delivered in publish order. A failed
// publish pauses its key, so the key is resumed before the error is returned and the
// caller retries the same message later.
func PublishCashFlowEvent(ctx context.Context, orderingKey string, msg CashFlowMessage) (string, error) {
	t, err := getCashFlowTopic(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := t.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: orderingKey,
		Attributes: map[string]string{
			"business_id":    msg.BusinessId,
			"action":         msg.Action,
			"type":           msg.Type,
			"reference_type": msg.ReferenceType,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		t.ResumePublish(orderingKey)
		return "", err
	}
	return id, nil
}

package processor // import "github.com/creaproof/provenance-registrar/pkg/processor"

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"

	"github.com/creaproof/provenance-registrar/pkg/model"
)

// Publisher publishes registration lifecycle messages to interested
// downstream consumers (e.g. notification senders).
type Publisher interface {
	Publish(payload []byte) error
}

// PubSubMessage is the published payload for a lifecycle event
type PubSubMessage struct {
	WorkID string `json:"workId"`
	TxHash string `json:"txHash"`
	State  string `json:"state"`
}

func (p *PublicationProcessor) pubSub(work *model.Work) error {
	if p.publisher == nil {
		return nil
	}
	msg := &PubSubMessage{
		WorkID: work.ID(),
		TxHash: work.TxHash(),
		State:  work.State().String(),
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.publisher.Publish(msgBytes)
}

// NewGooglePubSub creates a Publisher backed by a Google Pub/Sub topic
func NewGooglePubSub(projectID string, topicName string) (*GooglePubSub, error) {
	client, err := pubsub.NewClient(context.Background(), projectID)
	if err != nil {
		return nil, err
	}
	return &GooglePubSub{client: client, topicName: topicName}, nil
}

// GooglePubSub publishes payloads to a fixed Google Pub/Sub topic
type GooglePubSub struct {
	client    *pubsub.Client
	topicName string
}

// Publish sends a payload to the configured topic
func (g *GooglePubSub) Publish(payload []byte) error {
	ctx := context.Background()
	result := g.client.Topic(g.topicName).Publish(ctx, &pubsub.Message{Data: payload})
	_, err := result.Get(ctx)
	return err
}

// Close releases the pubsub client
func (g *GooglePubSub) Close() error {
	return g.client.Close()
}

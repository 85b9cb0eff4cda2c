// Package push fans a notification out to every device subscribed in a school.
// Delivery itself is delegated to a Sender.
package push

import (
	"context"
	"errors"

	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrGone is returned by a Sender when the endpoint no longer exists.
// Broadcast removes such subscriptions.
var ErrGone = errors.New("push: subscription gone")

// Message is the notification payload.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Sender delivers one message to one subscription.
type Sender interface {
	Deliver(ctx context.Context, sub models.PushSubscription, msg Message) error
}

// Subscriptions is the storage Broadcast needs.
type Subscriptions interface {
	ListBySchool(ctx context.Context, schoolID primitive.ObjectID) ([]models.PushSubscription, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
}

// Failure records one endpoint that could not be reached.
type Failure struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error"`
}

// Report summarizes a broadcast.
type Report struct {
	Delivered int       `json:"delivered"`
	Removed   int       `json:"removed"`
	Failed    []Failure `json:"failed"`
}

type Broadcaster struct {
	subs    Subscriptions
	sender  Sender
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewBroadcaster(subs Subscriptions, sender Sender, m *metrics.Metrics, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{subs: subs, sender: sender, metrics: m, log: log}
}

// Broadcast delivers msg to every subscription in schoolID. A failing
// endpoint never fails the batch; only listing the subscriptions can.
func (b *Broadcaster) Broadcast(ctx context.Context, schoolID primitive.ObjectID, msg Message) (Report, error) {
	subs, err := b.subs.ListBySchool(ctx, schoolID)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Failed: []Failure{}}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			rep.Failed = append(rep.Failed, Failure{Endpoint: sub.Endpoint, Error: err.Error()})
			continue
		}
		err := b.sender.Deliver(ctx, sub, msg)
		switch {
		case err == nil:
			rep.Delivered++
		case errors.Is(err, ErrGone):
			if derr := b.subs.DeleteByID(ctx, sub.ID); derr != nil {
				b.log.Warn("remove gone subscription", zap.String("endpoint", sub.Endpoint), zap.Error(derr))
			}
			rep.Removed++
			rep.Failed = append(rep.Failed, Failure{Endpoint: sub.Endpoint, Error: err.Error()})
		default:
			rep.Failed = append(rep.Failed, Failure{Endpoint: sub.Endpoint, Error: err.Error()})
		}
	}

	b.metrics.AddPushDeliveries("delivered", rep.Delivered)
	b.metrics.AddPushDeliveries("failed", len(rep.Failed))
	if len(rep.Failed) > 0 {
		b.log.Info("push broadcast had failures",
			zap.String("school_id", schoolID.Hex()),
			zap.Int("delivered", rep.Delivered),
			zap.Int("failed", len(rep.Failed)))
	}
	return rep, nil
}

// LogSender logs each delivery instead of contacting a push service.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Deliver(_ context.Context, sub models.PushSubscription, msg Message) error {
	s.log.Info("push (not delivered)",
		zap.String("endpoint", sub.Endpoint),
		zap.String("user_id", sub.UserID.Hex()),
		zap.String("title", msg.Title))
	return nil
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DPLnainar/placement-management-system-sub002/internal/models"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/jobs"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/messaging"
)

const (
	taskKindNotification = "notification"
	taskKindEmail        = "email"
	emailRoutingKey      = "email.send"
)

// notifier is the fire-and-forget dispatch contract used by the workflow services.
type notifier interface {
	Notify(ctx context.Context, n models.Notification)
	SendEmail(ctx context.Context, email models.Email)
}

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

type taskQueue interface {
	TryEnqueue(task jobs.Task) error
}

type notificationTask struct {
	notification models.Notification
	stored       bool
}

// NotificationService stores in-app notifications and publishes notification and
// email events. Callers never wait on or see dispatch failures.
type NotificationService struct {
	store     notificationStore
	publisher messaging.Publisher
	queue     taskQueue
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService. Bind a queue with UseQueue;
// until then dispatch runs inline.
func NewNotificationService(store notificationStore, publisher messaging.Publisher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{Logger: logger}
	}
	return &NotificationService{store: store, publisher: publisher, metrics: metrics, logger: logger}
}

// UseQueue routes dispatch through queue, whose handler must be Handle.
func (s *NotificationService) UseQueue(queue taskQueue) {
	s.queue = queue
}

// Notify queues an in-app notification.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	s.dispatch(ctx, jobs.Task{Kind: taskKindNotification, Payload: &notificationTask{notification: n}}, string(n.Kind))
}

// SendEmail queues an email for the mail relay.
func (s *NotificationService) SendEmail(ctx context.Context, email models.Email) {
	if email.To == "" {
		return
	}
	s.dispatch(ctx, jobs.Task{Kind: taskKindEmail, Payload: email}, "email")
}

func (s *NotificationService) dispatch(ctx context.Context, task jobs.Task, kind string) {
	if s.queue == nil {
		if err := s.Handle(ctx, task); err != nil {
			s.metrics.NotificationDispatched(kind, "failed")
			s.logger.Warn("notification dispatch failed", zap.String("kind", kind), zap.Error(err))
		}
		return
	}
	if err := s.queue.TryEnqueue(task); err != nil {
		s.metrics.NotificationDispatched(kind, "dropped")
		s.logger.Warn("notification dropped", zap.String("kind", kind), zap.Error(err))
		return
	}
	s.metrics.NotificationDispatched(kind, "queued")
}

// Handle processes one queued dispatch task. A retried notification is not stored twice.
func (s *NotificationService) Handle(ctx context.Context, task jobs.Task) error {
	switch task.Kind {
	case taskKindNotification:
		payload, ok := task.Payload.(*notificationTask)
		if !ok {
			return fmt.Errorf("unexpected notification payload %T", task.Payload)
		}
		n := &payload.notification
		if !payload.stored && s.store != nil {
			if err := s.store.Create(ctx, n); err != nil {
				return fmt.Errorf("store notification: %w", err)
			}
			payload.stored = true
			s.metrics.NotificationDispatched(string(n.Kind), "stored")
		}
		if err := s.publisher.Publish(ctx, "notification."+string(n.Kind), n); err != nil {
			return err
		}
		s.metrics.NotificationDispatched(string(n.Kind), "published")
		return nil
	case taskKindEmail:
		email, ok := task.Payload.(models.Email)
		if !ok {
			return fmt.Errorf("unexpected email payload %T", task.Payload)
		}
		if err := s.publisher.Publish(ctx, emailRoutingKey, email); err != nil {
			return err
		}
		s.metrics.NotificationDispatched("email", "published")
		return nil
	default:
		return fmt.Errorf("unknown notification task %q", task.Kind)
	}
}

package worker

import (
	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/service"
)

// StartNotificationWorker registers notification handlers on the dispatcher.
func StartNotificationWorker(notifications *service.NotificationService, dispatcher events.Dispatcher) {
	if notifications == nil || dispatcher == nil {
		return
	}
	notifications.Register(dispatcher)
}

// Command notifier consumes domain events from RabbitMQ and emails the affected user.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

func main() {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Sugar.Sync() }()

	if cfg.AMQPURL == "" {
		utils.Sugar.Fatal("notifier: AMQP_URL is not set")
	}
	if !utils.MailConfigured() {
		utils.Sugar.Warn("notifier: SMTP is not configured, events will only be logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := &notifier{db: config.InitDatabase(), send: utils.SendMail}
	utils.Sugar.Infof("notifier: consuming %s", cfg.EventsQueue)
	if err := events.Consume(ctx, cfg.AMQPURL, cfg.EventsQueue, n.handle); err != nil && !errors.Is(err, context.Canceled) {
		utils.Sugar.Errorf("notifier stopped: %v", err)
		os.Exit(1)
	}
}

type notifier struct {
	db   *gorm.DB
	send func(to, subject, body string) error
}

func (n *notifier) handle(ctx context.Context, ev events.Event) error {
	subject, body, ok := messageFor(ev)
	if !ok {
		utils.Sugar.Debugw("notifier: ignoring event", "type", ev.Type)
		return nil
	}
	var user models.User
	if err := n.db.WithContext(ctx).Select("id", "username", "email", "first_name", "last_name").First(&user, ev.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Sugar.Warnw("notifier: recipient gone", "user_id", ev.UserID, "type", ev.Type)
			return nil
		}
		return err
	}
	if user.Email == "" {
		utils.Sugar.Infow("notifier: no email on file", "user_id", user.ID, "type", ev.Type)
		return nil
	}
	body = fmt.Sprintf("Hello %s,\n\n%s\n\nTrash to Treasure", user.FullName(), body)
	err := n.send(user.Email, subject, body)
	if errors.Is(err, utils.ErrMailNotConfigured) {
		utils.Sugar.Infow("notifier: would send", "to", user.Email, "subject", subject)
		return nil
	}
	return err
}

// messageFor renders the subject and body for an event; ok is false for events nobody is told about.
func messageFor(ev events.Event) (subject, body string, ok bool) {
	switch ev.Type {
	case events.SubmissionCreated:
		return "Pickup requested: " + ev.TrackID,
			fmt.Sprintf("We received your pickup request. Track it any time with code %s.", ev.TrackID), true
	case events.SubmissionStatusChanged:
		label := models.SubmissionStatus(ev.Status).Label()
		return fmt.Sprintf("%s: %s", ev.TrackID, label),
			fmt.Sprintf("Your submission %s is now: %s.", ev.TrackID, label), true
	case events.ClaimCreated:
		return "Claim received: " + ev.ReferenceID,
			fmt.Sprintf("Your claim %s for %d points is pending review.", ev.ReferenceID, ev.Points), true
	case events.ClaimStatusChanged:
		return fmt.Sprintf("Claim %s %s", ev.ReferenceID, ev.Status),
			fmt.Sprintf("Your claim %s is now %s.", ev.ReferenceID, ev.Status), true
	case events.PointsChanged:
		if ev.Message == "" {
			return "", "", false
		}
		return "Your points balance changed",
			fmt.Sprintf("%+d points: %s", ev.Points, ev.Message), true
	}
	return "", "", false
}

package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/events"
	"github.com/ttt-platform/trash2treasure/models"
	"github.com/ttt-platform/trash2treasure/utils"
)

func TestMessageFor(t *testing.T) {
	ev := events.New(events.SubmissionStatusChanged, 1)
	ev.TrackID, ev.Status = "TR1A2B3C4D", string(models.SubmissionOnTheWay)
	subject, body, ok := messageFor(ev)
	require.True(t, ok)
	require.Equal(t, "TR1A2B3C4D: Rider On The Way", subject)
	require.Contains(t, body, "Rider On The Way")

	ev = events.New(events.PointsChanged, 1)
	ev.Points = -200
	_, _, ok = messageFor(ev)
	require.False(t, ok)

	ev.Message = "points cleared"
	_, body, ok = messageFor(ev)
	require.True(t, ok)
	require.Equal(t, "-200 points: points cleared", body)

	_, _, ok = messageFor(events.Event{Type: "unknown"})
	require.False(t, ok)
}

func TestHandleSendsToRecipient(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "x", DBDriver: "sqlite"})
	db, err := config.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, models.All()...))
	alice := &models.User{Username: "alice", Email: "alice@example.com", FirstName: "Alice", UserType: models.RoleUser, Status: models.UserActive, PasswordHash: "x"}
	quiet := &models.User{Username: "quiet", UserType: models.RoleUser, Status: models.UserActive, PasswordHash: "x"}
	require.NoError(t, db.Create(alice).Error)
	require.NoError(t, db.Create(quiet).Error)

	var sent []string
	n := &notifier{db: db, send: func(to, subject, body string) error {
		sent = append(sent, to+"|"+subject)
		return nil
	}}

	ev := events.New(events.ClaimCreated, alice.ID)
	ev.ReferenceID, ev.Points = "CLABCDEFGHJK", 500
	require.NoError(t, n.handle(context.Background(), ev))
	require.Equal(t, []string{"alice@example.com|Claim received: CLABCDEFGHJK"}, sent)

	require.NoError(t, n.handle(context.Background(), events.New(events.ClaimCreated, quiet.ID)))
	require.NoError(t, n.handle(context.Background(), events.New(events.ClaimCreated, 9999)))
	require.Len(t, sent, 1)

	n.send = func(string, string, string) error { return utils.ErrMailNotConfigured }
	require.NoError(t, n.handle(context.Background(), ev))
}

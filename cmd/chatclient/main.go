package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"alertnet/backend/chat/models"
	"alertnet/backend/client"
	"alertnet/backend/pkg/config"
	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/wire"
)

// chatclient is a terminal client for one incident conversation. It drives
// the same session and join machinery the mobile frontend uses.
func main() {
	var (
		serverURL  = flag.String("url", "ws://localhost:8080/ws/chat", "chat websocket endpoint")
		userID     = flag.String("user", "", "your user id")
		peerID     = flag.String("peer", "", "the other participant's user id")
		incidentID = flag.String("incident", "", "incident id the conversation is about")
	)
	flag.Parse()

	if *userID == "" || *peerID == "" || *incidentID == "" {
		fmt.Fprintln(os.Stderr, "usage: chatclient -user U1 -peer U2 -incident I1 [-url ws://...]")
		os.Exit(2)
	}

	cfg := config.New()
	logConfig := logger.DefaultConfig()
	logConfig.JSON = false
	logConfig.Level = "warn"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	roomKey := models.RoomKeyFor(*incidentID, *userID, *peerID)

	sess := client.NewSession(client.Config{
		URL:               *serverURL,
		ReconnectAttempts: cfg.Client.ReconnectAttempts,
		ReconnectDelay:    cfg.Client.ReconnectDelay,
		Logger:            log,
	})
	joins := client.NewJoinManager(sess, cfg.Client.JoinRetryDelay, log)

	sess.OnEvent(func(event wire.Event) {
		if event.Type != wire.TypeReceiveMessage {
			return
		}
		var msg wire.ReceiveMessage
		if err := event.Decode(&msg); err != nil {
			return
		}
		who := msg.SenderID
		if who == *userID {
			who = "me"
		}
		fmt.Printf("\r[%s] %s: %s\n> ", msg.CreatedAt.Format("15:04:05"), who, msg.Text)
	})

	sess.OnStateChange(func(state client.State) {
		joins.HandleState(state)
		if state == client.StateConnected {
			// Membership does not survive a reconnect; join the incident
			// room again on every fresh transport.
			event, err := wire.NewEvent(wire.TypeJoinRoom, wire.JoinRoom{RoomKey: roomKey})
			if err == nil {
				sess.Emit(event)
			}
		}
		fmt.Printf("\r[%s]\n> ", state)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start session: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()
	defer joins.Close()

	joins.SetIdentity(*userID)

	fmt.Printf("chatting with %s about incident %s (room %s)\n> ", *peerID, *incidentID, roomKey)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nbye")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				fmt.Print("> ")
				continue
			}
			event, err := wire.NewEvent(wire.TypeSendMessage, wire.SendMessage{
				IncidentID: *incidentID,
				SenderID:   *userID,
				ReceiverID: *peerID,
				Text:       text,
			})
			if err == nil {
				if err := sess.Emit(event); err != nil {
					fmt.Printf("send failed: %v\n", err)
				}
			}
			fmt.Print("> ")
		}
	}
}

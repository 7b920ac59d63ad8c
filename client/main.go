package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/client"
	"github.com/mahaj/supportdesk/pkg/logging"
	"github.com/mahaj/supportdesk/pkg/model"
)

func main() {
	apiAddr := pflag.String("api", "http://localhost:8081", "api service address")
	operatorID := pflag.String("operator", "", "join as this operator (requires -conversation)")
	conversationID := pflag.Int64("conversation", 0, "conversation id to join as operator")
	name := pflag.String("name", "Guest", "guest name when opening a conversation")
	email := pflag.String("email", "guest@example.com", "guest email when opening a conversation")
	account := pflag.String("account", "", "open the conversation as this account instead of a guest")
	logLevel := pflag.String("log-level", "warn", "log level")
	pflag.Parse()

	logger, _ := logging.Setup(*logLevel, "")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 1. Get a token, either as an operator or by opening a conversation
	var token string
	var self client.Sender
	if *operatorID != "" {
		if *conversationID == 0 {
			log.Fatal("-conversation is required with -operator")
		}
		resp, err := client.Login(ctx, *apiAddr, client.LoginRequest{OperatorID: *operatorID})
		if err != nil {
			log.Fatal("Login failed: ", err)
		}
		token, self = resp.Token, client.Sender{Role: model.RoleOperator, Identity: resp.Identity}
	} else {
		requester := model.Requester{AccountID: *account}
		if *account == "" {
			requester = model.Requester{Guest: &model.GuestIdentity{Name: *name, Email: *email}}
		}
		resp, err := client.Open(ctx, *apiAddr, requester)
		if err != nil {
			log.Fatal("Open failed: ", err)
		}
		token, self = resp.Token, client.Sender{Role: model.RoleRequester, Identity: resp.Identity}
		*conversationID = resp.Conversation.ID
		log.Printf("Opened conversation %d", resp.Conversation.ID)
	}

	transport := client.NewHTTPTransport(*apiAddr, token)
	session := client.NewSession(transport, *conversationID, self, logger)

	// 2. Poll in the background and render every change
	go func() {
		if err := session.Run(ctx); err == nil {
			fmt.Printf("\rConversation is %s; polling stopped.\n> ", session.Status())
		}
	}()
	go render(ctx, session)

	// 3. Read from stdin and send messages
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
		case text == "/quit":
			return
		case text == "/typing":
			session.Typing(ctx)
		case strings.HasPrefix(text, "/status "):
			conv, err := transport.SetStatus(ctx, *conversationID, model.Status(strings.TrimPrefix(text, "/status ")))
			report(err, func() string { return "status is now " + string(conv.Status) })
		case strings.HasPrefix(text, "/assign "):
			conv, err := transport.Assign(ctx, *conversationID, strings.TrimPrefix(text, "/assign "))
			report(err, func() string { return "assigned to " + conv.AssignedOperator })
		case strings.HasPrefix(text, "/note "):
			_, err := session.Send(ctx, client.Draft{Body: strings.TrimPrefix(text, "/note "), Visibility: model.VisibilityInternal})
			report(err, nil)
		default:
			session.Typing(ctx)
			_, err := session.Send(ctx, client.Draft{Body: text})
			report(err, nil)
		}
		fmt.Print("> ")
	}
}

func report(err error, ok func() string) {
	if err != nil {
		fmt.Printf("\rerror: %v\n", err)
		return
	}
	if ok != nil {
		fmt.Printf("\r%s\n", ok())
	}
}

// render prints confirmed messages once, in id order, and the other side's
// typing state.
func render(ctx context.Context, s *client.Session) {
	printed := make(map[int64]bool)
	typing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Updates():
		}
		for _, e := range s.Feed().Entries() {
			if e.Pending() || printed[e.Message.ID] {
				continue
			}
			printed[e.Message.ID] = true
			body := e.Message.Body
			if e.Message.Attachment != nil {
				body += " [" + e.Message.Attachment.Filename + "]"
			}
			tag := ""
			if e.Message.Visibility == model.VisibilityInternal {
				tag = " (internal)"
			}
			fmt.Printf("\r#%d %s%s: %s\n> ", e.Message.ID, e.Message.SenderRole, tag, body)
		}
		if p := s.Presence(); p.Typing != typing {
			typing = p.Typing
			if typing {
				fmt.Printf("\r%s is typing...\n> ", p.Role)
			}
		}
	}
}

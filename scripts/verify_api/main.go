package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/spf13/pflag"

	"github.com/mahaj/supportdesk/pkg/client"
	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// verify_api walks a running API through the basic support conversation:
// open, operator reply, requester reply, resolve, close.
func main() {
	apiAddr := pflag.String("api", "http://localhost:8081", "api service address")
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Open as a guest
	opened, err := client.Open(ctx, *apiAddr, model.Requester{Guest: &model.GuestIdentity{Name: "Test", Email: "test@example.com"}})
	if err != nil {
		log.Fatal("Open failed: ", err)
	}
	convID := opened.Conversation.ID
	log.Printf("Opened conversation %d (%s)", convID, opened.Conversation.Status)
	requester := client.NewHTTPTransport(*apiAddr, opened.Token)

	// 2. Operator replies
	login, err := client.Login(ctx, *apiAddr, client.LoginRequest{OperatorID: "verify-operator"})
	if err != nil {
		log.Fatal("Login failed: ", err)
	}
	operator := client.NewHTTPTransport(*apiAddr, login.Token)
	hello, err := operator.Append(ctx, convID, client.Draft{Body: "Hello, how can I help?"})
	must(err)
	log.Printf("Operator message id=%d", hello.ID)

	// 3. Requester polls and answers
	res, err := requester.Poll(ctx, convID, 0)
	must(err)
	log.Printf("Requester sees %d message(s), status %s", len(res.Messages), res.Status)
	reply, err := requester.Append(ctx, convID, client.Draft{Body: "My ride was cancelled"})
	must(err)

	res, err = operator.Poll(ctx, convID, hello.ID)
	must(err)
	if len(res.Messages) != 1 || res.Messages[0].ID != reply.ID {
		log.Fatalf("Operator poll after %d returned %+v", hello.ID, res.Messages)
	}

	// 4. Resolve, then close
	_, err = operator.SetStatus(ctx, convID, model.StatusResolved)
	must(err)
	_, err = requester.Append(ctx, convID, client.Draft{Body: "Thanks!"})
	must(err)
	_, err = operator.SetStatus(ctx, convID, model.StatusClosed)
	must(err)

	_, err = requester.Append(ctx, convID, client.Draft{Body: "One more thing"})
	var appErr *appErrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != appErrors.CodeConversationClosed {
		log.Fatalf("Expected CONVERSATION_CLOSED, got %v", err)
	}
	log.Println("API verified.")
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

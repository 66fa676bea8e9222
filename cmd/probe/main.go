// Command probe connects synthetic users to a running server, makes them
// talk in one group chat and reports what each of them received.
package main

import (
	"bytes"
	"context"
	"courier/auth"
	"courier/domain"
	"courier/domain/event"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerAddr string        `envconfig:"PROBE_SERVER_ADDR" default:"localhost:8080"`
	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	Users      int           `envconfig:"PROBE_USERS" default:"5"`
	Messages   int           `envconfig:"PROBE_MESSAGES" default:"10"`
	Settle     time.Duration `envconfig:"PROBE_SETTLE" default:"2s"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"INFO"`
	Colours    bool          `envconfig:"PROBE_COLOURS" default:"true"`
}

type probeUser struct {
	id       string
	token    string
	conn     *websocket.Conn
	received atomic.Int64
	statuses atomic.Int64
	errors   atomic.Int64
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if config.Users < 2 {
		return exitConfig, fmt.Errorf("config error: PROBE_USERS must be at least 2")
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier := auth.NewVerifier(config.JWTSecret)
	runID := time.Now().UTC().Format("150405")
	users := make([]*probeUser, config.Users)
	for i := range users {
		id := fmt.Sprintf("probe-%s-%d", runID, i)
		token, err := verifier.GenerateToken(id, time.Hour)
		if err != nil {
			return exitRuntime, err
		}
		users[i] = &probeUser{id: id, token: token}
	}

	chatID, err := createGroup(ctx, config.ServerAddr, users)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not create chat: %w", err)
	}
	log.Info("Chat created", "chat_id", chatID, "users", len(users))

	var readers sync.WaitGroup
	for _, u := range users {
		conn, err := dial(ctx, config.ServerAddr, u.token)
		if err != nil {
			return exitRuntime, fmt.Errorf("%s could not connect: %w", u.id, err)
		}
		u.conn = conn
		defer func() { _ = conn.Close() }()
		readers.Add(1)
		go func() {
			defer readers.Done()
			u.read()
		}()
	}

	start := time.Now()
	for i := 0; i < config.Messages; i++ {
		for _, u := range users {
			frame := map[string]any{
				"type":    event.SendMessage,
				"payload": event.SendMessagePayload{ChatID: chatID, Content: fmt.Sprintf("%s #%d", u.id, i)},
			}
			if err := u.conn.WriteJSON(frame); err != nil {
				return exitRuntime, fmt.Errorf("%s send failed: %w", u.id, err)
			}
		}
	}
	log.Info("Messages sent", "total", config.Messages*len(users), "elapsed", time.Since(start))

	select {
	case <-ctx.Done():
	case <-time.After(config.Settle):
	}
	for _, u := range users {
		_ = u.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	readers.Wait()

	// Every user sees every message once, their own included as the echo.
	expected := int64(config.Messages * len(users))
	ok := true
	for _, u := range users {
		line := fmt.Sprintf("%-24s received=%d/%d statuses=%d errors=%d",
			u.id, u.received.Load(), expected, u.statuses.Load(), u.errors.Load())
		if u.received.Load() != expected || u.errors.Load() > 0 {
			ok = false
			if config.Colours {
				line = color.FgRed.Render(line)
			}
		} else if config.Colours {
			line = color.FgGreen.Render(line)
		}
		fmt.Println(line)
	}
	if !ok {
		return exitRuntime, fmt.Errorf("some users missed messages")
	}
	return exitOK, nil
}

func (u *probeUser) read() {
	for {
		var frame struct {
			Type event.Type `json:"type"`
		}
		if err := u.conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case event.NewMessage:
			u.received.Add(1)
		case event.MessageStatusUpdate:
			u.statuses.Add(1)
		case event.Error:
			u.errors.Add(1)
		}
	}
}

func dial(ctx context.Context, addr, token string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func createGroup(ctx context.Context, addr string, users []*probeUser) (string, error) {
	members := make([]string, 0, len(users)-1)
	for _, u := range users[1:] {
		members = append(members, u.id)
	}
	body, err := json.Marshal(map[string]any{"name": "probe", "memberIds": members})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/chats/group", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+users[0].token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	var chat domain.Chat
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", err
	}
	return chat.ID, nil
}

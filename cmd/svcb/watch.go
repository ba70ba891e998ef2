package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow service lifecycle events as they happen",
	Long: `Follow service lifecycle events. Events are read from NATS when
--nats-url (or SVCB_NATS_URL) is set, otherwise from the server's
event stream over HTTP.`,
	GroupID:           "admin",
	Args:              cobra.NoArgs,
	PersistentPreRunE: localCommand,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats-url")
		topic, _ := cmd.Flags().GetString("topic")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, topic)
		}
		return watchStream(ctx, httpURL, topic)
	},
}

// watchNATS prints every event published on topic until ctx is done.
func watchNATS(ctx context.Context, natsURL, topic string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printEvent(os.Stdout, time.Now(), msg.Topic, msg.Data)
		}
	}
}

// watchStream follows GET /v1/events/stream. It reconnects with the last
// seen event id after the connection drops.
func watchStream(ctx context.Context, baseURL, topic string) error {
	var lastID string
	for {
		err := readStream(ctx, baseURL, topic, &lastID)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("event stream: %v; reconnecting", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func readStream(ctx context.Context, baseURL, topic string, lastID *string) error {
	u := strings.TrimRight(baseURL, "/") + "/v1/events/stream?topics=" + url.QueryEscape(topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return scanStream(resp.Body, func(id, topic string, data []byte) {
		*lastID = id
		printEvent(os.Stdout, time.Now(), topic, data)
	})
}

// scanStream parses server-sent events from r and calls fn for each.
func scanStream(r io.Reader, fn func(id, topic string, data []byte)) error {
	var id, topic, data string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if topic != "" {
				fn(id, topic, []byte(data))
			}
			id, topic, data = "", "", ""
		case strings.HasPrefix(line, ":"):
			// comment or keepalive
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// printEvent writes one event as "time topic service=N order=N actor".
func printEvent(w io.Writer, at time.Time, topic string, data []byte) {
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"data\":%s}\n", topic, data)
		return
	}
	var payload struct {
		ServiceID int64  `json:"service_id"`
		OrderID   int64  `json:"order_id"`
		Method    string `json:"method"`
		Error     string `json:"error"`
		Service   *struct {
			ID int64 `json:"id"`
		} `json:"service"`
	}
	_ = json.Unmarshal(data, &payload)
	if payload.ServiceID == 0 && payload.Service != nil {
		payload.ServiceID = payload.Service.ID
	}

	line := fmt.Sprintf("%s  %s", ui.RenderMuted(at.Format(time.TimeOnly)), ui.RenderTopic(topic))
	if payload.ServiceID != 0 {
		line += fmt.Sprintf("  service=%d", payload.ServiceID)
	}
	if payload.OrderID != 0 {
		line += fmt.Sprintf("  order=%d", payload.OrderID)
	}
	if payload.Method != "" {
		line += "  method=" + payload.Method
	}
	if payload.Error != "" {
		line += "  " + ui.RenderError(payload.Error)
	}
	fmt.Fprintln(w, line)
}

func init() {
	watchCmd.Flags().String("nats-url", os.Getenv("SVCB_NATS_URL"), "NATS server URL (default: server event stream)")
	watchCmd.Flags().String("topic", events.TopicPrefix+">", "topic pattern to follow")
}

// Package main provides a terminal client that runs a flow preview and
// follows its live stream.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

// Stream message types.
const (
	TypeEvent = "event"
	TypeLog   = "log"
	TypeState = "state"
)

// StreamMessage is the envelope pushed on a preview stream.
type StreamMessage struct {
	Type      string          `json:"type"`
	PreviewID string          `json:"preview_id"`
	Ts        int64           `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

type event struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Msg  *struct {
		Text         string   `json:"text"`
		QuickReplies []string `json:"quick_replies,omitempty"`
	} `json:"msg,omitempty"`
}

type traceLog struct {
	Summary   string `json:"summary"`
	Icon      string `json:"icon"`
	AgentName string `json:"agent_name,omitempty"`
}

type state struct {
	Active       bool     `json:"active"`
	QuickReplies []string `json:"quick_replies"`
	DrawerType   string   `json:"drawer_type,omitempty"`
}

// Client talks to the preview service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	conn       *websocket.Conn
	previewID  string
	done       chan struct{}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Minute},
		done:       make(chan struct{}),
	}
}

// CreatePreview opens a preview of a flow and returns its id.
func (c *Client) CreatePreview(flowUUID, flowName, language, contentBase string) (string, error) {
	body := map[string]string{
		"flow_uuid":         flowUUID,
		"flow_name":         flowName,
		"language":          language,
		"content_base_uuid": contentBase,
	}
	var resp struct {
		PreviewID string `json:"preview_id"`
		Error     string `json:"error"`
	}
	status, err := c.post("/v1/previews", body, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return resp.PreviewID, fmt.Errorf("start failed (%d): %s", status, resp.Error)
	}
	c.previewID = resp.PreviewID
	return resp.PreviewID, nil
}

// Resume sends a reply to the preview.
func (c *Client) Resume(text string) error {
	var resp struct {
		Error string `json:"error"`
	}
	status, err := c.post("/v1/previews/"+c.previewID+"/resume", map[string]string{"text": text}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("resume failed (%d): %s", status, resp.Error)
	}
	return nil
}

func (c *Client) post(path string, body interface{}, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read: %w", err)
	}
	if len(data) > 0 {
		json.Unmarshal(data, out)
	}
	return resp.StatusCode, nil
}

// Follow connects to the preview stream.
func (c *Client) Follow() error {
	addr := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/v1/previews/" + c.previewID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Close closes the stream.
func (c *Client) Close() error {
	close(c.done)
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ReadMessages reads and prints stream messages.
func (c *Client) ReadMessages(showLogs bool) {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			line, ok := FormatMessage(data, showLogs)
			if ok {
				fmt.Printf("\r%s\n> ", line)
			}
		}
	}
}

// FormatMessage renders one stream message for the terminal. It reports
// false for messages that should not be shown.
func FormatMessage(data []byte, showLogs bool) (string, bool) {
	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", false
	}

	switch msg.Type {
	case TypeEvent:
		var ev event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return "", false
		}
		switch {
		case ev.Type == "msg_created" && ev.Msg != nil:
			line := "bot: " + ev.Msg.Text
			if len(ev.Msg.QuickReplies) > 0 {
				line += " [" + strings.Join(ev.Msg.QuickReplies, " | ") + "]"
			}
			return line, true
		case ev.Type == "msg_received" && ev.Msg != nil:
			return "you: " + ev.Msg.Text, true
		case ev.Type == "error":
			return "error: " + ev.Text, true
		case ev.Text != "":
			return "-- " + ev.Text + " --", true
		}
		return "", false

	case TypeLog:
		if !showLogs {
			return "", false
		}
		var l traceLog
		if err := json.Unmarshal(msg.Data, &l); err != nil {
			return "", false
		}
		if l.AgentName != "" {
			return fmt.Sprintf("  [%s] %s (%s)", l.Icon, l.Summary, l.AgentName), true
		}
		return fmt.Sprintf("  [%s] %s", l.Icon, l.Summary), true

	case TypeState:
		var s state
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return "", false
		}
		if !s.Active {
			return "(flow not waiting)", true
		}
		if s.DrawerType != "" && s.DrawerType != "quickReplies" {
			return "(waiting for " + s.DrawerType + ")", true
		}
		return "", false
	}
	return "", false
}

func main() {
	flagSet := pflag.NewFlagSet("agentbuilder-cli", pflag.ContinueOnError)
	addr := flagSet.String("addr", "http://localhost:8080", "preview service address")
	flowUUID := flagSet.String("flow", "", "flow UUID to preview")
	flowName := flagSet.String("flow-name", "", "flow name")
	language := flagSet.String("language", "", "contact language")
	contentBase := flagSet.String("content-base", "", "content base UUID seeding the contact phone")
	showLogs := flagSet.Bool("logs", false, "print classified agent traces")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			fmt.Fprintln(os.Stderr, flagSet.FlagUsages())
			return
		}
		log.Fatalf("Invalid flags: %v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, flagSet.FlagUsages())
		return
	}
	if *flowUUID == "" {
		log.Fatalf("--flow is required")
	}

	log.SetFlags(log.Ltime)

	client := NewClient(*addr)
	fmt.Printf("Starting preview of %s...\n", *flowUUID)
	previewID, err := client.CreatePreview(*flowUUID, *flowName, *language, *contentBase)
	if err != nil {
		log.Fatalf("Failed to start preview: %v", err)
	}

	if err := client.Follow(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Printf("Preview started: %s\n", previewID)
	fmt.Println("\nType a reply and press Enter to send.")
	fmt.Println("Commands: /quit to exit")

	// Start reading messages in background
	go client.ReadMessages(*showLogs)

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if err := client.Resume(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}

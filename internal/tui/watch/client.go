package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// --- Message types ---

// streamEvent is one publication from the /events SSE stream.
type streamEvent struct {
	ID      int64
	Type    string
	At      time.Time
	Topic   string
	Content json.RawMessage
}

type eventMsg streamEvent

type kernelMsg struct {
	KernelID        string `json:"kernel_id"`
	SessionID       string `json:"session_id"`
	UserName        string `json:"user_name"`
	ProtocolVersion string `json:"protocol_version"`
	ExecutionState  string `json:"execution_state"`
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the SSE /events endpoint and feeds events
// into the provided channel. Returns sseDisconnectedMsg when the connection
// drops.
func subscribeToEvents(apiURL string, ch chan<- streamEvent) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest("GET", apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var current struct {
			id   int64
			typ  string
			data string
		}

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if current.data != "" {
					ch <- parseStreamEvent(current.id, current.typ, current.data)
					current.id, current.typ, current.data = 0, "", ""
				}
				continue
			}

			if strings.HasPrefix(line, "id: ") {
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					current.id = id
				}
			} else if strings.HasPrefix(line, "event: ") {
				current.typ = line[7:]
			} else if strings.HasPrefix(line, "data: ") {
				current.data = line[6:]
			}
		}

		return sseDisconnectedMsg{}
	}
}

func parseStreamEvent(id int64, typ, data string) streamEvent {
	ev := streamEvent{ID: id, Type: typ, At: time.Now()}
	var payload struct {
		Topic   string          `json:"topic"`
		At      time.Time       `json:"at"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil {
		ev.Topic = payload.Topic
		ev.Content = payload.Content
		if !payload.At.IsZero() {
			ev.At = payload.At
		}
	}
	return ev
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan streamEvent) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchKernel queries the /kernel endpoint.
func fetchKernel(apiURL string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL + "/kernel")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var k kernelMsg
	if err := json.NewDecoder(resp.Body).Decode(&k); err != nil {
		return errMsg(err)
	}
	return k
}

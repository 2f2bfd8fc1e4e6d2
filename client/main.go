package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

// A minimal interactive client: log in over HTTP, open the realtime
// socket, subscribe to the private channel and drive the lifecycle
// endpoint from stdin.

type appSettings struct {
	Key          string `json:"key"`
	AuthEndpoint string `json:"auth_endpoint"`
	WSEndpoint   string `json:"ws_endpoint"`
	Token        string `json:"token"`
}

type serverEvent struct {
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

type channelGrant struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

type client struct {
	base     string
	http     *http.Client
	conn     *websocket.Conn
	settings appSettings
	socketID string
}

func (c *client) postForm(path string, form url.Values) (map[string]interface{}, error) {
	resp, err := c.http.PostForm(c.base+path, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *client) login(username, password string) error {
	body, err := c.postForm("/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return err
	}
	if success, _ := body["success"].(bool); !success {
		return fmt.Errorf("login rejected: %v", body["reason"])
	}
	return nil
}

func (c *client) fetchSettings() error {
	body, err := c.postForm("/pusher/application-settings", nil)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, &c.settings)
}

func (c *client) dial() error {
	wsURL := strings.Replace(c.base, "http", "ws", 1) + c.settings.WSEndpoint
	header := http.Header{}
	u, _ := url.Parse(c.base)
	for _, cookie := range c.http.Jar.Cookies(u) {
		header.Add("Cookie", cookie.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return err
	}
	c.conn = conn

	var ev serverEvent
	if err := conn.ReadJSON(&ev); err != nil {
		return err
	}
	if ev.Event != "connection_established" {
		return fmt.Errorf("unexpected first event %q", ev.Event)
	}
	var data struct {
		SocketID string `json:"socket_id"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return err
	}
	c.socketID = data.SocketID
	return nil
}

// subscribe authorizes the channel over HTTP and sends the subscribe
// frame carrying the grant.
func (c *client) subscribe(channel string) error {
	body, err := c.postForm(c.settings.AuthEndpoint, url.Values{
		"socket_id":    {c.socketID},
		"channel_name": {channel},
		"token":        {c.settings.Token},
	})
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var grant channelGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return err
	}
	if grant.Auth == "" {
		return fmt.Errorf("authorization refused for %s: %v", channel, body["reason"])
	}
	return c.conn.WriteJSON(map[string]string{
		"event":        "subscribe",
		"channel":      channel,
		"auth":         grant.Auth,
		"channel_data": grant.ChannelData,
	})
}

func (c *client) command(name string, params url.Values) (map[string]interface{}, error) {
	form := url.Values{"command": {name}, "token": {c.settings.Token}}
	for key, values := range params {
		form[key] = values
	}
	return c.postForm("/game-server-endpoint", form)
}

func (c *client) readLoop() {
	for {
		var ev serverEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			log.Printf("Read error: %v", err)
			return
		}
		log.Printf("<- [%s] %s: %s", ev.Channel, ev.Event, string(ev.Data))
	}
}

func main() {
	base := flag.String("server", "http://localhost:5555", "game server base URL")
	username := flag.String("user", "", "username")
	password := flag.String("pass", "", "password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -pass are required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("Cookie jar: %v", err)
	}
	c := &client{base: *base, http: &http.Client{Jar: jar}}

	if err := c.login(*username, *password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	if err := c.fetchSettings(); err != nil {
		log.Fatalf("Fetching settings failed: %v", err)
	}
	if err := c.dial(); err != nil {
		log.Fatalf("Realtime connection failed: %v", err)
	}
	defer c.conn.Close()
	go c.readLoop()

	if err := c.subscribe("private-" + c.settings.Token); err != nil {
		log.Fatalf("Private channel subscription failed: %v", err)
	}

	log.Println("Commands: search <players> <rows> <columns> | cancel <players> <rows> <columns> <channel> | start <players> <rows> <columns> <channel> <position> [event] | reset | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "search":
			if len(fields) != 4 {
				log.Println("Usage: search <players> <rows> <columns>")
				continue
			}
			body, err := c.command("search-game", url.Values{
				"players": {fields[1]},
				"rows":    {fields[2]},
				"columns": {fields[3]},
			})
			report(body, err)
			if err == nil {
				if state, ok := body["game_state"].(map[string]interface{}); ok {
					if channel, ok := state["channel"].(string); ok {
						if err := c.subscribe(channel); err != nil {
							log.Printf("Presence subscription failed: %v", err)
						}
					}
				}
			}
		case "cancel":
			if len(fields) != 5 {
				log.Println("Usage: cancel <players> <rows> <columns> <channel>")
				continue
			}
			body, err := c.command("cancel-search", url.Values{
				"totalPlayers": {fields[1]},
				"rows":         {fields[2]},
				"columns":      {fields[3]},
				"channel":      {fields[4]},
			})
			report(body, err)
		case "start":
			if len(fields) != 6 && len(fields) != 7 {
				log.Println("Usage: start <players> <rows> <columns> <channel> <position> [event]")
				continue
			}
			form := url.Values{
				"totalPlayers":   {fields[1]},
				"rows":           {fields[2]},
				"columns":        {fields[3]},
				"channel":        {fields[4]},
				"onlinePosition": {fields[5]},
			}
			if len(fields) == 7 {
				form.Set("eventName", fields[6])
			}
			body, err := c.command("start-game", form)
			report(body, err)
		case "reset":
			body, err := c.command("reset-state", nil)
			report(body, err)
		case "quit":
			return
		default:
			log.Printf("Unknown command %q", fields[0])
		}
	}
}

func report(body map[string]interface{}, err error) {
	if err != nil {
		log.Printf("Request failed: %v", err)
		return
	}
	out, _ := json.Marshal(body)
	log.Printf("-> %s", out)
}

package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tapalogi/game-room/internal/resolve"
)

// Endpoint is the base address of a running router.
type Endpoint struct {
	base *url.URL
}

// ParseEndpoint accepts host:port or a http, https, ws or wss URL.
func ParseEndpoint(addr string) (*Endpoint, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid address: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid address: missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	return &Endpoint{base: u}, nil
}

func (e *Endpoint) with(scheme, path string, query url.Values) string {
	u := *e.base
	u.Scheme = scheme
	u.Path += path
	u.RawQuery = query.Encode()
	return u.String()
}

func (e *Endpoint) wsScheme() string {
	switch e.base.Scheme {
	case "https", "wss":
		return "wss"
	default:
		return "ws"
	}
}

func (e *Endpoint) httpScheme() string {
	switch e.base.Scheme {
	case "https", "wss":
		return "https"
	default:
		return "http"
	}
}

// ServerURL is the upgrade URL that opens the room owned by clientID.
func (e *Endpoint) ServerURL(clientID uuid.UUID) string {
	return e.with(e.wsScheme(), "/server", url.Values{"client_id": {clientID.String()}})
}

// ClientURL is the upgrade URL that joins roomID as clientID.
func (e *Endpoint) ClientURL(clientID, roomID uuid.UUID) string {
	return e.with(e.wsScheme(), "/client", url.Values{
		"client_id": {clientID.String()},
		"room_id":   {roomID.String()},
	})
}

// RoomsURL is the room listing URL.
func (e *Endpoint) RoomsURL() string {
	return e.with(e.httpScheme(), "/", nil)
}

func (e *Endpoint) String() string { return e.base.String() }

var httpClient = &http.Client{
	Transport: &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: resolve.DialContext,
	},
}

// ListRooms fetches the ids of every open room.
func ListRooms(ctx context.Context, e *Endpoint) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.RoomsURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach router: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var raw []string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid room list: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid room id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

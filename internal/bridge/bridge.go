package bridge

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/config"
	"github.com/EricCohen9/melingo/internal/engine"
	"github.com/EricCohen9/melingo/internal/page"
	"github.com/EricCohen9/melingo/internal/popup"
	"github.com/EricCohen9/melingo/internal/session"
)

// pageMessage is what the storefront snippet sends over the socket.
type pageMessage struct {
	Type    string        `json:"type"`
	Scope   string        `json:"scope,omitempty"`
	URL     string        `json:"url,omitempty"`
	Visible bool          `json:"visible,omitempty"`
	Target  *page.Element `json:"target,omitempty"`
	Action  string        `json:"action,omitempty"`
}

// Server hosts the page bridge: one engine per connected page, popup
// commands flowing back over the same socket.
type Server struct {
	cfg      config.AgentConfig
	store    session.Store
	upgrader websocket.Upgrader
}

func NewServer(cfg config.AgentConfig, store session.Store) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bridge serves storefront pages from any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the agent's HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "bridge").Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The first message must be a hello carrying the visitor scope and the
	// current page URL.
	var hello pageMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		log.Warn().Err(err).Str("component", "bridge").Msg("Expected hello message")
		return
	}
	scope := hello.Scope
	if scope == "" {
		scope = uuid.NewString()
	}

	renderer := newWSRenderer(conn)
	eng := engine.New(s.cfg, s.store, scope, renderer)
	eng.Start(r.Context(), hello.URL)
	defer eng.Stop()

	log.Info().Str("component", "bridge").Str("scope", scope).Msg("Page connected")

	for {
		var msg pageMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("component", "bridge").Msg("Page connection error")
			}
			return
		}

		switch msg.Type {
		case "navigate":
			eng.HandleNavigation(r.Context(), msg.URL)
		case "click":
			if msg.Target != nil {
				eng.HandleClick(r.Context(), *msg.Target)
			}
		case "visibility":
			eng.HandleVisibility(msg.Visible)
		case "popup_action":
			eng.HandlePopupAction(msg.Action)
		default:
			log.Debug().Str("component", "bridge").Str("type", msg.Type).Msg("Ignoring unknown message")
		}
	}
}

// popupCommand is what the agent sends back to the page.
type popupCommand struct {
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Popup *popup.View `json:"popup,omitempty"`
}

// wsRenderer drives the page's popup DOM over the socket. Write failures are
// logged and dropped; a page that went away simply stops rendering.
type wsRenderer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSRenderer(conn *websocket.Conn) *wsRenderer {
	return &wsRenderer{conn: conn}
}

func (r *wsRenderer) send(cmd popupCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conn.WriteJSON(cmd); err != nil {
		log.Warn().Err(err).Str("component", "bridge").Str("command", cmd.Type).Msg("Popup command dropped")
	}
}

func (r *wsRenderer) Mount(view popup.View) {
	r.send(popupCommand{Type: "popup_mount", ID: view.ID, Popup: &view})
}

func (r *wsRenderer) SetVisible(id string) {
	r.send(popupCommand{Type: "popup_visible", ID: id})
}

func (r *wsRenderer) Dismiss(id string) {
	r.send(popupCommand{Type: "popup_dismiss", ID: id})
}

func (r *wsRenderer) Unmount(id string) {
	r.send(popupCommand{Type: "popup_unmount", ID: id})
}

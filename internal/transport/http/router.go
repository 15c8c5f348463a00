package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/security"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

type Deps struct {
	Handler *Handler
	Auth    security.Authenticator
	Hub     *hub.Hub

	// WS обработчик рукопожатия; личность проверяет сам.
	WS http.Handler

	RequestTimeout time.Duration
	CORS           CORSConfig
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httputil.HeaderRequestID, security.HeaderUserID},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           d.CORS.MaxAge,
	}))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if d.Hub != nil {
			body["hub"] = d.Hub.Stats()
		}
		httputil.OK(r.Context(), w, body)
	})

	// без Timeout: соединение живёт долго
	if d.WS != nil {
		r.Get("/ws", d.WS.ServeHTTP)
	}

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// все маршруты требуют личность
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(d.Auth))
		pr.Use(middlewareChi.Timeout(timeout))

		h := d.Handler
		pr.Route("/chat", func(cr chi.Router) {
			cr.Get("/private", h.GetPrivateMessages)
			cr.Get("/partners/{userId}", h.GetChatPartners)
			cr.Get("/groups/{userId}", h.GetUserRooms)
			cr.Get("/unread-count", h.GetUnreadCount)
			cr.Get("/conversations/{userId}", h.GetUserConversations)
			cr.Post("/messages", h.SendMessage)
		})

		pr.Route("/chatrooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)
			rm.Put("/", h.UpdateRoom)
			rm.Post("/add-users", h.AddUsersToRoom)
			rm.Post("/kick-user", h.KickUser)
			rm.Post("/leave", h.LeaveRoom)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetRoom)
				rr.Delete("/", h.DeleteRoom)
			})
		})
	})

	return r
}

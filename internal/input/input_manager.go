package input

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"whatschat/internal/handler"
	"whatschat/internal/middleware"
	"whatschat/internal/nlog"
	"whatschat/internal/service"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

type IptConfig struct {
	ServerPort    uint16
	ReadTimeout   int64 // Seconds
	WriteTimeout  int64 // Seconds
	SecretKey     string
	SessionMaxAge time.Duration
}

// Realtime is the websocket side of the server: it serves upgrades and is closed on shutdown
type Realtime interface {
	handler.Upgrader
	Close()
}

type InputManager struct { // Manages the HTTP and websocket input of the server
	running atomic.Bool
	paused  atomic.Bool

	logger   nlog.Logger
	server   *http.Server
	listener net.Listener

	stopFromOutsideChan chan struct{}
	doneFromInsideChan  chan struct{}

	authService      service.AuthService
	userService      service.UserService
	messageService   service.MessageService
	groupService     service.GroupService
	communityService service.CommunityService
	realtime         Realtime
}

func NewInputManager() *InputManager {
	return &InputManager{
		running:             atomic.Bool{},
		paused:              atomic.Bool{},
		stopFromOutsideChan: make(chan struct{}),
		doneFromInsideChan:  make(chan struct{}),
	}
}

func (i *InputManager) IsReady() bool {
	return i.logger != nil && i.authService != nil && i.userService != nil && i.messageService != nil &&
		i.groupService != nil && i.communityService != nil && i.realtime != nil
}

func (i *InputManager) IsRunning() bool {
	return i.running.Load()
}

func (i *InputManager) SetLogger(l nlog.Logger) {
	i.logger = l
}

func (i *InputManager) SetAuthService(as service.AuthService) {
	i.authService = as
}

func (i *InputManager) SetUserService(us service.UserService) {
	i.userService = us
}

func (i *InputManager) SetMessageService(ms service.MessageService) {
	i.messageService = ms
}

func (i *InputManager) SetGroupService(gs service.GroupService) {
	i.groupService = gs
}

func (i *InputManager) SetCommunityService(cs service.CommunityService) {
	i.communityService = cs
}

func (i *InputManager) SetRealtime(rt Realtime) {
	i.realtime = rt
}

func (i *InputManager) Logf(format string, a ...any) {
	i.logger.Logf(format, a...)
}

func (i *InputManager) SetPause(paused bool) {
	i.paused.Store(paused)
}

func (i *InputManager) IsPaused() bool {
	return i.paused.Load()
}

// PauseMiddleware answers 503 to every request while the manager is paused
func (i *InputManager) PauseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.IsPaused() {
			http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newCookieStore(cfg *IptConfig) *sessions.CookieStore {
	maxAge := cfg.SessionMaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	cookieStore := sessions.NewCookieStore([]byte(cfg.SecretKey))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	return cookieStore
}

// Router builds the full route table: the JSON API under /api and the websocket endpoint at /ws
func (i *InputManager) Router(cfg *IptConfig) http.Handler {
	cookieStore := newCookieStore(cfg)
	authenticated := func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(cookieStore, i.authService, next)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(i.authService, cookieStore, i.logger)
	userHandler := handler.NewUserHandler(i.userService, i.logger)
	messageHandler := handler.NewMessageHandler(i.messageService, i.logger)
	groupHandler := handler.NewGroupHandler(i.groupService, i.logger)
	communityHandler := handler.NewCommunityHandler(i.communityService, i.logger)
	wsHandler := handler.NewWSHandler(i.realtime)

	// Router
	r := mux.NewRouter()
	r.Use(middleware.Recover(i.logger), middleware.AccessLog(i.logger), i.PauseMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Authentication routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(authenticated)
	private.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodGet)
	private.HandleFunc("/auth/allusers/{id}", userHandler.AllUsers).Methods(http.MethodGet)
	private.HandleFunc("/auth/search/{email}", userHandler.Search).Methods(http.MethodGet)
	private.HandleFunc("/auth/setavatar/{id}", userHandler.SetAvatar).Methods(http.MethodPost)

	// Direct messages
	private.HandleFunc("/messages/direct", messageHandler.Send).Methods(http.MethodPost)
	private.HandleFunc("/messages/direct/history", messageHandler.History).Methods(http.MethodPost)
	private.HandleFunc("/messages/direct/contacts/{userId}", messageHandler.Contacts).Methods(http.MethodGet)
	private.HandleFunc("/messages/direct/mark-read", messageHandler.MarkRead).Methods(http.MethodPost)

	// Groups
	private.HandleFunc("/groups/create", groupHandler.CreateGroup).Methods(http.MethodPost)
	private.HandleFunc("/groups/user/{userId}", groupHandler.GetUserGroups).Methods(http.MethodGet)
	private.HandleFunc("/groups/details/{groupId}", groupHandler.GetDetails).Methods(http.MethodGet)
	private.HandleFunc("/groups/update-info", groupHandler.UpdateInfo).Methods(http.MethodPost)
	private.HandleFunc("/groups/add-members", groupHandler.AddMembers).Methods(http.MethodPost)
	private.HandleFunc("/groups/remove-member", groupHandler.RemoveMember).Methods(http.MethodPost)
	private.HandleFunc("/groups/assign-admin", groupHandler.AssignAdmin).Methods(http.MethodPost)
	private.HandleFunc("/groups/remove-admin", groupHandler.RemoveAdmin).Methods(http.MethodPost)
	private.HandleFunc("/groups/messages", groupHandler.SendMessage).Methods(http.MethodPost)
	private.HandleFunc("/groups/messages/history", groupHandler.History).Methods(http.MethodPost)
	private.HandleFunc("/groups/mark-read", groupHandler.MarkRead).Methods(http.MethodPost)

	// Communities
	private.HandleFunc("/communities/create", communityHandler.Create).Methods(http.MethodPost)
	private.HandleFunc("/communities/all/{userId}", communityHandler.GetAll).Methods(http.MethodGet)
	private.HandleFunc("/communities/join", communityHandler.Join).Methods(http.MethodPost)
	private.HandleFunc("/communities/leave", communityHandler.Leave).Methods(http.MethodPost)
	private.HandleFunc("/communities/details/{communityId}", communityHandler.GetDetails).Methods(http.MethodGet)
	private.HandleFunc("/communities/update-info", communityHandler.UpdateInfo).Methods(http.MethodPost)
	private.HandleFunc("/communities/messages", communityHandler.SendMessage).Methods(http.MethodPost)
	private.HandleFunc("/communities/messages/history", communityHandler.History).Methods(http.MethodPost)
	private.HandleFunc("/communities/mark-read", communityHandler.MarkRead).Methods(http.MethodPost)

	// Realtime
	r.Handle("/ws", authenticated(http.HandlerFunc(wsHandler.Connect))).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled or Stop is called, then shuts down gracefully
func (i *InputManager) Run(ctx context.Context, cfg *IptConfig) error {
	if !i.IsReady() {
		return fmt.Errorf("The Input manager is not ready... Missing components")
	}
	i.Logf("Input service started...")

	i.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:        i.Router(cfg),
		ReadTimeout:    time.Duration(cfg.ReadTimeout * int64(time.Second)),
		WriteTimeout:   time.Duration(cfg.WriteTimeout * int64(time.Second)),
		MaxHeaderBytes: 1 << 20,
	}

	listener, err := net.Listen("tcp", i.server.Addr)
	if err != nil {
		i.Logf("FATAL: could not listen on port {%d} {%v}", cfg.ServerPort, err)
		return err
	}
	i.listener = listener

	go func() {
		select {
		case <-ctx.Done():
			i.Logf("Received stop signal. Shutting down...")
		case <-i.stopFromOutsideChan:
			i.Logf("Server was asked to stop. Shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown
		i.realtime.Close()
		if err := i.server.Shutdown(shutdownCtx); err != nil {
			i.Logf("Error during shutdown... %v", err)
		}
		close(i.doneFromInsideChan)
	}()

	i.Logf("Http server started on {%s}", listener.Addr())
	i.running.Store(true)
	defer i.running.Store(false)

	if err := i.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		i.Logf("FATAL: HTTP Server error{%v}", err)
		return err
	}
	<-i.doneFromInsideChan
	return nil
}

// Addr is the address the server listens on, once Run has started
func (i *InputManager) Addr() net.Addr {
	if i.listener == nil {
		return nil
	}
	return i.listener.Addr()
}

func (i *InputManager) Stop() {
	close(i.stopFromOutsideChan)
	<-i.doneFromInsideChan
}

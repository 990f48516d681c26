// Package testsite serves a small stand-in for the SauceDemo shop: the login
// form, the inventory page behind it and logout. It lets the page objects
// and the lifecycle run against a local, deterministic target.
package testsite

import (
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	// SessionCookie carries the logged-in user's session id
	SessionCookie = "session-username"

	MsgLockedOut      = "Epic sadface: Sorry, this user has been locked out."
	MsgMismatch       = "Epic sadface: Username and password do not match any user in this service"
	MsgUsernameNeeded = "Epic sadface: Username is required"
	MsgPasswordNeeded = "Epic sadface: Password is required"
	MsgLoginRequired  = "Epic sadface: You can only access '/inventory.html' when you are logged in."
	MsgTooManyTries   = "Epic sadface: Too many login attempts, try again later."
)

// DefaultUsers are the accounts the stand-in accepts
var DefaultUsers = map[string]string{
	"standard_user":           "secret_sauce",
	"locked_out_user":         "secret_sauce",
	"problem_user":            "secret_sauce",
	"performance_glitch_user": "secret_sauce",
}

var lockedOut = map[string]bool{"locked_out_user": true}

// Products are listed on the inventory page
var Products = []string{
	"Sauce Labs Backpack",
	"Sauce Labs Bike Light",
	"Sauce Labs Bolt T-Shirt",
	"Sauce Labs Fleece Jacket",
	"Sauce Labs Onesie",
	"Test.allTheThings() T-Shirt (Red)",
}

// Options configure a Site
type Options struct {
	Users map[string]string
	// LoginsPerMinute throttles login attempts per client, zero disables it
	LoginsPerMinute int
	LoginBurst      int
	Logger          logrus.FieldLogger
}

// Site is the stand-in shop
type Site struct {
	users    map[string]string
	throttle *throttle
	log      logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[string]string
}

// New creates a site. Zero options serve DefaultUsers without throttling.
func New(opts Options) *Site {
	if opts.Users == nil {
		opts.Users = DefaultUsers
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}

	return &Site{
		users:    opts.Users,
		throttle: newThrottle(opts.LoginsPerMinute, opts.LoginBurst),
		log:      opts.Logger.WithField("component", "testsite"),
		sessions: make(map[string]string),
	}
}

// Router returns the site's routes
func (s *Site) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.loginPage).Methods("GET")
	r.HandleFunc("/login", s.login).Methods("POST")
	r.HandleFunc("/inventory.html", s.inventory).Methods("GET")
	r.HandleFunc("/logout", s.logout).Methods("GET")

	r.Use(s.logRequests)
	return r
}

// Server wraps the router in an http.Server listening on addr
func (s *Site) Server(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// User returns the user logged in with session id
func (s *Site) User(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.sessions[id]
	return user, ok
}

func (s *Site) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, loginTmpl, loginView{})
}

func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	if !s.throttle.Allow(clientAddr(r)) {
		s.render(w, http.StatusTooManyRequests, loginTmpl, loginView{Error: MsgTooManyTries})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("user-name")
	password := r.PostForm.Get("password")
	view := loginView{Username: username}

	switch want, known := s.users[username]; {
	case username == "":
		view.Error = MsgUsernameNeeded
	case password == "":
		view.Error = MsgPasswordNeeded
	case !known || want != password:
		view.Error = MsgMismatch
	case lockedOut[username]:
		view.Error = MsgLockedOut
	}
	if view.Error != "" {
		s.log.WithField("user", username).Debug("Login rejected")
		s.render(w, http.StatusUnauthorized, loginTmpl, view)
		return
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = username
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	http.Redirect(w, r, "/inventory.html", http.StatusSeeOther)
}

func (s *Site) inventory(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		s.render(w, http.StatusUnauthorized, loginTmpl, loginView{Error: MsgLoginRequired})
		return
	}
	user, ok := s.User(cookie.Value)
	if !ok {
		s.render(w, http.StatusUnauthorized, loginTmpl, loginView{Error: MsgLoginRequired})
		return
	}

	s.render(w, http.StatusOK, inventoryTmpl, inventoryView{User: user, Products: Products})
}

func (s *Site) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Site) render(w http.ResponseWriter, status int, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		s.log.WithError(err).Error("Failed to render page")
	}
}

func (s *Site) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Request served")
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

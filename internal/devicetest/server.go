// Package devicetest provides an in-process fake intercom HTTP API for tests.
package devicetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Info is the system info payload
type Info struct {
	Variant      string `json:"variant"`
	SerialNumber string `json:"serialNumber"`
	HWVersion    string `json:"hwVersion"`
	SWVersion    string `json:"swVersion"`
	BuildType    string `json:"buildType"`
	DeviceName   string `json:"deviceName"`
	MACAddr      string `json:"macAddr,omitempty"`
}

// SwitchCap is one switch capability entry
type SwitchCap struct {
	Switch  int    `json:"switch"`
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode,omitempty"`
}

// SwitchState is one switch status entry
type SwitchState struct {
	Switch int  `json:"switch"`
	Active bool `json:"active"`
	Locked bool `json:"locked"`
}

// PortCap is one IO capability entry
type PortCap struct {
	Port string `json:"port"`
	Type string `json:"type"`
}

// PortState is one IO status entry
type PortState struct {
	Port  string `json:"port"`
	State bool   `json:"state"`
}

// Event is a queued log event
type Event struct {
	ID      int64          `json:"id"`
	UTCTime int64          `json:"utcTime"`
	UpTime  int64          `json:"upTime"`
	TZShift int            `json:"tzShift"`
	Event   string         `json:"event"`
	Params  map[string]any `json:"params,omitempty"`
}

// DefaultInfo is the identity a new Server reports
var DefaultInfo = Info{
	Variant:      "2N IP Verso",
	SerialNumber: "54-1234-5678",
	HWVersion:    "535v1",
	SWVersion:    "2.38.0.48.7",
	BuildType:    "beta",
	DeviceName:   "Front door",
	MACAddr:      "7C-1E-B3-01-02-03",
}

// Server is a fake device. The zero configuration reports DefaultInfo,
// one enabled switch, one input and one output port, and two log events.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	info        Info
	upTime      int64
	switchCaps  []SwitchCap
	switches    []SwitchState
	portCaps    []PortCap
	ports       []PortState
	logEvents   []string
	queued      []Event
	nextChannel int64
	channels    map[int64]bool

	errors      map[string]int
	handlers    map[string]http.HandlerFunc
	contentType string
	username    string
	password    string

	calls   map[string]int
	queries map[string]url.Values
}

// NewServer starts a fake device that is closed when the test ends
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		info:   DefaultInfo,
		upTime: 3600,
		switchCaps: []SwitchCap{
			{Switch: 1, Enabled: true, Mode: "monostable"},
			{Switch: 2, Enabled: false},
		},
		switches: []SwitchState{
			{Switch: 1, Active: false, Locked: false},
			{Switch: 2, Active: false, Locked: false},
		},
		portCaps: []PortCap{
			{Port: "input1", Type: "input"},
			{Port: "relay1", Type: "output"},
		},
		ports: []PortState{
			{Port: "input1", State: false},
			{Port: "relay1", State: false},
		},
		logEvents:   []string{"KeyPressed", "DoorStateChanged"},
		nextChannel: 1,
		channels:    map[int64]bool{},
		errors:      map[string]int{},
		handlers:    map[string]http.HandlerFunc{},
		contentType: "application/json; charset=utf-8",
		calls:       map[string]int{},
		queries:     map[string]url.Values{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Host returns host:port of the server, without scheme
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// SetInfo replaces the system info payload
func (s *Server) SetInfo(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// SetUptime sets the reported uptime in seconds
func (s *Server) SetUptime(seconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upTime = seconds
}

// SetSwitches replaces the switch capability and status lists
func (s *Server) SetSwitches(caps []SwitchCap, states []SwitchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchCaps = caps
	s.switches = states
}

// SetPorts replaces the IO capability and status lists
func (s *Server) SetPorts(caps []PortCap, states []PortState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portCaps = caps
	s.ports = states
}

// SetLogEvents replaces the supported log event names
func (s *Server) SetLogEvents(events ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logEvents = events
}

// QueueEvent makes ev available to the next pull on any channel
func (s *Server) QueueEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, ev)
}

// SetError makes path answer success:false with code
func (s *Server) SetError(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[path] = code
}

// ClearError removes an error set with SetError
func (s *Server) ClearError(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, path)
}

// Handle overrides the response for path
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// SetContentType changes the Content-Type of every response
func (s *Server) SetContentType(ct string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentType = ct
}

// RequireBasicAuth makes every request without these credentials fail with 401
func (s *Server) RequireBasicAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// Calls returns how often path was requested
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests served
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// LastQuery returns the query of the most recent request to path
func (s *Server) LastQuery(path string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[path]
}

// OpenChannels returns the number of subscribed log channels
func (s *Server) OpenChannels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	s.calls[path]++
	s.queries[path] = r.URL.Query()
	handler := s.handlers[path]
	code, failing := s.errors[path]
	user, pass := s.username, s.password
	contentType := s.contentType
	s.mu.Unlock()

	if user != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="HTTP API"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	if handler != nil {
		handler(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if failing {
		writeJSON(w, map[string]any{"success": false, "error": map[string]any{"code": code}})
		return
	}

	result, ok := s.result(r)
	if !ok {
		writeJSON(w, map[string]any{"success": false, "error": map[string]any{"code": 2}})
		return
	}
	if result == nil {
		writeJSON(w, map[string]any{"success": true})
		return
	}
	writeJSON(w, map[string]any{"success": true, "result": result})
}

func (s *Server) result(r *http.Request) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	switch r.URL.Path {
	case "/api/system/info":
		return s.info, true
	case "/api/system/status":
		return map[string]any{"systemTime": 1700000000, "upTime": s.upTime}, true
	case "/api/system/restart", "/api/audio/test":
		return nil, true
	case "/api/switch/caps":
		return map[string]any{"switches": s.switchCaps}, true
	case "/api/switch/status":
		return map[string]any{"switches": s.switches}, true
	case "/api/switch/ctrl":
		id, _ := strconv.Atoi(q.Get("switch"))
		for i := range s.switches {
			if s.switches[i].Switch == id {
				s.switches[i].Active = q.Get("action") == "on"
			}
		}
		return nil, true
	case "/api/io/caps":
		return map[string]any{"ports": s.portCaps}, true
	case "/api/io/status":
		return map[string]any{"ports": s.ports}, true
	case "/api/io/ctrl":
		for i := range s.ports {
			if s.ports[i].Port == q.Get("port") {
				s.ports[i].State = q.Get("action") == "on"
			}
		}
		return nil, true
	case "/api/log/caps":
		return map[string]any{"events": s.logEvents}, true
	case "/api/log/subscribe":
		id := s.nextChannel
		s.nextChannel++
		s.channels[id] = true
		return map[string]any{"id": id}, true
	case "/api/log/unsubscribe":
		id, _ := strconv.ParseInt(q.Get("id"), 10, 64)
		delete(s.channels, id)
		return nil, true
	case "/api/log/pull":
		events := s.queued
		s.queued = nil
		if events == nil {
			events = []Event{}
		}
		return map[string]any{"events": events}, true
	case "/api/dir/template":
		return map[string]any{"users": []any{map[string]any{"name": "", "email": ""}}}, true
	case "/api/dir/query", "/api/dir/update":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		return map[string]any{"echo": body}, true
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRaw writes body with the given content type; handy in Handle overrides
func WriteRaw(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write([]byte(body))
}

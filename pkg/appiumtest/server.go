// Package appiumtest provides an in-process fake Appium server for tests.
//
// The server models a table of elements keyed by locator. Elements can be
// hidden, disabled, stale, or revealed only after a number of gestures,
// which is enough to exercise waits and swipe-until-found loops without a
// device.
package appiumtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// Element is one element of the fake screen.
type Element struct {
	ID        string
	Locator   core.Locator
	Text      string
	Displayed bool
	Enabled   bool
	Rect      appium.Bounds
	// RevealAfterGestures hides the element from lookups until that many
	// pointer gestures have been performed.
	RevealAfterGestures int
	// Stale makes every interaction fail with a stale element reference.
	Stale bool
	// ClickError, when set, is the W3C error code returned on click.
	ClickError string
}

// Stroke is one finger of a recorded gesture.
type Stroke struct {
	Start, End appium.Point
	DurationMs int
}

// Gesture is one recorded POST /actions payload.
type Gesture struct {
	Strokes []Stroke
	// Element is set when the first move originates at an element.
	Element string
}

// Server is a fake Appium server. All methods are safe for concurrent use.
type Server struct {
	mu  sync.Mutex
	srv *httptest.Server

	nextSession int
	sessionID   string
	created     int
	deleted     int
	failCreate  string
	lastCaps    map[string]interface{}

	elements []*Element
	nextElem int

	width, height int
	implicitMs    int64
	settings      map[string]interface{}
	findDelay     time.Duration
	gestures      []Gesture
	clicks        []string
	backs         int
	hideKeyboard  int
	scripts       []string

	alert          *string
	alertsAccepted int
	alertsDismiss  int
	currentPackage string
	network        int
	screenshot     []byte
	source         string
	deviceInfo     map[string]interface{}
}

// NewServer starts a fake server. It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		width:          1080,
		height:         2400,
		currentPackage: "cn.jiazhengye.panda_home",
		network:        6,
		screenshot:     []byte("\x89PNG\r\n\x1a\nfake"),
		source:         `<?xml version="1.0" encoding="UTF-8"?><hierarchy rotation="0"></hierarchy>`,
		deviceInfo: map[string]interface{}{
			"manufacturer":    "Xiaomi",
			"model":           "22021211RC",
			"platformVersion": "14",
			"apiVersion":      "34",
		},
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the server base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Post("/session", s.createSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Use(s.requireSession)

		r.Delete("/", s.deleteSession)
		r.Get("/window/rect", s.windowRect)
		r.Post("/timeouts", s.setTimeouts)
		r.Post("/element", s.findElement)
		r.Post("/elements", s.findElements)

		r.Route("/element/{elementID}", func(r chi.Router) {
			r.Post("/click", s.click)
			r.Post("/clear", s.clear)
			r.Post("/value", s.sendKeys)
			r.Get("/text", s.elementText)
			r.Get("/displayed", s.elementDisplayed)
			r.Get("/enabled", s.elementEnabled)
			r.Get("/rect", s.elementRect)
		})

		r.Post("/actions", s.performActions)
		r.Post("/back", s.back)
		r.Post("/alert/accept", s.acceptAlert)
		r.Post("/alert/dismiss", s.dismissAlert)
		r.Get("/alert/text", s.alertText)
		r.Post("/appium/device/hide_keyboard", s.hideKeyboardHandler)
		r.Get("/appium/device/current_package", s.currentPackageHandler)
		r.Post("/appium/settings", s.updateSettings)
		r.Get("/network_connection", s.networkConnection)
		r.Get("/screenshot", s.screenshotHandler)
		r.Get("/source", s.sourceHandler)
		r.Post("/execute/sync", s.execute)
	})

	return r
}

// Setup

// Add places an element on the screen, displayed and enabled, and returns its ID.
func (s *Server) Add(loc core.Locator, text string) string {
	return s.AddElement(Element{Locator: loc, Text: text, Displayed: true, Enabled: true})
}

// AddElement places e on the screen and returns its ID.
func (s *Server) AddElement(e Element) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		s.nextElem++
		e.ID = fmt.Sprintf("el-%d", s.nextElem)
	}
	if e.Rect == (appium.Bounds{}) {
		e.Rect = appium.Bounds{X: 40, Y: 100 * len(s.elements), Width: 200, Height: 80}
	}
	s.elements = append(s.elements, &e)
	return e.ID
}

// Update mutates the element with the given ID.
func (s *Server) Update(id string, fn func(e *Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.element(id); e != nil {
		fn(e)
	}
}

// Remove takes the element with the given ID off the screen.
func (s *Server) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.elements {
		if e.ID == id {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			return
		}
	}
}

// SetAlert shows a modal dialog with the given text.
func (s *Server) SetAlert(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = &text
}

// SetCurrentPackage sets the foreground package.
func (s *Server) SetCurrentPackage(pkg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPackage = pkg
}

// SetNetworkConnection sets the connection bitmask.
func (s *Server) SetNetworkConnection(mask int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = mask
}

// SetSource sets the page source returned by GET /source.
func (s *Server) SetSource(xml string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = xml
}

// SetWindowSize sets the window rect.
func (s *Server) SetWindowSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// SetFindDelay makes a find for a missing element wait d before answering
// "no such element", or until the client gives up on the request.
func (s *Server) SetFindDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findDelay = d
}

// FailSessionCreate makes POST /session fail with the given message.
// An empty message restores normal behavior.
func (s *Server) FailSessionCreate(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = msg
}

// Inspection

// Screenshot returns the PNG bytes the server serves.
func (s *Server) Screenshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.screenshot...)
}

// SessionsCreated returns how many sessions were opened.
func (s *Server) SessionsCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// SessionsDeleted returns how many sessions were closed.
func (s *Server) SessionsDeleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// SessionActive reports whether a session is open.
func (s *Server) SessionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID != ""
}

// Capabilities returns the alwaysMatch capabilities of the last session.
func (s *Server) Capabilities() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCaps
}

// ImplicitWaitMs returns the last implicit wait set.
func (s *Server) ImplicitWaitMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.implicitMs
}

// Settings returns the driver settings applied so far.
func (s *Server) Settings() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// Clicks returns the clicked element IDs in order.
func (s *Server) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Text returns the current text of an element.
func (s *Server) Text(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.element(id); e != nil {
		return e.Text
	}
	return ""
}

// Gestures returns the recorded pointer gestures.
func (s *Server) Gestures() []Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Gesture(nil), s.gestures...)
}

// Backs returns how many back navigations were requested.
func (s *Server) Backs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backs
}

// KeyboardHides returns how many hide keyboard calls were made.
func (s *Server) KeyboardHides() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hideKeyboard
}

// AlertsAccepted returns how many alerts were accepted.
func (s *Server) AlertsAccepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertsAccepted
}

// AlertsDismissed returns how many alerts were dismissed.
func (s *Server) AlertsDismissed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertsDismiss
}

// Scripts returns the executed scripts in order.
func (s *Server) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

// element returns the element with the given ID. Caller holds mu.
func (s *Server) element(id string) *Element {
	for _, e := range s.elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// visible returns the elements matching loc that lookups can see. Caller holds mu.
func (s *Server) visible(loc core.Locator) []*Element {
	var result []*Element
	for _, e := range s.elements {
		if e.Locator == loc && len(s.gestures) >= e.RevealAfterGestures {
			result = append(result, e)
		}
	}
	return result
}

// HTTP helpers

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeValue(w http.ResponseWriter, value interface{}) {
	writeJSON(w, map[string]interface{}{"value": value})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": msg},
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func elementRef(id string) map[string]interface{} {
	return map[string]interface{}{elementKey: id}
}

func encodePNG(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

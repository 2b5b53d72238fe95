package appiumtest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
)

// requireSession rejects requests for a session that is not open.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		s.mu.Lock()
		active := s.sessionID
		s.mu.Unlock()
		if id == "" || id != active {
			writeError(w, http.StatusNotFound, appium.CodeInvalidSessionID, "session "+id+" is not known")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings map[string]interface{} `json:"settings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	s.mu.Lock()
	if s.settings == nil {
		s.settings = map[string]interface{}{}
	}
	for k, v := range req.Settings {
		s.settings[k] = v
	}
	s.mu.Unlock()
	writeValue(w, nil)
}

// Sessions

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != "" {
		writeError(w, http.StatusInternalServerError, "session not created", s.failCreate)
		return
	}

	s.nextSession++
	s.created++
	s.sessionID = fmt.Sprintf("fake-session-%d", s.nextSession)
	s.lastCaps = req.Capabilities.AlwaysMatch

	platform, _ := s.lastCaps["platformName"].(string)
	if platform == "" {
		platform = "Android"
	}
	writeValue(w, map[string]interface{}{
		"sessionId": s.sessionID,
		"capabilities": map[string]interface{}{
			"platformName": platform,
		},
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.sessionID = ""
	s.deleted++
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) windowRect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, map[string]interface{}{"x": 0, "y": 0, "width": s.width, "height": s.height})
}

func (s *Server) setTimeouts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Implicit *int64 `json:"implicit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	if req.Implicit != nil {
		s.mu.Lock()
		s.implicitMs = *req.Implicit
		s.mu.Unlock()
	}
	writeValue(w, nil)
}

// Lookup

func decodeLocator(r *http.Request) (core.Locator, error) {
	var req struct {
		Using string `json:"using"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return core.Locator{}, err
	}
	return core.Locator{Strategy: req.Using, Value: req.Value}, nil
}

func (s *Server) findElement(w http.ResponseWriter, r *http.Request) {
	loc, err := decodeLocator(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	matches := s.visible(loc)
	delay := s.findDelay
	s.mu.Unlock()
	if len(matches) == 0 {
		// a missing element holds the request like a server-side implicit wait
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-r.Context().Done():
				return
			}
		}
		writeError(w, http.StatusNotFound, appium.CodeNoSuchElement,
			"An element could not be located on the page using the given search parameters.")
		return
	}
	writeValue(w, elementRef(matches[0].ID))
}

func (s *Server) findElements(w http.ResponseWriter, r *http.Request) {
	loc, err := decodeLocator(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	refs := []interface{}{}
	for _, e := range s.visible(loc) {
		refs = append(refs, elementRef(e.ID))
	}
	writeValue(w, refs)
}

// Element commands

// withElement resolves the element in the URL and runs fn under the lock.
func (s *Server) withElement(w http.ResponseWriter, r *http.Request, fn func(e *Element)) {
	id := chi.URLParam(r, "elementID")

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.element(id)
	if e == nil || e.Stale {
		writeError(w, http.StatusNotFound, appium.CodeStaleElement,
			"The element '"+id+"' does not exist in DOM anymore")
		return
	}
	fn(e)
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(e *Element) {
		if e.ClickError != "" {
			writeError(w, http.StatusBadRequest, e.ClickError, "click on "+e.ID+" failed")
			return
		}
		s.clicks = append(s.clicks, e.ID)
		writeValue(w, nil)
	})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(e *Element) {
		e.Text = ""
		writeValue(w, nil)
	})
}

func (s *Server) sendKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	s.withElement(w, r, func(e *Element) {
		e.Text += req.Text
		writeValue(w, nil)
	})
}

func (s *Server) elementText(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(e *Element) { writeValue(w, e.Text) })
}

func (s *Server) elementDisplayed(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(e *Element) { writeValue(w, e.Displayed) })
}

func (s *Server) elementEnabled(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(e *Element) { writeValue(w, e.Enabled) })
}

func (s *Server) elementRect(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(e *Element) {
		writeValue(w, map[string]interface{}{
			"x": e.Rect.X, "y": e.Rect.Y, "width": e.Rect.Width, "height": e.Rect.Height,
		})
	})
}

// Gestures

func (s *Server) performActions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actions []struct {
			Type    string                   `json:"type"`
			ID      string                   `json:"id"`
			Actions []map[string]interface{} `json:"actions"`
		} `json:"actions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	var g Gesture
	for _, source := range req.Actions {
		var stroke Stroke
		moves := 0
		for _, a := range source.Actions {
			if a["type"] != "pointerMove" {
				continue
			}
			p := appium.Point{X: toInt(a["x"]), Y: toInt(a["y"])}
			if moves == 0 {
				stroke.Start = p
				if origin, ok := a["origin"].(map[string]interface{}); ok {
					g.Element, _ = origin[elementKey].(string)
				}
			}
			stroke.End = p
			stroke.DurationMs = toInt(a["duration"])
			moves++
		}
		g.Strokes = append(g.Strokes, stroke)
	}

	s.mu.Lock()
	s.gestures = append(s.gestures, g)
	s.mu.Unlock()
	writeValue(w, nil)
}

func toInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}

// Navigation and device

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.backs++
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) hideKeyboardHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hideKeyboard++
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) currentPackageHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, s.currentPackage)
}

func (s *Server) networkConnection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, s.network)
}

func (s *Server) screenshotHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, encodePNG(s.screenshot))
}

func (s *Server) sourceHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, s.source)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string `json:"script"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, req.Script)
	switch strings.TrimSpace(req.Script) {
	case "mobile: deviceInfo":
		writeValue(w, s.deviceInfo)
	default:
		writeValue(w, nil)
	}
}

// Alerts

func (s *Server) acceptAlert(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert == nil {
		writeError(w, http.StatusNotFound, appium.CodeNoSuchAlert, "no modal dialog is open")
		return
	}
	s.alert = nil
	s.alertsAccepted++
	writeValue(w, nil)
}

func (s *Server) dismissAlert(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert == nil {
		writeError(w, http.StatusNotFound, appium.CodeNoSuchAlert, "no modal dialog is open")
		return
	}
	s.alert = nil
	s.alertsDismiss++
	writeValue(w, nil)
}

func (s *Server) alertText(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert == nil {
		writeError(w, http.StatusNotFound, appium.CodeNoSuchAlert, "no modal dialog is open")
		return
	}
	writeValue(w, *s.alert)
}

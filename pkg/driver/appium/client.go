// Package appium is a W3C WebDriver client for an Appium server.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client handles HTTP communication with Appium server.
// A Client owns at most one session and is not safe for concurrent use.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // ios, android
	ctx       context.Context
}

// sessionCloseTimeout bounds the DELETE that ends a session. It is not
// tied to the client context so a cancelled run still releases the device.
const sessionCloseTimeout = 30 * time.Second

// Point is a screen coordinate in pixels.
type Point struct {
	X, Y int
}

// Path is a straight finger movement.
type Path struct {
	Start, End Point
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for session start/screenshot
		},
	}
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post("/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if platform, ok := caps["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}
	if c.platform == "" {
		if p, ok := capabilities["platformName"].(string); ok {
			c.platform = strings.ToLower(p)
		}
	}

	return nil
}

// SetContext ties every later request to ctx: cancelling it aborts the
// request in flight, including a lookup blocked on the implicit wait.
// Disconnect is exempt.
func (c *Client) SetContext(ctx context.Context) {
	c.ctx = ctx
}

// Disconnect closes the session. Safe to call more than once.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
	defer cancel()
	_, err := c.do(ctx, "DELETE", c.sessionPath(), nil)
	c.sessionID = ""
	return err
}

// SessionID returns the current session ID, empty when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the platform (ios/android).
func (c *Client) Platform() string {
	return c.platform
}

// WindowRect returns the current window size. It is fetched on every call
// because rotation or split screen can change it between gestures.
func (c *Client) WindowRect() (width, height int, err error) {
	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		return 0, 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, 0, fmt.Errorf("invalid window rect response")
	}
	w, _ := value["width"].(float64)
	h, _ := value["height"].(float64)
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid window size %vx%v", w, h)
	}
	return int(w), int(h), nil
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &WebDriverError{Code: CodeNoSuchElement, Message: "empty find response"}
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", &WebDriverError{Code: CodeNoSuchElement, Message: "no element id in response"}
	}
	return id, nil
}

// FindElements finds multiple elements. No match is an empty result, not an error.
func (c *Client) FindElements(strategy, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(c.sessionPath()+"/elements", body)
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", nil)
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/clear", nil)
	return err
}

// SendKeysToElement types text into an element.
func (c *Client) SendKeysToElement(elementID, text string) error {
	_, err := c.post(c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(elementID string) (x, y, w, h int, err error) {
	resp, err := c.get(c.elementPath(elementID) + "/rect")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return int(xf), int(yf), int(wf), int(hf), nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Touch/Gesture Operations (W3C Actions)

func touchSource(id string, actions []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "pointer",
		"id":         id,
		"parameters": map[string]interface{}{"pointerType": "touch"},
		"actions":    actions,
	}
}

func (c *Client) performActions(sources ...map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{"actions": sources})
	return err
}

// Tap performs a tap at coordinates using W3C touch actions.
func (c *Client) Tap(x, y int) error {
	return c.performActions(touchSource("finger1", []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": x, "y": y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 50},
		{"type": "pointerUp", "button": 0},
	}))
}

// LongPressElement presses and holds the center of an element.
func (c *Client) LongPressElement(elementID string, durationMs int) error {
	return c.performActions(touchSource("finger1", []map[string]interface{}{
		{
			"type":     "pointerMove",
			"duration": 0,
			"x":        0,
			"y":        0,
			"origin":   map[string]interface{}{w3cElementKey: elementID},
		},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": durationMs},
		{"type": "pointerUp", "button": 0},
	}))
}

// Swipe performs a swipe gesture.
func (c *Client) Swipe(startX, startY, endX, endY, durationMs int) error {
	return c.performActions(touchSource("finger1", swipePath(Path{
		Start: Point{startX, startY},
		End:   Point{endX, endY},
	}, durationMs)))
}

// TwoFingerGesture moves two fingers simultaneously, e.g. a pinch or a spread.
func (c *Client) TwoFingerGesture(first, second Path, durationMs int) error {
	return c.performActions(
		touchSource("finger1", swipePath(first, durationMs)),
		touchSource("finger2", swipePath(second, durationMs)),
	)
}

func swipePath(p Path, durationMs int) []map[string]interface{} {
	return []map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": p.Start.X, "y": p.Start.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 100},
		{"type": "pointerMove", "duration": durationMs, "x": p.End.X, "y": p.End.Y, "origin": "viewport"},
		{"type": "pointerUp", "button": 0},
	}
}

// Alerts

// AcceptAlert accepts the current modal dialog.
func (c *Client) AcceptAlert() error {
	_, err := c.post(c.sessionPath()+"/alert/accept", map[string]interface{}{})
	return err
}

// DismissAlert dismisses the current modal dialog.
func (c *Client) DismissAlert() error {
	_, err := c.post(c.sessionPath()+"/alert/dismiss", map[string]interface{}{})
	return err
}

// GetAlertText returns the text of the current modal dialog.
func (c *Client) GetAlertText() (string, error) {
	resp, err := c.get(c.sessionPath() + "/alert/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// Navigation

// Back navigates back.
func (c *Client) Back() error {
	_, err := c.post(c.sessionPath()+"/back", map[string]interface{}{})
	return err
}

// HideKeyboard hides the on-screen keyboard.
func (c *Client) HideKeyboard() error {
	_, err := c.post(c.sessionPath()+"/appium/device/hide_keyboard", map[string]interface{}{})
	return err
}

// App and device inspection

// CurrentPackage returns the package of the foreground Android app.
func (c *Client) CurrentPackage() (string, error) {
	resp, err := c.get(c.sessionPath() + "/appium/device/current_package")
	if err != nil {
		return "", err
	}
	pkg, _ := resp["value"].(string)
	if pkg == "" {
		return "", fmt.Errorf("empty current package")
	}
	return pkg, nil
}

// NetworkConnection returns the Android network connection bitmask
// (1 airplane, 2 wifi, 4 data).
func (c *Client) NetworkConnection() (int, error) {
	resp, err := c.get(c.sessionPath() + "/network_connection")
	if err != nil {
		return 0, err
	}
	mask, _ := resp["value"].(float64)
	return int(mask), nil
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Timeouts

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(timeout time.Duration) error {
	_, err := c.post(c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// SetSettings updates Appium driver settings.
func (c *Client) SetSettings(settings map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/appium/settings", map[string]interface{}{
		"settings": settings,
	})
	return err
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	resp, err := c.post(c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request("GET", path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.request("POST", path, body)
}

func (c *Client) request(method, path string, body interface{}) (map[string]interface{}, error) {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return c.do(ctx, method, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	if path != "/session" && c.sessionID == "" {
		return nil, ErrNoSession
	}

	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &WebDriverError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return result, &WebDriverError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

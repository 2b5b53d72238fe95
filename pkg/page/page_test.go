package page

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/devicelab-dev/appui-runner/pkg/action"
	"github.com/devicelab-dev/appui-runner/pkg/appiumtest"
	"github.com/devicelab-dev/appui-runner/pkg/config"
	"github.com/devicelab-dev/appui-runner/pkg/core"
	"github.com/devicelab-dev/appui-runner/pkg/driver/appium"
)

var (
	startLocators = config.StartLocators{
		AgreeService:   core.ByID("cn.jiazhengye.panda_home:id/tv_agree"),
		AgreeLaunch:    core.ByID("cn.jiazhengye.panda_home:id/btn_start"),
		CarouselSwipes: 4,
	}
	loginLocators = config.LoginLocators{
		Account:   core.ByID("cn.jiazhengye.panda_home:id/et_phone"),
		Password:  core.ByID("cn.jiazhengye.panda_home:id/et_password"),
		Agreement: core.ByID("cn.jiazhengye.panda_home:id/cb_agreement"),
		Submit:    core.ByID("cn.jiazhengye.panda_home:id/btn_login"),
	}
	homeLocators = config.HomeLocators{
		Icons: core.ByClassName("android.widget.ImageView"),
		Entry: core.ByID("cn.jiazhengye.panda_home:id/iv_entry"),
	}
	credentials = config.Credentials{Account: "15137139921", Password: "xyz1230."}
)

func newTestActions(t *testing.T) (*appiumtest.Server, *action.Actions) {
	t.Helper()
	s := appiumtest.NewServer(t)
	client := appium.NewClient(s.URL())
	if err := client.Connect(map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect() })
	return s, action.New(client, nil, action.Options{
		WaitTimeout:      200 * time.Millisecond,
		PollInterval:     10 * time.Millisecond,
		SwipeDuration:    50 * time.Millisecond,
		SwipeMaxAttempts: 5,
		SwipeSettle:      -1,
	})
}

func TestStartPage_Start(t *testing.T) {
	s, a := newTestActions(t)
	agree := s.Add(startLocators.AgreeService, "Agree")
	// the launch button appears at the end of the carousel
	launch := s.AddElement(appiumtest.Element{
		Locator: startLocators.AgreeLaunch, Displayed: true, Enabled: true, RevealAfterGestures: 4,
	})

	if err := NewStartPage(a, startLocators, 0).Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	g := s.Gestures()
	if len(g) != 4 {
		t.Fatalf("expected 4 carousel swipes, got %d", len(g))
	}
	for i, gesture := range g {
		if st := gesture.Strokes[0]; st.Start.X <= st.End.X {
			t.Errorf("swipe %d is not leftward: %v->%v", i, st.Start, st.End)
		}
	}

	clicks := s.Clicks()
	if len(clicks) != 2 || clicks[0] != agree || clicks[1] != launch {
		t.Errorf("clicks = %v, want [%s %s]", clicks, agree, launch)
	}
}

func TestStartPage_ConsentNeverClickable(t *testing.T) {
	s, a := newTestActions(t)
	s.AddElement(appiumtest.Element{Locator: startLocators.AgreeService, Displayed: true, Enabled: false})

	err := NewStartPage(a, startLocators, 50*time.Millisecond).Start(context.Background())
	if !errors.Is(err, core.ErrElementNotFound) || !errors.Is(err, core.ErrWaitTimeout) {
		t.Fatalf("expected wait timeout, got %v", err)
	}
	if len(s.Gestures()) != 0 {
		t.Error("carousel should not be swiped before consent")
	}
}

func TestStartPage_Unconfigured(t *testing.T) {
	_, a := newTestActions(t)

	p := NewStartPage(a, config.StartLocators{CarouselSwipes: 4}, 0)
	if p.Configured() {
		t.Error("Configured() should be false")
	}
	err := p.Start(context.Background())
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("expected ErrMissingRequired, got %v", err)
	}
}

func TestLoginPage_Login(t *testing.T) {
	s, a := newTestActions(t)
	account := s.Add(loginLocators.Account, "")
	password := s.Add(loginLocators.Password, "")
	agreement := s.Add(loginLocators.Agreement, "")
	submit := s.Add(loginLocators.Submit, "Login")

	p := NewLoginPage(a, loginLocators, credentials, 0)
	if !p.Configured() {
		t.Fatal("page should be configured")
	}
	if err := p.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if s.Text(account) != "15137139921" || s.Text(password) != "xyz1230." {
		t.Errorf("account=%q password=%q", s.Text(account), s.Text(password))
	}
	clicks := s.Clicks()
	if len(clicks) != 2 || clicks[0] != agreement || clicks[1] != submit {
		t.Errorf("clicks = %v", clicks)
	}
}

func TestLoginPage_Unconfigured(t *testing.T) {
	_, a := newTestActions(t)

	tests := []struct {
		name     string
		locators config.LoginLocators
		creds    config.Credentials
		field    string
	}{
		{"no locators", config.LoginLocators{}, credentials, "locators.login.account"},
		{"no submit", config.LoginLocators{
			Account: loginLocators.Account, Password: loginLocators.Password, Agreement: loginLocators.Agreement,
		}, credentials, "locators.login.submit"},
		{"no account", loginLocators, config.Credentials{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLoginPage(a, tt.locators, tt.creds, 0)
			if p.Configured() {
				t.Error("Configured() should be false")
			}
			err := p.Login(context.Background())
			if !errors.Is(err, core.ErrMissingRequired) {
				t.Fatalf("expected ErrMissingRequired, got %v", err)
			}
			var execErr *core.ExecutionError
			if tt.field != "" && errors.As(err, &execErr) && execErr.Details["field"] != tt.field {
				t.Errorf("field = %v, want %s", execErr.Details["field"], tt.field)
			}
		})
	}
}

func TestMaskAccount(t *testing.T) {
	if got := maskAccount("15137139921"); got != "****9921" {
		t.Errorf("maskAccount = %q", got)
	}
	if got := maskAccount("abc"); got != "****" {
		t.Errorf("maskAccount(short) = %q", got)
	}
}

func TestMaskAccount_Multibyte(t *testing.T) {
	tests := []struct {
		account string
		want    string
	}{
		{"熊猫之家用户名", "****家用户名"},
		{"用户名", "****"},
		{"panda熊猫", "****da熊猫"},
	}
	for _, tt := range tests {
		got := maskAccount(tt.account)
		if !utf8.ValidString(got) {
			t.Errorf("maskAccount(%q) = %q is not valid UTF-8", tt.account, got)
		}
		if got != tt.want {
			t.Errorf("maskAccount(%q) = %q, want %q", tt.account, got, tt.want)
		}
	}
}

func TestHomePage_ClickIcon(t *testing.T) {
	s, a := newTestActions(t)
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, s.Add(homeLocators.Icons, ""))
	}
	p := NewHomePage(a, homeLocators)

	count, err := p.IconCount()
	if err != nil || count != 3 {
		t.Fatalf("IconCount = %d, %v", count, err)
	}

	for i := 0; i < count; i++ {
		if err := p.ClickIcon(i); err != nil {
			t.Fatalf("ClickIcon(%d) failed: %v", i, err)
		}
	}
	clicks := s.Clicks()
	for i, id := range ids {
		if clicks[i] != id {
			t.Errorf("click %d = %s, want %s", i, clicks[i], id)
		}
	}
}

func TestHomePage_ClickIconTapsWhenNotInteractable(t *testing.T) {
	s, a := newTestActions(t)
	s.Add(homeLocators.Icons, "")
	id := s.AddElement(appiumtest.Element{
		Locator: homeLocators.Icons, Displayed: true, Enabled: true,
		Rect:       appium.Bounds{X: 300, Y: 600, Width: 120, Height: 120},
		ClickError: appium.CodeNotInteractable,
	})
	p := NewHomePage(a, homeLocators)

	if err := p.ClickIcon(1); err != nil {
		t.Fatalf("ClickIcon(1) failed: %v", err)
	}
	for _, c := range s.Clicks() {
		if c == id {
			t.Errorf("icon %s should not register a click", id)
		}
	}
	g := s.Gestures()
	if len(g) != 1 || g[0].Strokes[0].Start != (appium.Point{X: 360, Y: 660}) {
		t.Errorf("gestures = %+v, want tap at (360,660)", g)
	}
}

func TestHomePage_ClickIconOtherClickErrorNotTapped(t *testing.T) {
	s, a := newTestActions(t)
	s.AddElement(appiumtest.Element{
		Locator: homeLocators.Icons, Displayed: true, Enabled: true,
		ClickError: "element click intercepted",
	})
	p := NewHomePage(a, homeLocators)

	if err := p.ClickIcon(0); err == nil {
		t.Fatal("expected click error")
	}
	if len(s.Gestures()) != 0 {
		t.Error("intercepted click should not fall back to a tap")
	}
}

func TestHomePage_ClickIconOutOfRange(t *testing.T) {
	s, a := newTestActions(t)
	s.Add(homeLocators.Icons, "")
	s.Add(homeLocators.Icons, "")
	p := NewHomePage(a, homeLocators)

	for _, index := range []int{-1, 2, 10} {
		err := p.ClickIcon(index)
		if !errors.Is(err, core.ErrIndexOutOfRange) {
			t.Errorf("ClickIcon(%d) = %v, want ErrIndexOutOfRange", index, err)
		}
		if core.StatusForError(err) != core.StatusFailed {
			t.Errorf("index error should fail, not error")
		}
	}
	if len(s.Clicks()) != 0 {
		t.Error("no icon should be clicked")
	}
}

func TestHomePage_NoIcons(t *testing.T) {
	_, a := newTestActions(t)
	p := NewHomePage(a, homeLocators)

	count, err := p.IconCount()
	if err != nil || count != 0 {
		t.Errorf("IconCount = %d, %v", count, err)
	}
	if err := p.ClickIcon(0); !errors.Is(err, core.ErrIndexOutOfRange) {
		t.Errorf("ClickIcon(0) on empty grid = %v", err)
	}
}

func TestHomePage_OpenEntry(t *testing.T) {
	s, a := newTestActions(t)
	entry := s.AddElement(appiumtest.Element{
		Locator: homeLocators.Entry, Displayed: true, Enabled: true, RevealAfterGestures: 2,
	})

	if err := NewHomePage(a, homeLocators).OpenEntry(context.Background()); err != nil {
		t.Fatalf("OpenEntry failed: %v", err)
	}
	if clicks := s.Clicks(); len(clicks) != 1 || clicks[0] != entry {
		t.Errorf("clicks = %v", clicks)
	}
}

func TestHomePage_OpenEntryExhausted(t *testing.T) {
	_, a := newTestActions(t)

	err := NewHomePage(a, homeLocators).OpenEntry(context.Background())
	if !errors.Is(err, core.ErrSwipeExhausted) {
		t.Errorf("expected ErrSwipeExhausted, got %v", err)
	}
}

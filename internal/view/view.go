// Package view は埋め込みのHTMLテンプレートと静的ファイルを提供する。
//
// ページはlayout.htmlとページごとのテンプレートの組で構成され、
// 起動時に1度だけ解析する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"

	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/pomodoro"
)

//go:embed templates/*.html static/*
var files embed.FS

// ページ名
const (
	PageHome      = "home"
	PageLogin     = "login"
	PageSignup    = "signup"
	PageDashboard = "dashboard"
)

var pageNames = []string{PageHome, PageLogin, PageSignup, PageDashboard}

// ringCircumference はタイマーの進捗リング（半径45）の円周。
var ringCircumference = 2 * math.Pi * 45

// Page は全ページ共通のデータ。
type Page struct {
	Title     string
	CSRFToken string
}

// AuthPage はログイン・サインアップページのデータ。
type AuthPage struct {
	Page
	Error         string
	GoogleEnabled bool
}

// DashboardPage はダッシュボードのデータ。
type DashboardPage struct {
	Page
	User      *model.User
	Timer     Timer
	Tasks     []model.Task
	Completed int
	Total     int
}

// ModeTab はモード切り替えボタン1つ分の表示データ。
type ModeTab struct {
	Mode   string
	Label  string
	Active bool
}

// Timer はタイマーカードの表示データ。
type Timer struct {
	ID         string
	Mode       string
	Label      string
	Display    string
	Running    bool
	Sessions   int
	Editing    bool
	EditText   string
	Minutes    int
	Percent    int
	RingLength string
	RingOffset string
	Modes      []ModeTab
}

// NewTimer はスナップショットからタイマーカードの表示データを組み立てる。
func NewTimer(id string, s pomodoro.Snapshot) Timer {
	tabs := make([]ModeTab, 0, len(pomodoro.Modes))
	for _, m := range pomodoro.Modes {
		tabs = append(tabs, ModeTab{Mode: m.String(), Label: m.Label(), Active: m == s.Mode})
	}
	return Timer{
		ID:         id,
		Mode:       s.Mode.String(),
		Label:      s.Mode.Label(),
		Display:    s.Display(),
		Running:    s.Running,
		Sessions:   s.Sessions,
		Editing:    s.Editing,
		EditText:   s.EditText,
		Minutes:    s.Config.Minutes(s.Mode),
		Percent:    int(math.Round(s.Progress * 100)),
		RingLength: fmt.Sprintf("%.2f", ringCircumference),
		RingOffset: fmt.Sprintf("%.2f", ringCircumference*(1-s.Progress)),
		Modes:      tabs,
	}
}

// Renderer は解析済みのページテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// New は埋め込みテンプレートを解析してRendererを生成する。
func New() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render はページを描画してレスポンスに書き込む。
// 描画が途中で失敗した場合に不完全なHTMLを返さないよう、バッファに描画してから書き込む。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler は/static/配下の埋め込みファイルを配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

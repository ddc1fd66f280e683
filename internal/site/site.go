// Package site defines the mob programming site: which assets exist and how
// each one is produced.
//
// The site has a fixed set of pages (index.html, join.html), one page per mob
// record under the entity directory, and static files (stylesheet, calendar
// script, logos, fonts). Every page links to other assets only through
// ssg.Targets, so links stay correct under any output root.
package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Logical paths of the fixed assets.
const (
	IndexPath      = "index.html"
	JoinPath       = "join.html"
	StylesheetPath = "index.css"
	ZulipLogoPath  = "zulip_logo.svg"
	GitHubLogoPath = "inverticat.svg"
	TwitterLogo    = "twitter_logo.svg"
	FontsDir       = "fonts"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed defaults
var defaultsFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Options configures a Site.
type Options struct {
	Name        string
	Description string
	EntityDir   string
	ZulipURL    string
	GitHubURL   string
	TwitterURL  string
	RepoURL     string
	Commit      string
	Fonts       []string

	// JoinMarkdown is a file on disk rendered as join.html; the embedded
	// default is used when empty.
	JoinMarkdown string

	// Files overrides the embedded static files. Files missing from it fall
	// back to the embedded defaults.
	Files fs.FS

	// Version is the cache-busting token appended to the stylesheet URL.
	// Empty means the current time in milliseconds.
	Version string
}

// OptionsFromConfig maps the site section and assets_dir of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Name:         cfg.Site.Name,
		Description:  cfg.Site.Description,
		EntityDir:    cfg.Site.EntityDir,
		ZulipURL:     cfg.Site.ZulipURL,
		GitHubURL:    cfg.Site.GitHubURL,
		TwitterURL:   cfg.Site.TwitterURL,
		RepoURL:      cfg.Site.RepoURL,
		Commit:       cfg.Site.Commit,
		Fonts:        cfg.Site.Fonts,
		JoinMarkdown: cfg.Site.JoinMarkdown,
	}
	if cfg.AssetsDir != "" {
		opts.Files = os.DirFS(cfg.AssetsDir)
	}
	return opts
}

// Site produces the assets of one build.
type Site struct {
	opts  Options
	files fs.FS
}

// New creates a Site. The version token is fixed here so that every page of
// a build references the same stylesheet URL.
func New(opts Options) *Site {
	if opts.EntityDir == "" {
		opts.EntityDir = config.DefaultEntityDir
	}
	if opts.Version == "" {
		opts.Version = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	defaults, err := fs.Sub(defaultsFS, "defaults")
	if err != nil {
		panic(fmt.Sprintf("embedded site defaults missing: %v", err))
	}
	files := fs.FS(defaults)
	if opts.Files != nil {
		files = overlayFS{primary: opts.Files, fallback: defaults}
	}
	return &Site{opts: opts, files: files}
}

// Version returns the cache-busting token of this build.
func (s *Site) Version() string { return s.opts.Version }

// MobPath returns the logical path of a mob's page.
func (s *Site) MobPath(id string) (ssg.LogicalPath, error) {
	segs := strings.Split(s.opts.EntityDir, "/")
	return ssg.NewLogicalPath(append(segs, id+".html")...)
}

// overlayFS serves from primary and falls back when a file does not exist there.
type overlayFS struct {
	primary  fs.FS
	fallback fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	f, err := o.primary.Open(name)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return o.fallback.Open(name)
}

type navLinks struct {
	Calendar string
	Join     string
}

type navIcon struct {
	Href   string
	Alt    string
	Src    string
	Invert bool
}

type fontFace struct {
	Family string
	URL    string
	Format string
}

type layoutData struct {
	Title          string
	SiteName       string
	Description    string
	HTMLClasses    Classes
	BodyClasses    Classes
	ContentClasses Classes
	MainStylesheet string
	Stylesheets    []string
	Fonts          []fontFace
	Nav            navLinks
	Icons          []navIcon
	Content        template.HTML
	Commit         string
	RepoURL        string
}

// page describes the variable part of a page wrapped by the base layout.
type page struct {
	Title          string
	Content        template.HTML
	Stylesheets    []string
	ContentClasses Classes
}

// layout wraps p in the base layout for the asset bound to targets.
func (s *Site) layout(targets ssg.Targets, p page) ([]byte, error) {
	rel := func(to string) (string, error) { return targets.Relative(to) }

	stylesheet, err := rel(StylesheetPath)
	if err != nil {
		return nil, err
	}
	calendarHref, err := rel(IndexPath)
	if err != nil {
		return nil, err
	}
	joinHref, err := rel(JoinPath)
	if err != nil {
		return nil, err
	}

	var icons []navIcon
	for _, icon := range []struct {
		href, alt, logo string
		invert          bool
	}{
		{s.opts.ZulipURL, "Zulip", ZulipLogoPath, false},
		{s.opts.GitHubURL, "GitHub", GitHubLogoPath, true},
		{s.opts.TwitterURL, "Twitter", TwitterLogo, false},
	} {
		if icon.href == "" {
			continue
		}
		src, err := rel(icon.logo)
		if err != nil {
			return nil, err
		}
		icons = append(icons, navIcon{Href: icon.href, Alt: icon.alt, Src: src, Invert: icon.invert})
	}

	var fonts []fontFace
	for _, f := range s.opts.Fonts {
		href, err := rel(FontsDir + "/" + f)
		if err != nil {
			return nil, err
		}
		fonts = append(fonts, fontFace{Family: fontFamily(f), URL: href, Format: fontFormat(f)})
	}

	htmlClasses := NewClasses("[font-size:16px]")
	if len(fonts) > 0 {
		htmlClasses = htmlClasses.Add("font-[" + fonts[0].Family + "]")
	}

	data := layoutData{
		Title:          p.Title,
		SiteName:       s.opts.Name,
		Description:    s.opts.Description,
		HTMLClasses:    htmlClasses,
		BodyClasses:    NewClasses("min-h-screen", "py-1", "px-1", "md:px-5", "flex", "flex-col", "gap-1", "max-w-screen-xl", "mx-auto"),
		ContentClasses: p.ContentClasses.Merge(NewClasses("grow", "flex", "flex-col", "justify-center")),
		MainStylesheet: stylesheet + "?v=" + s.opts.Version,
		Stylesheets:    p.Stylesheets,
		Fonts:          fonts,
		Nav:            navLinks{Calendar: calendarHref, Join: joinHref},
		Icons:          icons,
		Content:        p.Content,
		Commit:         s.opts.Commit,
		RepoURL:        s.opts.RepoURL,
	}
	return execute("base.tmpl", data)
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func fontFamily(file string) string {
	return strings.TrimSuffix(file, path.Ext(file))
}

func fontFormat(file string) string {
	switch strings.ToLower(path.Ext(file)) {
	case ".woff2":
		return "woff2"
	case ".woff":
		return "woff"
	case ".otf":
		return "opentype"
	default:
		return "truetype"
	}
}

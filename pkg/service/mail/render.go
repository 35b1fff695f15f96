package mail

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/hackernyous/pkg/domain/model"
)

// DefaultSubject is the subject line of every digest
const DefaultSubject = "Personalized Hacker News Feed"

//go:embed templates/*.tmpl
var templateFS embed.FS

// Message is a rendered digest email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Renderer renders digests into HTML and plain text bodies
type Renderer struct {
	subject    string
	profileURL string
	html       *htmltemplate.Template
	text       *texttemplate.Template
}

type RendererOption func(*Renderer)

func WithSubject(subject string) RendererOption {
	return func(r *Renderer) {
		r.subject = subject
	}
}

// WithProfileURL adds a footer link where readers can edit their interests
func WithProfileURL(url string) RendererOption {
	return func(r *Renderer) {
		r.profileURL = url
	}
}

type templateData struct {
	Subject    string
	ProfileURL string
	Articles   []*model.Article
}

func NewRenderer(opts ...RendererOption) (*Renderer, error) {
	funcs := map[string]any{
		"inc": func(i int) int { return i + 1 },
	}

	html, err := htmltemplate.New("digest.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.html.tmpl")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse HTML template")
	}
	text, err := texttemplate.New("digest.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.txt.tmpl")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse text template")
	}

	r := &Renderer{
		subject: DefaultSubject,
		html:    html,
		text:    text,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render builds the email for a digest
func (r *Renderer) Render(digest *model.Digest) (*Message, error) {
	data := templateData{
		Subject:    r.subject,
		ProfileURL: r.profileURL,
		Articles:   digest.Articles,
	}

	var html, text bytes.Buffer
	if err := r.html.Execute(&html, data); err != nil {
		return nil, goerr.Wrap(err, "failed to render HTML digest", goerr.V("digest_id", digest.ID))
	}
	if err := r.text.Execute(&text, data); err != nil {
		return nil, goerr.Wrap(err, "failed to render text digest", goerr.V("digest_id", digest.ID))
	}

	return &Message{
		To:      digest.Email,
		Subject: r.subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

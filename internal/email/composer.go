// Package email renders and delivers the HTML digest email.
package email

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/oncobrief/oncobrief/internal/domain"
)

// abstractPreviewLength bounds the body text when an article carries no AI
// summary.
const abstractPreviewLength = 150

// digestTemplate is the weekly digest email body: header, article
// table-of-contents, optional podcast player, detailed per-article
// summaries with PubMed links, footer.
var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; }
      h1 { color: #4338ca; }
      h2 { color: #4f46e5; margin-top: 20px; }
      .article { margin-bottom: 20px; padding-bottom: 15px; border-bottom: 1px solid #eee; }
      .article h3 { margin-bottom: 5px; color: #1e40af; }
      .article-meta { color: #6b7280; font-size: 14px; margin-bottom: 10px; }
      .article-summary { font-size: 16px; line-height: 1.6; }
      .podcast-section { margin: 20px 0; padding: 15px; background-color: #eef2ff; border-radius: 8px; }
      .article-list { background-color: #f9fafb; padding: 15px; border-radius: 8px; margin-bottom: 25px; }
      .article-list-item { margin-bottom: 10px; padding-bottom: 10px; border-bottom: 1px solid #eee; }
      .button { display: inline-block; background-color: #4f46e5; color: white; padding: 12px 20px;
              text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 10px; }
      .audio-player { width: 100%; margin: 15px 0; background-color: #e0e7ff; border-radius: 4px; }
      footer { margin-top: 30px; font-size: 14px; color: #6b7280; border-top: 1px solid #eee; padding-top: 15px; }
    </style>
  </head>
  <body>
    <h1>OncoBrief</h1>
    <h2>{{.Title}}</h2>
    <p>Here's your weekly summary of the latest oncology research:</p>

    <div class="article-list">
      <h3>Articles in this digest:</h3>
      <ol>
{{- range .Articles}}
        <li class="article-list-item">
          <strong>{{.Title}}</strong><br>
          <span style="color: #6b7280;">{{.Journal}}{{if .PubYear}} ({{.PubYear}}){{end}}</span>
        </li>
{{- end}}
      </ol>
    </div>
{{- if .PodcastURL}}

    <div class="podcast-section">
      <h3>&#127911; OncoBrief Podcast</h3>
      <p>Listen to an audio summary of this week's research findings:</p>
      <audio controls class="audio-player">
        <source src="{{.PodcastURL}}" type="audio/mpeg">
        Your email client does not support HTML5 audio.
      </audio>
      <div style="margin-top:15px;">
        <a href="{{.PodcastURL}}" class="button" style="margin-right:10px;">Listen Online</a>
{{- if .TranscriptURL}}
        <a href="{{.TranscriptURL}}" style="color:#4338ca; margin-left:10px;">View Transcript</a>
{{- end}}
      </div>
    </div>
{{- end}}

    <h3>Detailed Research Summaries</h3>
{{- range .Articles}}
    <div class="article">
      <h3>{{.Title}}</h3>
      <div class="article-meta">
        <div><strong>Authors:</strong> {{.Authors}}</div>
        <div><strong>Journal:</strong> {{.Journal}}{{if .PubYear}} ({{.PubYear}}){{end}}</div>
        <div><strong>PMID:</strong> <a href="https://pubmed.ncbi.nlm.nih.gov/{{.PMID}}/">{{.PMID}}</a></div>
      </div>
      <div class="article-summary">{{.Summary}}</div>
    </div>
{{- end}}

    <footer>
      <p>This email was sent from OncoBrief, your weekly oncology research digest.</p>
      <p>&copy; {{.Year}} OncoBrief</p>
    </footer>
  </body>
</html>
`))

// testTemplate is the diagnostic email body.
var testTemplate = template.Must(template.New("test").Parse(`<!DOCTYPE html>
<html>
  <body>
    <h1>OncoBrief Email Test</h1>
    <p>This is a test email to verify that the email sending functionality is working.</p>
    <p>If you're seeing this, the email configuration is correct!</p>
    <p>Time: {{.Time}}</p>
  </body>
</html>
`))

type digestEmailData struct {
	Title         string
	Articles      []articleEmailData
	PodcastURL    string
	TranscriptURL string
	Year          int
}

type articleEmailData struct {
	Title   string
	Authors string
	Journal string
	PubYear string
	PMID    string
	Summary string
}

// ComposeDigest renders the digest email, returning subject and HTML body.
// Podcast may be nil. Relative podcast URLs are resolved against baseURL.
func ComposeDigest(digest *domain.Digest, articles []*domain.Article, podcast *domain.Podcast, baseURL string) (string, string, error) {
	title := digest.Title
	if title == "" {
		title = "Weekly Oncology Digest: " + formatDateRange(digest.WeekStart, digest.WeekEnd)
	}

	data := digestEmailData{
		Title: title,
		Year:  time.Now().Year(),
	}
	if podcast != nil && podcast.AudioURL != "" {
		data.PodcastURL = absoluteURL(baseURL, podcast.AudioURL)
		if podcast.ScriptURL != "" {
			data.TranscriptURL = absoluteURL(baseURL, podcast.ScriptURL)
		}
	}

	for _, a := range articles {
		authors := a.Authors
		if authors == "" {
			authors = "Not available"
		}
		data.Articles = append(data.Articles, articleEmailData{
			Title:   a.Title,
			Authors: authors,
			Journal: a.Journal,
			PubYear: a.PubYear,
			PMID:    a.PMID,
			Summary: summaryText(a),
		})
	}

	var body strings.Builder
	if err := digestTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render digest email: %w", err)
	}

	return "OncoBrief: " + title, body.String(), nil
}

// ComposeTest renders the diagnostic email.
func ComposeTest(now time.Time) (string, string, error) {
	var body strings.Builder
	err := testTemplate.Execute(&body, struct{ Time string }{now.UTC().Format(time.RFC3339)})
	if err != nil {
		return "", "", fmt.Errorf("failed to render test email: %w", err)
	}
	return "OncoBrief Test Email", body.String(), nil
}

func summaryText(a *domain.Article) string {
	if a.AISummary != "" {
		return a.AISummary
	}
	if a.HasAbstract() {
		// Cut on a rune boundary so multi-byte characters stay intact.
		if runes := []rune(a.Abstract); len(runes) > abstractPreviewLength {
			return string(runes[:abstractPreviewLength]) + "..."
		}
		return a.Abstract
	}
	return "No summary available"
}

func formatDateRange(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return ""
	}
	return start.Format("January 2, 2006") + " - " + end.Format("January 2, 2006")
}

func absoluteURL(baseURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(baseURL, "/") + path
}

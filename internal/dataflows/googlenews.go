package dataflows

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"tradingagents/internal/config"
	"tradingagents/internal/resilience"
)

// GoogleNewsClient scrapes the Google News search page. Last-resort
// news provider for tickers no API vendor covers.
type GoogleNewsClient struct {
	client *resty.Client
	now    func() time.Time
}

func NewGoogleNewsClient(cfg *config.Config) *GoogleNewsClient {
	client := resty.New()
	client.SetTimeout(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; tradingagents/1.0)")
	return &GoogleNewsClient{client: client, now: time.Now}
}

const maxScrapedArticles = 20

// News searches for "<ticker> stock" around the as-of date.
func (gc *GoogleNewsClient) News(ctx context.Context, req Request) (any, error) {
	query := req.Ticker + " stock"
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en&gl=US&ceid=US:en",
		url.QueryEscape(query))

	resp, err := gc.client.R().SetContext(ctx).Get(searchURL)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, err)
	}
	if resp.StatusCode() != 200 {
		return nil, resilience.Errorf(resilience.KindTransient, "google news http %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, resilience.WithKind(resilience.KindInvalidResponse, err)
	}

	var items []NewsItem
	doc.Find("article").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find("h3").Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h4").Text())
		}
		if title == "" {
			return true
		}

		href, _ := s.Find("a").First().Attr("href")
		source := strings.TrimSpace(s.Find("div[data-n-tid]").Text())
		if source == "" {
			source = "Google News"
		}
		items = append(items, NewsItem{
			Time:   gc.publishTime(s),
			Title:  title,
			URL:    absoluteNewsURL(href),
			Source: source,
		})
		return len(items) < maxScrapedArticles
	})
	return items, nil
}

func (gc *GoogleNewsClient) publishTime(s *goquery.Selection) time.Time {
	if dt, ok := s.Find("time").Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			return t
		}
	}
	return gc.relativeTime(strings.TrimSpace(s.Find("time").Text()))
}

var relativeTimePattern = regexp.MustCompile(`(\d+)\s*(minute|hour|day|week)s?\s*ago`)

// relativeTime converts "3 hours ago" style text; unparseable stamps
// are treated as an hour old.
func (gc *GoogleNewsClient) relativeTime(text string) time.Time {
	now := gc.now()
	m := relativeTimePattern.FindStringSubmatch(strings.ToLower(text))
	if len(m) != 3 {
		return now.Add(-time.Hour)
	}
	n := parseInt(m[1])
	switch m[2] {
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour)
	case "day":
		return now.AddDate(0, 0, -n)
	case "week":
		return now.AddDate(0, 0, -7*n)
	}
	return now.Add(-time.Hour)
}

func absoluteNewsURL(href string) string {
	if strings.HasPrefix(href, "./") {
		return "https://news.google.com" + href[1:]
	}
	if strings.HasPrefix(href, "/") {
		return "https://news.google.com" + href
	}
	return href
}

// Package dealabs scrapes LEGO promotions from the deal-sharing source.
//
// The source renders listing pages server-side and embeds the structured
// thread data as JSON inside component mount-point attributes. Markup and
// blob shape both churn frequently, so extraction is best-effort: the
// embedded JSON is preferred, DOM text is the fallback, and a record that
// cannot be salvaged is dropped without failing the batch.
package dealabs

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bricked-up/brickscout/internal/model"
)

// threadBlob mirrors the embedded component JSON. Every field is optional;
// absence is normal, not an error.
type threadBlob struct {
	Props struct {
		Thread *struct {
			ThreadID      json.Number `json:"threadId"`
			Title         string      `json:"title"`
			Price         *float64    `json:"price"`
			NextBestPrice *float64    `json:"nextBestPrice"`
			CommentCount  int         `json:"commentCount"`
			Temperature   float64     `json:"temperature"`
			PublishedAt   int64       `json:"publishedAt"`
			EndDate       *struct {
				Timestamp int64 `json:"timestamp"`
			} `json:"endDate"`
			Link      string `json:"link"`
			DealLink  string `json:"dealLink"`
			ShareLink string `json:"shareableLink"`
			MainImage *struct {
				Path string `json:"path"`
				UID  string `json:"uid"`
			} `json:"mainImage"`
		} `json:"thread"`
	} `json:"props"`
}

// Parse extracts candidate records from one listing page. A malformed
// article never aborts the batch: whatever could not be decoded is skipped
// and the rest is returned. Candidates without a catalog identifier are
// still emitted; the crawler owns the drop policy.
func Parse(payload []byte) ([]model.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "dealabs: parse document")
	}

	var out []model.Candidate
	doc.Find("article.thread").Each(func(_ int, article *goquery.Selection) {
		c, ok := parseArticle(article)
		if !ok {
			zap.L().Debug("dealabs: skipping unparseable article")
			return
		}
		out = append(out, c)
	})
	return out, nil
}

func parseArticle(article *goquery.Selection) (model.Candidate, bool) {
	var c model.Candidate

	// Preferred path: the embedded JSON blob on the vue mount point.
	article.Find("div.js-vue2").EachWithBreak(func(_ int, mount *goquery.Selection) bool {
		raw, ok := mount.Attr("data-vue2")
		if !ok {
			return true
		}
		var blob threadBlob
		if err := json.Unmarshal([]byte(raw), &blob); err != nil {
			// Decode failure skips this blob only; the DOM fallback
			// below still applies.
			return true
		}
		t := blob.Props.Thread
		if t == nil {
			return true
		}

		c.SourceID = t.ThreadID.String()
		c.Title = t.Title
		if t.Price != nil {
			c.Price = *t.Price
		}
		c.NextBestPrice = t.NextBestPrice
		c.Comments = t.CommentCount
		c.Temperature = int(math.Round(t.Temperature))
		c.Publication = t.PublishedAt
		if t.EndDate != nil {
			ts := t.EndDate.Timestamp
			c.ExpirationDate = &ts
		}
		c.Link = t.Link
		c.MerchantLink = t.DealLink
		if c.Link == "" {
			c.Link = t.ShareLink
		}
		if t.MainImage != nil && t.MainImage.Path != "" {
			c.ImgURL = "https://static.dealabs.com/" + t.MainImage.Path + "/" + t.MainImage.UID
		}
		return false
	})

	// DOM fallback for whatever the blob did not provide.
	if c.Title == "" {
		c.Title = strings.TrimSpace(article.Find("strong.thread-title a").AttrOr("title", ""))
	}
	if c.Link == "" {
		c.Link = article.Find("strong.thread-title a").AttrOr("href", "")
	}
	if c.ImgURL == "" {
		c.ImgURL = article.Find("img.thread-image").AttrOr("src", "")
	}
	if c.Price == 0 {
		c.Price = parsePrice(article.Find("span.thread-price").First().Text())
	}
	if c.NextBestPrice == nil {
		if p := parsePrice(article.Find("span.mute--text.text--lineThrough").First().Text()); p > 0 {
			c.NextBestPrice = &p
		}
	}
	if c.Comments == 0 {
		c.Comments = parseInt(article.Find("a.cept-comment-link").First().Text())
	}
	if c.Temperature == 0 {
		c.Temperature = parseInt(article.Find("div.cept-vote-temp").First().Text())
	}

	c.LegoID = model.ExtractLegoID(c.Title)

	// A record with neither title nor link is not actionable in any form.
	if c.Title == "" && c.Link == "" {
		return model.Candidate{}, false
	}
	return c, true
}

var (
	numberPattern  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	integerPattern = regexp.MustCompile(`-?\d+`)
)

// parsePrice extracts a decimal from source price text like "56,98 €".
// Unparseable text yields 0, never an error.
func parsePrice(s string) float64 {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int {
	m := integerPattern.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

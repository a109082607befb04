package targets

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Procedure performs one check-in attempt. A false result with a nil error
// is an explicit failure; both are retried by the caller.
type Procedure interface {
	Run(ctx context.Context, s *Session, baseURL, credential string) (bool, string, error)
}

const (
	msgSignedIn      = "签到成功"
	msgAlreadySigned = "今日已签到"
	msgCookieExpired = "Cookie已失效"
	msgUnknown       = "签到失败，未知原因"
)

var alreadySignedMarkers = []string{"今天已经签到过了", "今日已签到", "已经签到"}

// Attendance is the NexusPHP-style check-in: load the index (which must
// show a logged-in page), optionally open a user panel, then request the
// attendance page and read the result.
type Attendance struct {
	// PanelPath is visited between the index and the attendance page when set.
	PanelPath string
	// LinkSelector, when set, must match a link on the index page; its href
	// is used as the attendance URL.
	LinkSelector string
	SignPath     string
}

func (a Attendance) Run(ctx context.Context, s *Session, baseURL, credential string) (bool, string, error) {
	index, err := s.get(ctx, baseURL, credential, "")
	if err != nil {
		return false, "", fmt.Errorf("访问主页失败: %w", err)
	}
	if index.status != 200 {
		return false, fmt.Sprintf("访问主页失败: HTTP %d", index.status), nil
	}
	if loggedOut(index) {
		return false, msgCookieExpired, nil
	}

	signURL := resolveRef(baseURL, a.SignPath)
	if a.LinkSelector != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(index.body))
		if err != nil {
			return false, "", fmt.Errorf("parse index: %w", err)
		}
		href, ok := doc.Find(a.LinkSelector).First().Attr("href")
		if !ok {
			if signedText(index.body) {
				return true, msgAlreadySigned, nil
			}
			return false, "未能找到签到链接", nil
		}
		signURL = resolveRef(index.url, href)
	}

	referer := index.url
	if a.PanelPath != "" {
		panelURL := resolveRef(baseURL, a.PanelPath)
		panel, err := s.get(ctx, panelURL, credential, referer)
		if err != nil {
			return false, "", fmt.Errorf("访问用户面板失败: %w", err)
		}
		if panel.status != 200 {
			return false, fmt.Sprintf("访问用户面板失败: HTTP %d", panel.status), nil
		}
		referer = panelURL
	}

	res, err := s.get(ctx, signURL, credential, referer)
	if err != nil {
		return false, "", fmt.Errorf("签到请求失败: %w", err)
	}
	if res.status != 200 {
		return false, fmt.Sprintf("签到请求失败: HTTP %d", res.status), nil
	}
	ok, msg := readResult(res.body)
	return ok, msg, nil
}

var (
	ttgTimestamp = regexp.MustCompile(`signed_timestamp:\s*"(\d+)"`)
	ttgToken     = regexp.MustCompile(`signed_token:\s*"([^"]+)"`)
)

// SignedForm is the TTG flavour: the index page embeds a timestamp and token
// that must be posted to the sign endpoint.
type SignedForm struct {
	SignPath string
}

func (f SignedForm) Run(ctx context.Context, s *Session, baseURL, credential string) (bool, string, error) {
	index, err := s.get(ctx, baseURL, credential, "")
	if err != nil {
		return false, "", fmt.Errorf("访问主页失败: %w", err)
	}
	if index.status != 200 {
		return false, fmt.Sprintf("访问主页失败: HTTP %d", index.status), nil
	}
	if loggedOut(index) {
		return false, msgCookieExpired, nil
	}

	ts := ttgTimestamp.FindStringSubmatch(index.body)
	tok := ttgToken.FindStringSubmatch(index.body)
	if ts == nil || tok == nil {
		if signedText(index.body) {
			return true, msgAlreadySigned, nil
		}
		return false, "未找到签到按钮", nil
	}

	form := url.Values{}
	form.Set("signed_timestamp", ts[1])
	form.Set("signed_token", tok[1])
	res, err := s.post(ctx, resolveRef(baseURL, f.SignPath), credential, index.url, form)
	if err != nil {
		return false, "", fmt.Errorf("签到请求失败: %w", err)
	}
	if res.status != 200 {
		return false, fmt.Sprintf("签到请求失败: HTTP %d", res.status), nil
	}
	ok, msg := readResult(res.body)
	return ok, msg, nil
}

func loggedOut(p *page) bool {
	return strings.Contains(p.url, "login.php") || strings.Contains(p.body, "login.php")
}

func signedText(body string) bool {
	for _, m := range alreadySignedMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// readResult classifies an attendance response body.
func readResult(body string) (bool, string) {
	if strings.Contains(body, msgSignedIn) {
		return true, msgSignedIn
	}
	if signedText(body) {
		return true, msgAlreadySigned
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if text := strings.TrimSpace(doc.Find("div.error").First().Text()); text != "" {
			return false, "签到失败：" + text
		}
	}
	return false, msgUnknown
}

// resolveRef resolves ref against base, returning ref unchanged if either fails to parse.
func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

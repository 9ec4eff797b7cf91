// Package links extracts same-domain, crawlable hyperlinks from an HTML
// document, filtering out non-HTML assets and duplicate targets.
package links

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// excludedExtensions are file types that are never worth crawling as
// pages: images, documents, archives, media, web assets, executables.
var excludedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".svg": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true,
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true, ".mp3": true, ".wav": true,
	".js": true, ".css": true, ".xml": true, ".json": true,
	".exe": true, ".dmg": true, ".deb": true, ".rpm": true,
}

// excludedPathPatterns mark paths that are reliably non-page assets
// even without a recognizable extension.
var excludedPathPatterns = []string{"/download/", "/file/", "/asset/", "/static/", "/media/"}

// Extract parses raw HTML and returns same-domain link targets found in
// <a href> attributes, in document order with duplicates removed.
// baseURL is used both to resolve relative hrefs and to determine the
// allowed domain (its host must match exactly).
func Extract(raw []byte, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Host != base.Host {
			return
		}

		pathLower := strings.ToLower(resolved.Path)
		for ext := range excludedExtensions {
			if strings.HasSuffix(pathLower, ext) {
				return
			}
		}
		for _, pattern := range excludedPathPatterns {
			if strings.Contains(pathLower, pattern) {
				return
			}
		}

		clean := resolved.Scheme + "://" + resolved.Host + resolved.Path
		if resolved.RawQuery != "" {
			clean += "?" + resolved.RawQuery
		}

		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	})

	return out, nil
}

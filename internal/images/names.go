package images

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const maxNameRunes = 120

var (
	unsafeName  = regexp.MustCompile(`[\\/:*?"<>|]+`)
	nameExt     = regexp.MustCompile(`(?i)\.[a-z0-9]{2,5}$`)
	pngExt      = regexp.MustCompile(`(?i)\.png$`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// Sanitize makes s safe as a single path segment: characters filesystems
// reject collapse to "_" and the result is capped at 120 runes. An empty
// input yields fallback.
func Sanitize(s, fallback string) string {
	name := strings.TrimSpace(s)
	if name == "" {
		name = fallback
	}
	name = unsafeName.ReplaceAllString(name, "_")
	if r := []rune(name); len(r) > maxNameRunes {
		name = string(r[:maxNameRunes])
	}
	return name
}

// Stem strips the last extension. Leading-dot names are returned whole.
func Stem(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// EnsurePNGExt appends .png unless name already ends with it.
func EnsurePNGExt(name string) string {
	if pngExt.MatchString(name) {
		return name
	}
	return name + ".png"
}

// SwapExt replaces a trailing .png with ext.
func SwapExt(p, ext string) string {
	return pngExt.ReplaceAllString(p, ext)
}

// ExtFromContentType maps an image media type to a file extension.
func ExtFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "webp"):
		return ".webp"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "svg"):
		return ".svg"
	default:
		return ""
	}
}

// ExtFromURL returns the extension of the last path segment of rawURL.
func ExtFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return nameExt.FindString(path.Base(u.Path))
}

// BaseName picks the output file name for a generated card: the build tool's
// suggested download name when present, otherwise the page title plus the
// last URL path segment (or query, or fragment) as a disambiguator.
func BaseName(downloadName, pageTitle, pageURL string) string {
	base := Sanitize(downloadName, "")
	if base == "" {
		base = Sanitize(pageTitle, "image")
		if tail := Sanitize(urlTail(pageURL), ""); tail != "" {
			base += "__" + tail
		}
	}
	return EnsurePNGExt(base)
}

func urlTail(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 0 {
		return segments[len(segments)-1]
	}
	if u.RawQuery != "" {
		return "?" + u.RawQuery
	}
	if u.Fragment != "" {
		return "#" + u.Fragment
	}
	return ""
}

// RecordKey derives a manifest id from the taxonomy and the file name.
func RecordKey(side, faction, kind, fileName string) string {
	stem := strings.ToLower(Stem(filepath.Base(fileName)))
	stem = whitespaces.ReplaceAllString(stem, "-")
	return strings.Join([]string{side, faction, kind, stem}, "_")
}

// RelativeRef renders p as a "./"-prefixed slash path under root, the form
// cards.json uses for front and back images.
func RelativeRef(root, p string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return filepath.ToSlash(p)
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return filepath.ToSlash(p)
	}
	joined := filepath.ToSlash(filepath.Join(root, rel))
	if filepath.IsAbs(root) {
		return joined
	}
	return "./" + strings.TrimPrefix(joined, "./")
}

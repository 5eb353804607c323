package giturl

import (
	"strings"
)

// ArchiveSuffix is appended to storage paths in compact mode.
const ArchiveSuffix = ".tar.gz"

// DeriveStoragePath maps a remote URL to its location below the archive root.
// The host comes first with dots replaced by underscores, followed by every
// path segment with any ".git" suffix removed, joined with "/". When archived
// is true the result ends in ".tar.gz".
//
//	https://github.com/example/repo1      -> github_com/example/repo1
//	git@github.com:example/repo1.git      -> github_com/example/repo1
//
// Every input yields a path; distinct URLs may collide.
func DeriveStoragePath(rawURL string, archived bool) string {
	p := strings.Join(locationParts(rawURL), "/")
	if archived {
		p += ArchiveSuffix
	}

	return p
}

// DeriveID maps a remote URL to a flat identifier, using the same parts as
// DeriveStoragePath joined with "-".
func DeriveID(rawURL string) string {
	return strings.Join(locationParts(rawURL), "-")
}

// RepoName returns the last path segment of the derived location.
func RepoName(rawURL string) string {
	parts := locationParts(rawURL)
	return parts[len(parts)-1]
}

func locationParts(rawURL string) []string {
	host, segments := splitLocation(strings.TrimSpace(rawURL))

	parts := make([]string, 0, len(segments)+1)
	if host != "" {
		parts = append(parts, strings.ReplaceAll(host, ".", "_"))
	}

	parts = append(parts, segments...)

	if len(parts) == 0 {
		return []string{fallbackName(rawURL)}
	}

	return parts
}

func splitLocation(raw string) (string, []string) {
	if isSCP(raw) {
		at := strings.IndexByte(raw, '@')
		colon := at + strings.IndexByte(raw[at:], ':')

		return raw[at+1 : colon], pathSegments(raw[colon+1:])
	}

	if u, err := Parse(raw); err == nil && u.Host != "" {
		return u.Hostname(), pathSegments(u.Path)
	}

	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return hostOnly(rest), nil
	}

	return hostOnly(rest[:slash]), pathSegments(rest[slash+1:])
}

// hostOnly drops userinfo and port from a host component.
func hostOnly(h string) string {
	if at := strings.LastIndexByte(h, '@'); at >= 0 {
		h = h[at+1:]
	}

	if colon := strings.IndexByte(h, ':'); colon >= 0 {
		h = h[:colon]
	}

	return h
}

func pathSegments(p string) []string {
	if q := strings.IndexAny(p, "?#"); q >= 0 {
		p = p[:q]
	}

	var out []string

	for _, seg := range strings.Split(p, "/") {
		seg = strings.TrimSuffix(seg, ".git")
		if seg == "" || seg == "." || seg == ".." {
			continue
		}

		out = append(out, seg)
	}

	return out
}

func fallbackName(raw string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, raw)

	if strings.Trim(clean, "_") == "" {
		return "repository"
	}

	return clean
}

package giturl

import (
	"net/url"
	"strings"
)

// Transport identifies how a remote is reached, which decides the
// authentication method offered to it.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportSSH
	TransportHTTP
	TransportFile
)

func (t Transport) String() string {
	switch t {
	case TransportSSH:
		return "ssh"
	case TransportHTTP:
		return "http"
	case TransportFile:
		return "file"
	default:
		return "unknown"
	}
}

// IsURL checks if the given string is a git URL
func IsURL(u string) bool {
	return isSCP(u) || isSupportedProtocol(u)
}

func isSupportedProtocol(u string) bool {
	return strings.HasPrefix(u, "ssh:") ||
		strings.HasPrefix(u, "git+ssh:") ||
		strings.HasPrefix(u, "git:") ||
		strings.HasPrefix(u, "http:") ||
		strings.HasPrefix(u, "git+https:") ||
		strings.HasPrefix(u, "https:") ||
		strings.HasPrefix(u, "file:")
}

func isPossibleProtocol(u string) bool {
	return isSupportedProtocol(u) ||
		strings.HasPrefix(u, "ftp:") ||
		strings.HasPrefix(u, "ftps:")
}

// isSCP reports whether u uses scp-like syntax (user@host:path).
func isSCP(u string) bool {
	if strings.Contains(u, "://") {
		return false
	}

	at := strings.IndexByte(u, '@')
	if at < 0 {
		return false
	}

	return strings.IndexByte(u[at:], ':') > 0
}

// Parse normalizes git remote urls, including scp-like syntax (git@github.com:owner/repo)
func Parse(rawURL string) (*url.URL, error) {
	if !isPossibleProtocol(rawURL) &&
		strings.ContainsRune(rawURL, ':') &&
		// not a Windows path
		!strings.ContainsRune(rawURL, '\\') {
		// support scp-like syntax for ssh protocol
		rawURL = "ssh://" + strings.Replace(rawURL, ":", "/", 1)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "git+https":
		u.Scheme = "https"
	case "git+ssh":
		u.Scheme = "ssh"
	}

	if u.Scheme != "ssh" {
		return u, nil
	}

	if strings.HasPrefix(u.Path, "//") {
		u.Path = strings.TrimPrefix(u.Path, "/")
	}

	u.Host = strings.TrimSuffix(u.Host, ":"+u.Port())

	return u, nil
}

// TransportOf classifies a remote URL. Plain filesystem paths are treated as
// file remotes.
func TransportOf(rawURL string) Transport {
	rawURL = strings.TrimSpace(rawURL)

	switch {
	case isSCP(rawURL):
		return TransportSSH
	case strings.HasPrefix(rawURL, "ssh://"), strings.HasPrefix(rawURL, "git+ssh://"):
		return TransportSSH
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"),
		strings.HasPrefix(rawURL, "git+https://"):
		return TransportHTTP
	case strings.HasPrefix(rawURL, "file://"), strings.HasPrefix(rawURL, "/"), strings.HasPrefix(rawURL, "."):
		return TransportFile
	default:
		return TransportUnknown
	}
}

// Sanitize removes credentials embedded in a URL so it can be logged.
func Sanitize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}

	u.User = nil

	return u.String()
}

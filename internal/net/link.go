package net

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Scheme prefixes share links: emojiart://host:port/<document id>.
const Scheme = "emojiart://"

var ErrBadLink = errors.New("net: malformed share link")

// Link builds the share link for document id served at host:port.
func Link(host string, port int, id string) string {
	return Scheme + net.JoinHostPort(host, strconv.Itoa(port)) + "/" + id
}

// ParseLink splits a share link into the server address and document id.
func ParseLink(link string) (addr, id string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(link), Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrBadLink, link)
	}
	addr, id, _ = strings.Cut(strings.TrimSuffix(rest, "/"), "/")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrBadLink, link, err)
	}
	if id == "" || strings.Contains(id, "/") {
		return "", "", fmt.Errorf("%w: %q: no document", ErrBadLink, link)
	}
	return addr, id, nil
}

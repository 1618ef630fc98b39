// Package endpoint resolves the server address the client connects to.
package endpoint

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"

	"invitelink/pkg/core"
)

// OverrideFile is the name of the optional override file.
const OverrideFile = "endpoint.toml"

// Override is the content of the optional endpoint override file.
type Override struct {
	URL      string `toml:"url"`
	LogLevel string `toml:"log_level"`
}

// ReadOverride loads the override file at path. A missing file yields nil, nil.
func ReadOverride(path string) (*Override, error) {
	var o Override
	meta, err := toml.DecodeFile(path, &o)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load endpoint override: %w", err)
	}

	if meta.IsDefined("url") {
		o.URL = strings.TrimSpace(o.URL)
		if o.URL == "" {
			return nil, fmt.Errorf("load endpoint override: url is empty")
		}
	}
	if meta.IsDefined("log_level") {
		o.LogLevel = strings.TrimSpace(o.LogLevel)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load endpoint override: unknown key %q", undecoded[0].String())
	}
	return &o, nil
}

// Resolve returns the override URL when one is set, otherwise def.
func Resolve(o *Override, def string) string {
	if o != nil && o.URL != "" {
		return o.URL
	}
	return def
}

// BuildURL replaces the path and query of base with the session endpoint:
// /ws?v=<version>&token=<token>&session=<session>.
func BuildURL(base, version, token string, session uint32) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidAddress, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no scheme or host", core.ErrInvalidAddress, base)
	}

	u.Path = "/ws"
	u.RawPath = ""
	u.Fragment = ""
	u.RawQuery = fmt.Sprintf("v=%s&token=%s&session=%d",
		url.QueryEscape(version), url.QueryEscape(token), session)
	return u.String(), nil
}

// NewSessionID returns a random session number for this process run.
func NewSessionID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

package rpc

import (
	"errors"
	"fmt"
	"net/url"
)

// Info holds the sanitized connection parameters for a bitcoind node,
// extracted from a single URL of the form [scheme://][user:password@]host[:port].
type Info struct {
	// Host is host:port, with an optional path, as the RPC transport expects
	Host string

	// User and Pass carry the basic auth credentials; both empty means no auth
	User string
	Pass string

	// DisableTLS is set unless the URL scheme is https
	DisableTLS bool
}

// InfoFromURL parses a node RPC URL. Auth rule: username and password must
// be both present (basic auth) or both absent (no auth); anything else is a
// configuration error.
func InfoFromURL(raw string) (*Info, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid rpc url: %w", err)
	}

	user := u.User.Username()
	pass, hasPass := u.User.Password()

	switch {
	case user == "" && !hasPass:
	case user != "" && hasPass && pass != "":
	default:
		return nil, errors.New("incorrect node auth parameters: username and password must be both present or both absent")
	}

	host := u.Host
	if host == "" {
		// "localhost:8332" parses as an opaque URL with no host part
		host = u.Path
		if u.Opaque != "" {
			host = u.Scheme + ":" + u.Opaque
		}
	} else if u.Path != "" && u.Path != "/" {
		host += u.Path
	}
	if host == "" {
		return nil, fmt.Errorf("rpc url %q has no host", raw)
	}

	return &Info{
		Host:       host,
		User:       user,
		Pass:       pass,
		DisableTLS: u.Scheme != "https",
	}, nil
}

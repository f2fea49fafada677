// Package rtc holds the WebRTC settings handed to browsers. Media never touches the server.
package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/medassist/internal/config"
)

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// Configuration builds the peer connection config clients should use. An empty list falls
// back to DefaultICEServers.
func Configuration(servers []config.ICEServer) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return webrtc.Configuration{ICEServers: DefaultICEServers()}, nil
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		for _, u := range s.URLs {
			if !validScheme(u) {
				return webrtc.Configuration{}, fmt.Errorf("ice server %q: unsupported scheme", u)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return webrtc.Configuration{ICEServers: out}, nil
}

func validScheme(u string) bool {
	for _, p := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

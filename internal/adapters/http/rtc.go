package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/nclime/roomcast/internal/config"
)

// rtcConfigHandler hands clients the ICE servers to build their
// RTCPeerConnection from. The gateway itself never terminates media;
// calls run peer-to-peer and only their signaling passes through here.
func rtcConfigHandler(cfg *config.Config) gin.HandlerFunc {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}

	return func(c *gin.Context) {
		c.JSON(200, gin.H{"iceServers": servers})
	}
}

package broadcast

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// 局域网 UDP 广播通道：同一网段内的设备无需服务器即可收到紧急求助。
// 纯 fire-and-forget，无确认、无重试。
const (
	DefaultPort     = 8888
	emergencyPrefix = "HARMONYCARE_EMERGENCY:"
	messagePrefix   = "HARMONYCARE_MESSAGE:"
	maxPacketSize   = 4096
)

// Announcement is the on-wire emergency payload (snake_case, matches the sync API).
type Announcement struct {
	PeerID           string  `json:"peer_id,omitempty"`
	EmergencyID      uint    `json:"emergency_id,omitempty"`
	ElderlyID        uint    `json:"elderly_id"`
	ElderlyName      string  `json:"elderly_name,omitempty"`
	ElderlyContact   string  `json:"elderly_contact,omitempty"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Status           string  `json:"status"`
	VolunteerID      *uint   `json:"volunteer_id,omitempty"`
	VolunteerName    string  `json:"volunteer_name,omitempty"`
	VolunteerContact string  `json:"volunteer_contact,omitempty"`
	Timestamp        int64   `json:"timestamp"`
}

// ChatPacket is the on-wire chat payload for in-emergency messages.
type ChatPacket struct {
	PeerID      string `json:"peer_id,omitempty"`
	EmergencyID uint   `json:"emergency_id"`
	SenderID    uint   `json:"sender_id"`
	ReceiverID  uint   `json:"receiver_id"`
	Body        string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}

type Channel struct {
	port   int
	peerID string // 用于过滤自己发出的包
	logger *zap.Logger
}

func NewChannel(port int, logger *zap.Logger) *Channel {
	if port <= 0 {
		port = DefaultPort
	}
	return &Channel{port: port, peerID: uuid.NewString(), logger: logger}
}

// AnnounceEmergency sends one datagram to the subnet broadcast address.
// Failures are reported but callers treat them as best-effort.
func (c *Channel) AnnounceEmergency(a Announcement) error {
	a.PeerID = c.peerID
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.send(emergencyPrefix, payload)
}

// AnnounceMessage broadcasts an in-emergency chat message to nearby peers.
func (c *Channel) AnnounceMessage(m ChatPacket) error {
	m.PeerID = c.peerID
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.send(messagePrefix, payload)
}

func (c *Channel) send(prefix string, payload []byte) error {
	lc := net.ListenConfig{Control: enableBroadcast}
	conn, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return err
	}
	defer conn.Close()

	addr := &net.UDPAddr{IP: broadcastAddress(), Port: c.port}
	_, err = conn.WriteTo(append([]byte(prefix), payload...), addr)
	return err
}

// 内核默认禁止往广播地址发包，发送端套接字要先打开 SO_BROADCAST
func enableBroadcast(network, address string, rc syscall.RawConn) error {
	var serr error
	if err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return serr
}

// Listen blocks, decoding incoming datagrams until ctx is cancelled.
// Packets originating from this process are dropped.
func (c *Channel) Listen(ctx context.Context, onEmergency func(Announcement), onMessage func(ChatPacket)) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: c.port})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxPacketSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		raw := string(buf[:n])

		switch {
		case strings.HasPrefix(raw, emergencyPrefix):
			var a Announcement
			if err := json.Unmarshal([]byte(strings.TrimPrefix(raw, emergencyPrefix)), &a); err != nil {
				c.logger.Debug("dropping malformed emergency packet", zap.Error(err))
				continue
			}
			if a.PeerID == c.peerID {
				continue
			}
			if onEmergency != nil {
				onEmergency(a)
			}
		case strings.HasPrefix(raw, messagePrefix):
			var m ChatPacket
			if err := json.Unmarshal([]byte(strings.TrimPrefix(raw, messagePrefix)), &m); err != nil {
				c.logger.Debug("dropping malformed chat packet", zap.Error(err))
				continue
			}
			if m.PeerID == c.peerID {
				continue
			}
			if onMessage != nil {
				onMessage(m)
			}
		}
	}
}

// broadcastAddress picks the IPv4 directed-broadcast address of the first
// usable interface, falling back to the limited broadcast address.
func broadcastAddress() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPv4bcast
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			bcast := make(net.IP, len(ip4))
			for i := range ip4 {
				bcast[i] = ip4[i] | ^ipnet.Mask[i]
			}
			return bcast
		}
	}
	return net.IPv4bcast
}

package mirror

import (
	"fmt"
	"strings"

	"github.com/hashicorp/mdns"
	qrcode "github.com/skip2/go-qrcode"
)

const mdnsServiceType = "_crewfloor._tcp"

// Announce advertises the mirror on the local network via mDNS. The
// caller shuts the returned server down alongside the mirror.
func Announce(serviceName string, port int, url string) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("invalid port for mDNS advertisement: %d", port)
	}
	name := strings.TrimSpace(serviceName)
	if name == "" {
		name = "crewfloor"
	}
	txtRecords := []string{
		fmt.Sprintf("name=%s", name),
		fmt.Sprintf("url=%s", url),
	}
	service, err := mdns.NewMDNSService(name, mdnsServiceType, "local", "", port, nil, txtRecords)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{
		Zone: service,
	})
}

// PairingQR renders the mirror URL as a terminal QR code.
func PairingQR(url string) (string, error) {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return code.ToString(false), nil
}

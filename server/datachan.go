package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// dataChannel is a passive-mode listener waiting for exactly one data
// connection. It is created by PASV/EPSV and consumed by the next
// LIST, NLST, RETR or STOR.
type dataChannel struct {
	ln   net.Listener
	ip   net.IP
	port int
}

// listenData opens a TCP listener on an ephemeral port of ip.
// network is "tcp4" or "tcp6".
func listenData(network string, ip net.IP) (*dataChannel, error) {
	ln, err := net.ListenTCP(network, &net.TCPAddr{IP: ip})
	if err != nil {
		return nil, err
	}
	addr := ln.Addr().(*net.TCPAddr)
	return &dataChannel{ln: ln, ip: addr.IP, port: addr.Port}, nil
}

// accept waits for the single data connection and closes the listener
// whether or not one arrived. A zero timeout waits forever.
func (dc *dataChannel) accept(timeout time.Duration) (net.Conn, error) {
	defer dc.ln.Close()
	if timeout > 0 {
		if tl, ok := dc.ln.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(timeout))
		}
	}
	return dc.ln.Accept()
}

func (dc *dataChannel) Close() error {
	return dc.ln.Close()
}

// encodePASV renders the "(h1,h2,h3,h4,p1,p2)" address of a 227 reply.
// ip must be an IPv4 address.
func encodePASV(ip net.IP, port int) string {
	v4 := ip.To4()
	return fmt.Sprintf("(%d,%d,%d,%d,%d,%d)", v4[0], v4[1], v4[2], v4[3], port/256, port%256)
}

// encodeEPSV renders the "(|||port|)" address of a 229 reply.
func encodeEPSV(port int) string {
	return fmt.Sprintf("(|||%d|)", port)
}

// hostIP returns the IP of a net.Addr, or nil if it has none.
func hostIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil
		}
		return net.ParseIP(host)
	}
}

// epsvNetwork picks the listener family for EPSV from the control peer.
// IPv4-mapped IPv6 peers are treated as IPv4.
func epsvNetwork(peer net.IP) string {
	if peer == nil || peer.To4() != nil {
		return "tcp4"
	}
	return "tcp6"
}

// setDataChannel installs dc as the pending channel, closing any previous
// unconsumed one. It returns false if the server is shutting down.
func (s *session) setDataChannel(dc *dataChannel) bool {
	s.releaseDataChannel()
	if !s.server.trackConnection(dc, true) {
		dc.Close()
		return false
	}
	s.pasv = dc
	return true
}

// releaseDataChannel closes and forgets the pending channel, if any.
func (s *session) releaseDataChannel() {
	if s.pasv != nil {
		s.closeDataChannel(s.pasv)
		s.pasv = nil
	}
}

func (s *session) closeDataChannel(dc *dataChannel) {
	s.server.trackConnection(dc, false)
	if err := dc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.debug("data_listener_close", "error", err)
	}
}

// takeDataChannel detaches the pending channel for a data-bearing command.
// The caller owns it from then on.
func (s *session) takeDataChannel() (*dataChannel, error) {
	dc := s.pasv
	if dc == nil {
		return nil, ErrNoDataChannel
	}
	s.pasv = nil
	return dc, nil
}

// acceptData waits for the client on dc and registers the resulting data
// connection so Shutdown can interrupt the transfer.
func (s *session) acceptData(dc *dataChannel) (net.Conn, error) {
	s.debug("waiting_for_data_connection", "port", dc.port)
	conn, err := dc.accept(s.server.dataTimeout)
	s.server.trackConnection(dc, false)
	if err != nil {
		return nil, err
	}
	if !s.server.trackConnection(conn, true) {
		conn.Close()
		return nil, ErrServerClosed
	}
	return conn, nil
}

// closeDataConn closes an accepted data connection and forgets it.
func (s *session) closeDataConn(conn net.Conn) error {
	s.server.trackConnection(conn, false)
	return conn.Close()
}

func (s *session) handlePASV(_ string) {
	local := hostIP(s.conn.LocalAddr())
	bind := local.To4()
	if bind == nil {
		s.reply(425, "Can't open passive connection: no IPv4 address.")
		return
	}

	dc, err := listenData("tcp4", bind)
	if err != nil {
		s.logger().Warn("passive_listen_failed", "session_id", s.sessionID, "error", err)
		s.reply(425, "Can't open passive connection.")
		return
	}
	if !s.setDataChannel(dc) {
		s.reply(421, "Service not available, closing control connection.")
		return
	}

	advertised := dc.ip
	if host := s.server.passiveHost; host != nil {
		advertised = host
	}
	s.reply(227, "Entering Passive Mode "+encodePASV(advertised, dc.port)+".")
}

func (s *session) handleEPSV(arg string) {
	var network string
	switch strings.ToUpper(arg) {
	case "":
		network = epsvNetwork(hostIP(s.conn.RemoteAddr()))
	case "1":
		network = "tcp4"
	case "2":
		network = "tcp6"
	case "ALL":
		s.reply(200, "EPSV ALL ok.")
		return
	default:
		s.reply(522, "Network protocol not supported, use (1,2).")
		return
	}

	local := hostIP(s.conn.LocalAddr())
	if network == "tcp4" {
		local = local.To4()
		if local == nil {
			s.reply(522, "Network protocol not supported, use (2).")
			return
		}
	} else if local.To4() != nil {
		s.reply(522, "Network protocol not supported, use (1).")
		return
	}

	dc, err := listenData(network, local)
	if err != nil {
		s.logger().Warn("passive_listen_failed", "session_id", s.sessionID, "error", err)
		s.reply(425, "Can't open passive connection.")
		return
	}
	if !s.setDataChannel(dc) {
		s.reply(421, "Service not available, closing control connection.")
		return
	}
	s.reply(229, "Entering Extended Passive Mode "+encodeEPSV(dc.port))
}

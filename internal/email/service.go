package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends mail through a plain SMTP relay.
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

func (s *Service) SendOrderConfirmation(to string, c Confirmation) error {
	body, err := BuildOrderConfirmationBody(c)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Your Jenny's Hair & Wigs order %s", shortID(c.OrderID))
	return s.sendHTML(to, subject, body)
}

func (s *Service) sendHTML(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := s.host + ":" + s.port
	if err := s.send(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func shortID(orderID string) string {
	if len(orderID) > 8 {
		return strings.ToUpper(orderID[:8])
	}
	return strings.ToUpper(orderID)
}

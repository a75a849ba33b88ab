// Package mailparse extracts recipient addresses from raw RFC 5322
// message bytes.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var recipientHeaders = []string{"To", "Cc", "Bcc"}

// Recipients parses raw message bytes and returns the normalized
// (lower-cased, address-only) recipients from the To, Cc, and Bcc headers,
// in that order. A message with none of those headers yields an empty list.
func Recipients(raw []byte) ([]string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse raw message: %w", err)
	}

	out := []string{}
	for _, h := range recipientHeaders {
		addrs, err := msg.Header.AddressList(h)
		if err != nil {
			if errors.Is(err, mail.ErrHeaderNotPresent) {
				continue
			}
			return nil, fmt.Errorf("parse %s header: %w", h, err)
		}
		for _, a := range addrs {
			out = append(out, strings.ToLower(a.Address))
		}
	}
	return out, nil
}

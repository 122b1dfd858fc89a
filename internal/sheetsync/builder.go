// Package sheetsync builds incremental payloads for the remote spreadsheet and
// delivers them without blocking the conversation.
package sheetsync

import "github.com/autopodbor/intake-bot/internal/domain"

// BuildPayload projects the session answers into the record sent upstream.
// The session is not modified.
func BuildPayload(s *domain.Session) domain.Payload {
	if s == nil {
		return domain.Payload{}
	}
	return domain.Payload{
		Phone:       s.Phone,
		Brand:       s.Brand,
		Model:       s.Model,
		City:        s.City,
		Year:        s.YearTo,
		Budget:      s.Budget,
		IdentityKey: s.IdentityKey,
		Username:    s.Username,
		ClientName:  s.ClientName,
		ClientLogin: s.ClientLogin,
		Manager:     s.Manager,
		Tag:         s.Tag,
	}
}

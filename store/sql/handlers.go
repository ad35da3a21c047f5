package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func userHandlers() repository.ModelHandlers[*userRecord] {
	return repository.ModelHandlers[*userRecord]{
		NewRecord: func() *userRecord {
			return &userRecord{}
		},
		GetID: func(record *userRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return recordUUID(record.ID)
		},
		SetID: func(record *userRecord, id uuid.UUID) {
			if record == nil || strings.TrimSpace(record.ID) != "" {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *userRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func webhookLogHandlers() repository.ModelHandlers[*webhookLogRecord] {
	return repository.ModelHandlers[*webhookLogRecord]{
		NewRecord: func() *webhookLogRecord {
			return &webhookLogRecord{}
		},
		GetID: func(record *webhookLogRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return recordUUID(record.ID)
		},
		SetID: func(record *webhookLogRecord, id uuid.UUID) {
			if record == nil || strings.TrimSpace(record.ID) != "" {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *webhookLogRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

// recordUUID maps a stored ID onto the repository's uuid.UUID handle. IDs are
// not always UUIDs here: remote-verified records carry the provider
// transaction code. Those hash to a stable v5 UUID so the repository never
// mistakes them for a missing ID and regenerates them.
func recordUUID(value string) uuid.UUID {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(value))
	}
	return parsed
}

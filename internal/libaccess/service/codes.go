package service

import (
	"strings"

	"github.com/google/uuid"
)

const DefaultCodePrefix = "BIBLIO"

// CodeIssuer produces QR payloads of the form PREFIX-XXXXXXXX, the suffix
// being the first eight hex digits of a random UUID. Codes are labels and
// are not guaranteed unique.
type CodeIssuer struct {
	prefix  string
	newUUID func() (uuid.UUID, error)
}

func NewCodeIssuer(prefix string) *CodeIssuer {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	return &CodeIssuer{prefix: prefix, newUUID: uuid.NewRandom}
}

func (c *CodeIssuer) Generate() (string, error) {
	id, err := c.newUUID()
	if err != nil {
		return "", err
	}
	return c.prefix + "-" + strings.ToUpper(id.String()[:8]), nil
}

package preview

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// phoneSeedLength is how many trailing characters of the content base id
// seed the phone number.
const phoneSeedLength = 12

// PhoneNumber derives the preview phone number from a content base id: every
// one of its last twelve characters becomes a two-digit code, followed by
// three random digits.
func PhoneNumber(contentBaseUUID string, digit func() int) string {
	seed := contentBaseUUID
	if len(seed) > phoneSeedLength {
		seed = seed[len(seed)-phoneSeedLength:]
	}

	var b strings.Builder
	for i := 0; i < len(seed); i++ {
		b.WriteString(strconv.Itoa(int(seed[i])%90 + 10))
	}
	for i := 0; i < 3; i++ {
		b.WriteString(strconv.Itoa(digit() % 10))
	}
	return b.String()
}

// Init replaces the preview contact with a fresh synthetic one whose phone
// number is derived from contentBaseUUID.
func (e *Engine) Init(contentBaseUUID string) domain.Contact {
	contact := domain.Contact{
		UUID:      uuid.New().String(),
		Name:      "Preview",
		URNs:      []string{"tel:" + PhoneNumber(contentBaseUUID, e.digit)},
		Fields:    map[string]string{},
		Groups:    []domain.Group{},
		CreatedOn: e.timestamp(),
	}

	e.mu.Lock()
	e.state.Contact = contact
	e.mu.Unlock()

	return cloneContact(contact)
}

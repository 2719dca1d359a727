package cortex

import "strings"

// TenantId, SessionId, UserId and EntityId are opaque non-empty identifiers.
// They are distinct types so a tool id can never be passed where a session id
// is expected, even though both are strings under the hood.
type (
	TenantId  string
	SessionId string
	UserId    string
	EntityId  string
	ConceptId string
)

// Valid reports whether the identifier is non-empty and free of the reserved
// ":" separator used by composite keys in cortex/persistence.
func (t TenantId) Valid() bool  { return validID(string(t)) }
func (s SessionId) Valid() bool { return validID(string(s)) }
func (u UserId) Valid() bool    { return validID(string(u)) }
func (e EntityId) Valid() bool  { return validID(string(e)) }
func (c ConceptId) Valid() bool { return validID(string(c)) }

func validID(s string) bool {
	return s != "" && !strings.Contains(s, ":")
}

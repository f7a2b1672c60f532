package store

import "campuschat/contract"

// ArrayContains matches documents whose Field holds an array containing
// Value. This is the only query shape the room directory needs
// (participants array-contains uid).
type ArrayContains struct {
	Field string
	Value string
}

func (f ArrayContains) Matches(doc contract.Document) bool {
	switch arr := doc.Fields[f.Field].(type) {
	case []string:
		for _, v := range arr {
			if v == f.Value {
				return true
			}
		}
	case []any:
		for _, v := range arr {
			if s, ok := v.(string); ok && s == f.Value {
				return true
			}
		}
	}
	return false
}

// FieldEquals matches documents whose Field equals Value after the JSON
// round trip (strings and bools compare directly).
type FieldEquals struct {
	Field string
	Value any
}

func (f FieldEquals) Matches(doc contract.Document) bool {
	return doc.Fields[f.Field] == f.Value
}

// ByID matches a single document, used for point watches (session
// revocation on the caller's own student record).
type ByID struct {
	ID string
}

func (f ByID) Matches(doc contract.Document) bool {
	return doc.ID == f.ID
}

// All matches every document in the collection.
type All struct{}

func (All) Matches(contract.Document) bool { return true }

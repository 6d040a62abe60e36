package models

// EntityType is the coarse category callers score against.
type EntityType string

const (
	EntityTypePerson       EntityType = "PERSON"
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeLocation     EntityType = "LOCATION"
	EntityTypeNone         EntityType = "NONE"
)

// MapType maps an NLP label (spaCy / OntoNotes scheme) or an annotation tag to an
// EntityType.
func MapType(label string) EntityType {
	switch label {
	case "PERSON":
		return EntityTypePerson
	case "ORG", "NORP":
		return EntityTypeOrganization
	case "GPE", "LOC":
		return EntityTypeLocation
	default:
		return EntityTypeNone
	}
}

// MapTypes maps every label, keeping order and duplicates.
func MapTypes(labels []string) []EntityType {
	types := make([]EntityType, len(labels))
	for i, l := range labels {
		types[i] = MapType(l)
	}
	return types
}

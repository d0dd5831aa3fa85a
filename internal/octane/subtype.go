package octane

import (
	"fmt"
	"strings"
)

// Subtype is one of the work item subtypes the bot manages.
type Subtype int

const (
	Defect Subtype = iota
	UserStory
	Feature
	Epic
)

// Subtypes lists every managed subtype in display order.
var Subtypes = []Subtype{Defect, UserStory, Feature, Epic}

type subtypeInfo struct {
	command    string // name used in chat commands
	api        string // entity_subtype value and metadata entity_name
	collection string // REST collection
	color      string // card color
}

var subtypeTable = map[Subtype]subtypeInfo{
	Defect:    {command: "defect", api: "defect", collection: "defects", color: "#b21646"},
	UserStory: {command: "userstory", api: "story", collection: "stories", color: "#ffb000"},
	Feature:   {command: "feature", api: "feature", collection: "features", color: "#e57828"},
	Epic:      {command: "epic", api: "epic", collection: "epics", color: "#7425ad"},
}

// ParseSubtype accepts the command name or the API name, case-insensitively.
func ParseSubtype(s string) (Subtype, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for st, info := range subtypeTable {
		if s == info.command || s == info.api {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown entity type %q", s)
}

// String returns the command name, e.g. "userstory".
func (s Subtype) String() string { return subtypeTable[s].command }

// APIName returns the entity_subtype value, e.g. "story".
func (s Subtype) APIName() string { return subtypeTable[s].api }

// Collection returns the REST collection, e.g. "stories".
func (s Subtype) Collection() string { return subtypeTable[s].collection }

// Color returns the card color used when displaying entities of s.
func (s Subtype) Color() string { return subtypeTable[s].color }

package formauto

import "github.com/Safi643133/ai-immigration-services-sub003/id"

// ID is the primary identifier type for all formauto entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

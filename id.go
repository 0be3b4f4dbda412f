package lettrage

import "github.com/xraph/lettrage/id"

// ID is the identifier type for matches, runs and lettrage codes.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
